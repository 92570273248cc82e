package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus is the admin verification state of a registration.
type RegistrationStatus string

const (
	StatusPending  RegistrationStatus = "pending"
	StatusVerified RegistrationStatus = "verified"
)

// Vehicle is a single vehicle entry on the registration form.
type Vehicle struct {
	VehicleType string `json:"vehicle_type"`
	PlateNumber string `json:"plate_number"`
}

// Registration represents one attendee registration stored in the database.
// Multiple vehicles are flattened into comma-separated columns. The
// coordinate columns are nullable: a registration submitted without a usable
// location fix is stored without one.
type Registration struct {
	ID           uuid.UUID          `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	FullName     string             `json:"full_name" gorm:"not null;uniqueIndex:idx_registrations_identity"`
	Whatsapp     string             `json:"whatsapp" gorm:"not null;uniqueIndex:idx_registrations_identity"`
	VehicleType  string             `json:"vehicle_type"`
	PlateNumber  string             `json:"plate_number"`
	VehicleCount int                `json:"vehicle_count"`
	Category     string             `json:"category"`
	PackageType  string             `json:"package_type"`
	ProofURL     string             `json:"proof_url"`
	ProofKey     string             `json:"-"`
	Latitude     *float64           `json:"latitude"`
	Longitude    *float64           `json:"longitude"`
	Accuracy     *float64           `json:"accuracy"`
	Status       RegistrationStatus `json:"status" gorm:"type:varchar(16);default:'pending'"`
	CreatedAt    time.Time          `json:"created_at" gorm:"autoCreateTime"`
}

// Coordinate returns the stored coordinate, or nil when the registration
// was saved without location data.
func (r *Registration) Coordinate() *Coordinate {
	if r.Latitude == nil || r.Longitude == nil {
		return nil
	}
	c := Coordinate{Latitude: *r.Latitude, Longitude: *r.Longitude}
	if r.Accuracy != nil {
		c.AccuracyMeters = *r.Accuracy
	}
	return &c
}

// SetCoordinate stores the given coordinate on the registration. A nil
// coordinate clears the location columns.
func (r *Registration) SetCoordinate(c *Coordinate) {
	if c == nil {
		r.Latitude, r.Longitude, r.Accuracy = nil, nil, nil
		return
	}
	lat, lng, acc := c.Latitude, c.Longitude, c.AccuracyMeters
	r.Latitude, r.Longitude, r.Accuracy = &lat, &lng, &acc
}

// FlattenVehicles fills the comma-separated vehicle columns from the given
// list, trimming each entry the same way identity fields are trimmed.
func (r *Registration) FlattenVehicles(vehicles []Vehicle) {
	types := make([]string, 0, len(vehicles))
	plates := make([]string, 0, len(vehicles))
	for _, v := range vehicles {
		types = append(types, strings.TrimSpace(v.VehicleType))
		plates = append(plates, strings.TrimSpace(v.PlateNumber))
	}
	r.VehicleType = strings.Join(types, ", ")
	r.PlateNumber = strings.Join(plates, ", ")
	r.VehicleCount = len(vehicles)
}
