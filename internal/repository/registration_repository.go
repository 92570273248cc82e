package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"registration-service/internal/models"
	"registration-service/internal/utils"
)

// RegistrationReader is the read interface consumed by duplicate checks.
type RegistrationReader interface {
	FindByIdentity(fullName, whatsapp string) ([]models.Registration, error)
	FindWithCoordinates() ([]models.Registration, error)
	FindNearCoordinate(lat, lng, radiusMeters float64) ([]models.Registration, error)
}

// RegistrationRepository defines all registration storage operations.
type RegistrationRepository interface {
	RegistrationReader
	Create(registration *models.Registration) error
	GetByID(id uuid.UUID) (*models.Registration, error)
	List() ([]models.Registration, error)
	UpdateStatus(id uuid.UUID, status models.RegistrationStatus) error
	Delete(id uuid.UUID) error
	Counts() (total, pending, verified int64, err error)
}

// RegistrationRepositoryImpl provides methods to interact with the
// Registration model in the database.
type RegistrationRepositoryImpl struct {
	db *gorm.DB
}

// NewRegistrationRepository creates a new RegistrationRepositoryImpl with
// the provided GORM database connection.
func NewRegistrationRepository(db *gorm.DB) *RegistrationRepositoryImpl {
	return &RegistrationRepositoryImpl{db: db}
}

// Create inserts a new Registration.
func (r *RegistrationRepositoryImpl) Create(registration *models.Registration) error {
	return r.db.Create(registration).Error
}

// GetByID retrieves a Registration by its ID.
func (r *RegistrationRepositoryImpl) GetByID(id uuid.UUID) (*models.Registration, error) {
	var registration models.Registration
	err := r.db.First(&registration, "id = ?", id).Error
	return &registration, err
}

// List retrieves all Registrations, newest first.
func (r *RegistrationRepositoryImpl) List() ([]models.Registration, error) {
	var registrations []models.Registration
	err := r.db.Order("created_at DESC").Find(&registrations).Error
	return registrations, err
}

// UpdateStatus sets the verification status of a Registration.
func (r *RegistrationRepositoryImpl) UpdateStatus(id uuid.UUID, status models.RegistrationStatus) error {
	res := r.db.Model(&models.Registration{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes a Registration by its ID.
func (r *RegistrationRepositoryImpl) Delete(id uuid.UUID) error {
	return r.db.Delete(&models.Registration{}, "id = ?", id).Error
}

// Counts returns total, pending and verified registration counts.
func (r *RegistrationRepositoryImpl) Counts() (total, pending, verified int64, err error) {
	if err = r.db.Model(&models.Registration{}).Count(&total).Error; err != nil {
		return
	}
	if err = r.db.Model(&models.Registration{}).
		Where("status = ?", models.StatusPending).Count(&pending).Error; err != nil {
		return
	}
	err = r.db.Model(&models.Registration{}).
		Where("status = ?", models.StatusVerified).Count(&verified).Error
	return
}

// FindByIdentity retrieves registrations whose full name or WhatsApp number
// equals the given values. The caller decides whether a row is an exact
// both-field match.
func (r *RegistrationRepositoryImpl) FindByIdentity(fullName, whatsapp string) ([]models.Registration, error) {
	var registrations []models.Registration
	err := r.db.Where("full_name = ? OR whatsapp = ?", fullName, whatsapp).
		Find(&registrations).Error
	return registrations, err
}

// FindWithCoordinates retrieves all registrations that carry a coordinate.
func (r *RegistrationRepositoryImpl) FindWithCoordinates() ([]models.Registration, error) {
	var registrations []models.Registration
	err := r.db.Where("latitude IS NOT NULL AND longitude IS NOT NULL").
		Find(&registrations).Error
	return registrations, err
}

// FindNearCoordinate retrieves coordinate-bearing registrations within
// radiusMeters of the given point, using a bounding-box prefilter in SQL
// followed by an exact Haversine filter.
func (r *RegistrationRepositoryImpl) FindNearCoordinate(lat, lng, radiusMeters float64) ([]models.Registration, error) {
	minLat, maxLat, minLng, maxLng := utils.CalculateBoundingBox(lat, lng, radiusMeters)

	var candidates []models.Registration
	err := r.db.Where("latitude IS NOT NULL AND longitude IS NOT NULL").
		Where("latitude BETWEEN ? AND ?", minLat, maxLat).
		Where("longitude BETWEEN ? AND ?", minLng, maxLng).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	var within []models.Registration
	for _, reg := range candidates {
		c := reg.Coordinate()
		if c == nil {
			continue
		}
		if utils.HaversineDistance(lat, lng, c.Latitude, c.Longitude) <= radiusMeters {
			within = append(within, reg)
		}
	}
	return within, nil
}
