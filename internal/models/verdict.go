package models

import "time"

// DuplicateVerdict is the outcome of a duplicate-registration check. It is
// recomputed on every check and never persisted.
type DuplicateVerdict struct {
	IsDuplicateIdentity bool      `json:"is_duplicate_identity"`
	IsDuplicateLocation bool      `json:"is_duplicate_location"`
	MatchedName         string    `json:"matched_name,omitempty"`
	DistanceMeters      *float64  `json:"distance_meters,omitempty"`
	CheckedAt           time.Time `json:"checked_at"`
}

// Blocking reports whether the verdict blocks a submission attempt.
func (v DuplicateVerdict) Blocking() bool {
	return v.IsDuplicateIdentity || v.IsDuplicateLocation
}
