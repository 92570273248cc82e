package models

import "time"

// Coordinate represents a device-reported geographic position with its
// accuracy radius in meters.
type Coordinate struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AccuracyMeters float64 `json:"accuracy"`
}

// Valid reports whether the coordinate is within the WGS84 value ranges
// and carries a non-negative accuracy. Device payloads are untrusted, so
// every consumer validates before use.
func (c Coordinate) Valid() bool {
	if c.Latitude < -90 || c.Latitude > 90 {
		return false
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return false
	}
	return c.AccuracyMeters >= 0
}

// LocationSample is a coordinate together with the time it was captured.
// Samples are transient; only the coordinate of the sample that accompanies
// a successful submission is persisted.
type LocationSample struct {
	Coordinate Coordinate `json:"coordinate"`
	CapturedAt time.Time  `json:"captured_at"`
}
