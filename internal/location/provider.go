package location

import (
	"context"
	"time"
)

// Capability describes whether a device exposes a usable geolocation
// capability. Unknown means no fix or failure has been reported yet;
// Unavailable means the device explicitly reported it has none. Policy for
// each state lives with the consumers: Unavailable degrades to "proceed
// without location", it never silently disables duplicate protection.
type Capability int

const (
	CapabilityUnknown Capability = iota
	CapabilityAvailable
	CapabilityUnavailable
)

func (c Capability) String() string {
	switch c {
	case CapabilityAvailable:
		return "available"
	case CapabilityUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Options mirror the knobs of the device geolocation API.
type Options struct {
	EnableHighAccuracy bool
	Timeout            time.Duration
	MaximumAge         time.Duration // accept a cached fix no older than this
}

// Fix is a raw device-reported position before validation. Devices report
// partial or garbage payloads; nothing downstream consumes a Fix directly.
type Fix struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// WatchID identifies a continuous position subscription on a Provider.
type WatchID int64

// Provider abstracts the device geolocation capability. GetCurrentPosition
// blocks until a fix, a classified failure, or context cancellation.
// WatchPosition registers a continuous callback; the caller must ClearWatch
// when done, there is no implicit expiry.
type Provider interface {
	GetCurrentPosition(ctx context.Context, opts Options) (Fix, error)
	WatchPosition(cb func(Fix), opts Options) (WatchID, error)
	ClearWatch(id WatchID)
	Capability() Capability
}
