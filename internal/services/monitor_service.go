package services

import (
	"log"
	"sync"
	"time"

	"registration-service/internal/location"
	"registration-service/internal/models"
	"registration-service/internal/utils"
)

// MonitorService keeps a continuous watch on the device position while the
// visitor fills the form, running advisory duplicate checks as the device
// moves. It never blocks anything; its verdict is display-only.
type MonitorService struct {
	loc              *location.Service
	dedup            *DedupService
	watchMovementMin float64 // meters a watch fix must move to be accepted
	fixTimeout       time.Duration

	mu      sync.Mutex
	sub     *location.Subscription
	sample  *models.LocationSample
	verdict models.DuplicateVerdict
}

// NewMonitorService creates a monitor over the given location service and
// detection engine.
func NewMonitorService(loc *location.Service, dedup *DedupService, watchMovementMin float64, fixTimeout time.Duration) *MonitorService {
	return &MonitorService{
		loc:              loc,
		dedup:            dedup,
		watchMovementMin: watchMovementMin,
		fixTimeout:       fixTimeout,
	}
}

// Start subscribes to continuous position updates. A device without
// geolocation support degrades to no monitoring rather than an error.
func (m *MonitorService) Start() error {
	sub, err := m.loc.Watch(m.onSample, location.Options{
		EnableHighAccuracy: true,
		Timeout:            m.fixTimeout,
		MaximumAge:         30 * time.Second,
	})
	if err != nil {
		f := location.AsFailure(err)
		if f.Soft() {
			log.Printf("Location monitoring disabled: %s", f.Reason)
			return nil
		}
		return err
	}
	m.mu.Lock()
	m.sub = sub
	m.mu.Unlock()
	return nil
}

// Stop cancels the watch subscription. Safe to call when Start degraded or
// after a previous Stop.
func (m *MonitorService) Stop() {
	m.mu.Lock()
	sub := m.sub
	m.sub = nil
	m.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

// CurrentSample returns the freshest accepted sample, or nil when the
// device has not produced a usable fix yet.
func (m *MonitorService) CurrentSample() *models.LocationSample {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sample == nil {
		return nil
	}
	s := *m.sample
	return &s
}

// CurrentVerdict returns the latest advisory verdict.
func (m *MonitorService) CurrentVerdict() models.DuplicateVerdict {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verdict
}

// onSample accepts a validated fix when it moved far enough from the last
// accepted one, then runs the throttled advisory check.
func (m *MonitorService) onSample(sample models.LocationSample) {
	m.mu.Lock()
	if m.sample != nil {
		moved := utils.CoordinateDistance(m.sample.Coordinate, sample.Coordinate)
		if moved <= m.watchMovementMin {
			m.mu.Unlock()
			return
		}
	}
	m.sample = &sample
	m.mu.Unlock()

	verdict, ran := m.dedup.CheckLocationAdvisory(sample)
	if !ran {
		return
	}
	m.mu.Lock()
	m.verdict = verdict
	m.mu.Unlock()
}
