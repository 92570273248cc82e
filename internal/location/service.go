package location

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"registration-service/internal/metrics"
	"registration-service/internal/models"
)

// Service obtains validated location samples from a Provider. Every
// device payload is treated as untrusted: lat/lng/accuracy are checked
// before a sample is constructed, and malformed payloads are logged and
// dropped instead of propagated.
type Service struct {
	provider Provider
	metrics  *metrics.Collector
}

// NewService creates a Service on top of the given provider.
func NewService(provider Provider, collector *metrics.Collector) *Service {
	return &Service{provider: provider, metrics: collector}
}

// Capability exposes the underlying provider capability state.
func (s *Service) Capability() Capability {
	return s.provider.Capability()
}

// GetOnce requests a single location fix. It resolves no later than
// opts.Timeout with either a validated sample or a classified Failure.
func (s *Service) GetOnce(ctx context.Context, opts Options) (models.LocationSample, error) {
	if s.provider.Capability() == CapabilityUnavailable {
		s.metrics.IncFixFailure(string(ReasonUnsupported))
		return models.LocationSample{}, NewFailure(ReasonUnsupported, "device has no geolocation capability")
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	fix, err := s.provider.GetCurrentPosition(ctx, opts)
	if err != nil {
		f := classify(err)
		s.metrics.IncFixFailure(string(f.Reason))
		return models.LocationSample{}, f
	}

	sample, ok := validateFix(fix)
	if !ok {
		log.Printf("Dropping malformed location fix: %+v", fix)
		s.metrics.IncDroppedFix()
		return models.LocationSample{}, NewFailure(ReasonPositionUnavailable, "malformed device fix")
	}
	return sample, nil
}

// Subscription is a handle on a continuous position watch. Unsubscribe must
// be called on teardown; it is safe to call more than once.
type Subscription struct {
	id   WatchID
	svc  *Service
	once sync.Once
}

// Unsubscribe cancels the watch.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.svc.provider.ClearWatch(s.id)
	})
}

// Watch registers cb for every validated fix the device emits. Malformed
// payloads are dropped before cb sees them.
func (s *Service) Watch(cb func(models.LocationSample), opts Options) (*Subscription, error) {
	if s.provider.Capability() == CapabilityUnavailable {
		return nil, NewFailure(ReasonUnsupported, "device has no geolocation capability")
	}

	id, err := s.provider.WatchPosition(func(fix Fix) {
		sample, ok := validateFix(fix)
		if !ok {
			log.Printf("Dropping malformed watch fix: %+v", fix)
			s.metrics.IncDroppedFix()
			return
		}
		cb(sample)
	}, opts)
	if err != nil {
		return nil, classify(err)
	}
	return &Subscription{id: id, svc: s}, nil
}

// classify maps provider errors onto Failure values, turning context
// deadline expiry into a timeout reason.
func classify(err error) *Failure {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewFailure(ReasonTimeout, "location request timed out")
	}
	return AsFailure(err)
}

// validateFix converts a raw fix into a sample, rejecting payloads with
// out-of-range coordinates or negative accuracy.
func validateFix(fix Fix) (models.LocationSample, bool) {
	c := models.Coordinate{
		Latitude:       fix.Latitude,
		Longitude:      fix.Longitude,
		AccuracyMeters: fix.Accuracy,
	}
	if !c.Valid() {
		return models.LocationSample{}, false
	}
	capturedAt := fix.Timestamp
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}
	return models.LocationSample{Coordinate: c, CapturedAt: capturedAt}, true
}
