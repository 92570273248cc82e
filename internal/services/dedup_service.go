package services

import (
	"log"
	"strings"
	"sync"
	"time"

	"registration-service/internal/metrics"
	"registration-service/internal/models"
	"registration-service/internal/repository"
	"registration-service/internal/storage"
	"registration-service/internal/utils"
)

// CheckConsumer identifies an independent duplicate-check consumer. The
// background monitor and the submit-time gate each get their own
// single-flight slot; they may overlap with each other but never with
// themselves.
type CheckConsumer string

const (
	ConsumerMonitor CheckConsumer = "monitor"
	ConsumerSubmit  CheckConsumer = "submit"
)

// DedupConfig holds the duplicate-detection policy knobs. The submit radius
// blocks; the monitor radius only warns. They are deliberately separate
// values.
type DedupConfig struct {
	SubmitRadiusMeters  float64
	MonitorRadiusMeters float64
	CheckInterval       time.Duration
	MovementMin         float64 // meters a fix must move before another monitor check
}

// DedupService decides whether a candidate registration collides with
// stored ones, by identity or by location. One instance exists per form
// session; all throttling state lives on the instance so it is discarded
// with the session.
//
// Every store read failure is absorbed as "no duplicate found": a transient
// infrastructure error must never block a legitimate registration.
type DedupService struct {
	reader  repository.RegistrationReader
	refset  *storage.RefsetCache
	metrics *metrics.Collector
	cfg     DedupConfig

	mu          sync.Mutex
	lastCheckAt time.Time
	lastChecked *models.Coordinate
	inFlight    map[CheckConsumer]bool
	lastVerdict models.DuplicateVerdict

	// submitMu serializes strict checks: a concurrent submit waits for the
	// in-flight check instead of proceeding unchecked.
	submitMu sync.Mutex
}

// NewDedupService creates a detection engine. refset may be nil, in which
// case advisory checks always read through to the store.
func NewDedupService(reader repository.RegistrationReader, refset *storage.RefsetCache, collector *metrics.Collector, cfg DedupConfig) *DedupService {
	return &DedupService{
		reader:   reader,
		refset:   refset,
		metrics:  collector,
		cfg:      cfg,
		inFlight: make(map[CheckConsumer]bool),
	}
}

// CheckIdentity reports whether a candidate's name and WhatsApp number both
// match an existing registration exactly (after trimming). Matches on only
// one of the two fields do not count.
func (s *DedupService) CheckIdentity(fullName, whatsapp string) models.DuplicateVerdict {
	name := strings.TrimSpace(fullName)
	phone := strings.TrimSpace(whatsapp)
	verdict := models.DuplicateVerdict{CheckedAt: time.Now()}

	s.metrics.IncChecks(string(ConsumerSubmit))
	regs, err := s.reader.FindByIdentity(name, phone)
	if err != nil {
		log.Printf("Identity duplicate check failed, allowing submission: %v", err)
		s.metrics.IncStoreFailure()
		return verdict
	}

	for _, reg := range regs {
		if reg.FullName == name && reg.Whatsapp == phone {
			verdict.IsDuplicateIdentity = true
			verdict.MatchedName = reg.FullName
			s.metrics.IncDuplicate("identity")
			return verdict
		}
	}
	return verdict
}

// CheckLocationAdvisory runs the throttled background location check at the
// monitor radius. It returns the verdict and whether a check actually ran;
// throttled calls return the last verdict unchanged.
func (s *DedupService) CheckLocationAdvisory(sample models.LocationSample) (models.DuplicateVerdict, bool) {
	s.mu.Lock()
	now := time.Now()
	if s.inFlight[ConsumerMonitor] {
		s.metrics.IncThrottled("in_flight")
		v := s.lastVerdict
		s.mu.Unlock()
		return v, false
	}
	if !s.lastCheckAt.IsZero() && now.Sub(s.lastCheckAt) < s.cfg.CheckInterval {
		s.metrics.IncThrottled("interval")
		v := s.lastVerdict
		s.mu.Unlock()
		return v, false
	}
	if s.lastChecked != nil {
		moved := utils.CoordinateDistance(*s.lastChecked, sample.Coordinate)
		if moved < s.cfg.MovementMin {
			s.metrics.IncThrottled("movement")
			v := s.lastVerdict
			s.mu.Unlock()
			return v, false
		}
	}
	s.inFlight[ConsumerMonitor] = true
	s.lastCheckAt = now
	c := sample.Coordinate
	s.lastChecked = &c
	s.mu.Unlock()

	verdict := s.locationCheck(sample.Coordinate, s.cfg.MonitorRadiusMeters, true, ConsumerMonitor)

	s.mu.Lock()
	s.inFlight[ConsumerMonitor] = false
	s.lastVerdict = verdict
	s.mu.Unlock()
	return verdict, true
}

// CheckLocationStrict runs the submit-time location check at the strict
// radius. It is never interval- or movement-throttled, and concurrent
// callers are serialized rather than skipped: every submission attempt gets
// a real verdict against the freshest store state.
func (s *DedupService) CheckLocationStrict(coordinate models.Coordinate) models.DuplicateVerdict {
	s.submitMu.Lock()
	defer s.submitMu.Unlock()
	return s.locationCheck(coordinate, s.cfg.SubmitRadiusMeters, false, ConsumerSubmit)
}

// LastVerdict returns the most recent verdict for advisory display.
func (s *DedupService) LastVerdict() models.DuplicateVerdict {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastVerdict
}

// locationCheck fetches the coordinate reference set and reports the first
// registration within radiusMeters, in store iteration order. Advisory
// checks may be served from the cached set; cache errors fall through to
// the store, store errors fail open.
func (s *DedupService) locationCheck(c models.Coordinate, radiusMeters float64, useCache bool, consumer CheckConsumer) models.DuplicateVerdict {
	verdict := models.DuplicateVerdict{CheckedAt: time.Now()}
	start := time.Now()
	s.metrics.IncChecks(string(consumer))

	var candidates []models.Registration
	cached := false
	if useCache {
		candidates, cached = s.refset.Get()
	}
	if !cached {
		var err error
		if useCache {
			// Advisory path loads the whole reference set so it can be
			// cached for subsequent noisy GPS updates.
			candidates, err = s.reader.FindWithCoordinates()
			if err == nil {
				s.refset.Store(candidates)
			}
		} else {
			candidates, err = s.reader.FindNearCoordinate(c.Latitude, c.Longitude, radiusMeters)
		}
		if err != nil {
			log.Printf("Location duplicate check failed, allowing submission: %v", err)
			s.metrics.IncStoreFailure()
			s.metrics.ObserveCheckDuration(time.Since(start).Seconds())
			return verdict
		}
	}

	for _, reg := range candidates {
		rc := reg.Coordinate()
		if rc == nil {
			continue
		}
		dist := utils.CoordinateDistance(c, *rc)
		if dist < radiusMeters {
			verdict.IsDuplicateLocation = true
			verdict.MatchedName = reg.FullName
			verdict.DistanceMeters = &dist
			s.metrics.IncDuplicate("location")
			break
		}
	}
	s.metrics.ObserveCheckDuration(time.Since(start).Seconds())
	return verdict
}
