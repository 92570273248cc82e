package services

import (
	"context"
	"io"
	"log"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"registration-service/internal/location"
	"registration-service/internal/metrics"
	"registration-service/internal/models"
	"registration-service/internal/repository"
	"registration-service/internal/storage"
)

// SubmitOutcome is the message class the UI renders for a submission
// attempt.
type SubmitOutcome string

const (
	// OutcomeProceeded means the registration was stored.
	OutcomeProceeded SubmitOutcome = "proceeded"
	// OutcomeAlreadyRegistered is the hard identity duplicate: only
	// changed identity fields can resolve it.
	OutcomeAlreadyRegistered SubmitOutcome = "already_registered"
	// OutcomeLocationUsed is the soft location duplicate: resolvable
	// through the support channel, not by resubmitting.
	OutcomeLocationUsed SubmitOutcome = "location_used"
	// OutcomeInfraError is a failed upload or insert; the raw message is
	// surfaced and the caller may retry with the same data.
	OutcomeInfraError SubmitOutcome = "infra_error"
)

// SubmitInput carries one submission attempt.
type SubmitInput struct {
	FullName    string
	Whatsapp    string
	Vehicles    []models.Vehicle
	Category    string
	PackageType string

	Proof            io.Reader
	ProofSize        int64
	ProofContentType string
	ProofFilename    string

	// Sample is the freshest monitored location sample, if the caller has
	// one. When nil the gate falls back to a relaxed one-shot fix.
	Sample *models.LocationSample
}

// SubmitResult is the outcome surfaced to the UI.
type SubmitResult struct {
	Outcome        SubmitOutcome        `json:"outcome"`
	Registration   *models.Registration `json:"registration,omitempty"`
	MatchedName    string               `json:"matched_name,omitempty"`
	DistanceMeters *float64             `json:"distance_meters,omitempty"`
	Message        string               `json:"message,omitempty"`
}

// GateConfig holds the submission gate's location-fallback settings.
type GateConfig struct {
	FallbackTimeout time.Duration
	FallbackMaxAge  time.Duration
}

// RegistrationService is the single decision point for form submission. It
// combines the freshest location, identity and location duplicate checks,
// proof upload and the final insert.
type RegistrationService struct {
	repo    repository.RegistrationRepository
	proofs  storage.ProofStore
	refset  *storage.RefsetCache
	metrics *metrics.Collector
	cfg     GateConfig
}

// NewRegistrationService creates the submission gate.
func NewRegistrationService(repo repository.RegistrationRepository, proofs storage.ProofStore, refset *storage.RefsetCache, collector *metrics.Collector, cfg GateConfig) *RegistrationService {
	return &RegistrationService{
		repo:    repo,
		proofs:  proofs,
		refset:  refset,
		metrics: collector,
		cfg:     cfg,
	}
}

// Submit runs the full gate. sess supplies the session's detection engine
// and location service; it may be nil (expired session), in which case the
// gate runs its checks on a throwaway engine and proceeds without location.
//
// Duplicate verdicts block before any upload happens, so a rejected attempt
// never leaves an orphaned proof object behind.
func (s *RegistrationService) Submit(ctx context.Context, in SubmitInput, sess *Session) (*SubmitResult, error) {
	name := strings.TrimSpace(in.FullName)
	phone := strings.TrimSpace(in.Whatsapp)

	dedup := s.engineFor(sess)

	// Hard identity duplicate blocks before anything else.
	if v := dedup.CheckIdentity(name, phone); v.IsDuplicateIdentity {
		s.metrics.IncSubmission(string(OutcomeAlreadyRegistered))
		return &SubmitResult{
			Outcome:     OutcomeAlreadyRegistered,
			MatchedName: v.MatchedName,
			Message:     "This name and WhatsApp number are already registered. Use different details.",
		}, nil
	}

	// Resolve the freshest coordinate: monitored sample first, then one
	// relaxed last-resort fix. Absence of location never blocks.
	coordinate := s.resolveCoordinate(ctx, in, sess)

	// Race protection: re-check identity against the store state as close
	// to the insert as possible.
	if v := dedup.CheckIdentity(name, phone); v.IsDuplicateIdentity {
		s.metrics.IncSubmission(string(OutcomeAlreadyRegistered))
		return &SubmitResult{
			Outcome:     OutcomeAlreadyRegistered,
			MatchedName: v.MatchedName,
			Message:     "This name and WhatsApp number are already registered. Use different details.",
		}, nil
	}

	if coordinate != nil {
		if v := dedup.CheckLocationStrict(*coordinate); v.IsDuplicateLocation {
			s.metrics.IncSubmission(string(OutcomeLocationUsed))
			return &SubmitResult{
				Outcome:        OutcomeLocationUsed,
				MatchedName:    v.MatchedName,
				DistanceMeters: v.DistanceMeters,
				Message:        "Someone already registered from this location (" + v.MatchedName + "). Contact support to verify.",
			}, nil
		}
	} else {
		log.Printf("No location data available for duplicate check, proceeding without it")
	}

	proofURL, proofKey, err := s.proofs.Upload(ctx, in.Proof, in.ProofSize, in.ProofContentType, in.ProofFilename)
	if err != nil {
		s.metrics.IncSubmission(string(OutcomeInfraError))
		return &SubmitResult{
			Outcome: OutcomeInfraError,
			Message: err.Error(),
		}, errors.Wrap(err, "proof upload failed")
	}

	registration := &models.Registration{
		FullName:    name,
		Whatsapp:    phone,
		Category:    strings.TrimSpace(in.Category),
		PackageType: in.PackageType,
		ProofURL:    proofURL,
		ProofKey:    proofKey,
		Status:      models.StatusPending,
	}
	registration.FlattenVehicles(in.Vehicles)
	registration.SetCoordinate(coordinate)

	if err := s.repo.Create(registration); err != nil {
		// The proof was already stored; remove it to avoid an orphan.
		if rmErr := s.proofs.Remove(ctx, proofKey); rmErr != nil {
			log.Printf("Failed to remove orphaned proof %s: %v", proofKey, rmErr)
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// The identity race resolved against us at the unique index.
			s.metrics.IncSubmission(string(OutcomeAlreadyRegistered))
			return &SubmitResult{
				Outcome: OutcomeAlreadyRegistered,
				Message: "This name and WhatsApp number are already registered. Use different details.",
			}, nil
		}
		s.metrics.IncSubmission(string(OutcomeInfraError))
		return &SubmitResult{
			Outcome: OutcomeInfraError,
			Message: err.Error(),
		}, errors.Wrap(err, "failed to save registration")
	}

	s.refset.Invalidate()
	s.metrics.IncSubmission(string(OutcomeProceeded))
	return &SubmitResult{
		Outcome:      OutcomeProceeded,
		Registration: registration,
	}, nil
}

// engineFor returns the session's detection engine, or a throwaway engine
// with default policy when no session survives.
func (s *RegistrationService) engineFor(sess *Session) *DedupService {
	if sess != nil && sess.Dedup != nil {
		return sess.Dedup
	}
	return NewDedupService(s.repo, s.refset, s.metrics, DedupConfig{
		SubmitRadiusMeters:  50,
		MonitorRadiusMeters: 100,
		CheckInterval:       5 * time.Second,
		MovementMin:         10,
	})
}

// resolveCoordinate picks the best available coordinate for this attempt:
// the caller-supplied sample, the session's monitored sample, then one
// relaxed low-accuracy fix. Every failure path returns nil, never an error.
func (s *RegistrationService) resolveCoordinate(ctx context.Context, in SubmitInput, sess *Session) *models.Coordinate {
	if in.Sample != nil {
		c := in.Sample.Coordinate
		return &c
	}
	if sess == nil {
		return nil
	}
	if sample := sess.Monitor.CurrentSample(); sample != nil {
		c := sample.Coordinate
		return &c
	}

	sample, err := sess.Location.GetOnce(ctx, location.Options{
		EnableHighAccuracy: false,
		Timeout:            s.cfg.FallbackTimeout,
		MaximumAge:         s.cfg.FallbackMaxAge,
	})
	if err != nil {
		log.Printf("Fallback location fix failed: %v", err)
		return nil
	}
	c := sample.Coordinate
	return &c
}
