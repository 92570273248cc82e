package services

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"registration-service/internal/models"
	"registration-service/internal/repository"
	"registration-service/internal/storage"
)

// AdminStats summarizes the registration table for the dashboard.
type AdminStats struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Verified int64 `json:"verified"`
}

// AdminService provides the management operations behind the admin
// dashboard: listing, verification and deletion of registrations.
type AdminService struct {
	repo   repository.RegistrationRepository
	proofs storage.ProofStore
	refset *storage.RefsetCache
}

// NewAdminService creates a new AdminService.
func NewAdminService(repo repository.RegistrationRepository, proofs storage.ProofStore, refset *storage.RefsetCache) *AdminService {
	return &AdminService{repo: repo, proofs: proofs, refset: refset}
}

// ListRegistrations returns all registrations, newest first.
func (s *AdminService) ListRegistrations() ([]models.Registration, error) {
	return s.repo.List()
}

// GetRegistration returns one registration by ID.
func (s *AdminService) GetRegistration(id uuid.UUID) (*models.Registration, error) {
	return s.repo.GetByID(id)
}

// VerifyRegistration marks a registration as verified.
func (s *AdminService) VerifyRegistration(id uuid.UUID) (*models.Registration, error) {
	if err := s.repo.UpdateStatus(id, models.StatusVerified); err != nil {
		return nil, err
	}
	return s.repo.GetByID(id)
}

// DeleteRegistration removes a registration together with its stored proof
// object. A failed proof removal is logged but does not block the delete;
// the record is the source of truth.
func (s *AdminService) DeleteRegistration(ctx context.Context, id uuid.UUID) error {
	registration, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if registration.ProofKey != "" {
		if err := s.proofs.Remove(ctx, registration.ProofKey); err != nil {
			log.Printf("Failed to remove proof object %s: %v", registration.ProofKey, err)
		}
	}
	if err := s.repo.Delete(id); err != nil {
		return errors.Wrap(err, "failed to delete registration")
	}
	s.refset.Invalidate()
	return nil
}

// Stats returns the dashboard counters.
func (s *AdminService) Stats() (*AdminStats, error) {
	total, pending, verified, err := s.repo.Counts()
	if err != nil {
		return nil, err
	}
	return &AdminStats{Total: total, Pending: pending, Verified: verified}, nil
}
