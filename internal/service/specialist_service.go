package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/itops/helpdesk/internal/domain"
	"github.com/itops/helpdesk/internal/repository"
	apperrors "github.com/itops/helpdesk/pkg/util"
)

// SpecialistService exposes the specialist directory. Provisioning
// itself happens outside the service; this covers lookups and the
// availability toggle.
type SpecialistService struct {
	specialists repository.SpecialistRepository
}

// NewSpecialistService constructs the service.
func NewSpecialistService(specialists repository.SpecialistRepository) *SpecialistService {
	return &SpecialistService{specialists: specialists}
}

// List returns specialists matching the filter.
func (s *SpecialistService) List(ctx context.Context, filter repository.SpecialistFilter) ([]domain.Specialist, error) {
	list, err := s.specialists.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// Get fetches one specialist.
func (s *SpecialistService) Get(ctx context.Context, id int64) (*domain.Specialist, error) {
	spec, err := s.specialists.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("specialist", map[string]any{"specialist_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return spec, nil
}

// SetAvailability toggles whether a specialist receives new tickets.
// Tickets already bound stay bound; unavailability only removes the
// specialist from future candidate pools.
func (s *SpecialistService) SetAvailability(ctx context.Context, id int64, availability domain.Availability) (*domain.Specialist, error) {
	if availability != domain.AvailabilityAvailable && availability != domain.AvailabilityUnavailable {
		return nil, apperrors.NewValidationError("invalid availability", map[string]any{"availability": availability})
	}
	if err := s.specialists.SetAvailability(ctx, id, availability); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("specialist", map[string]any{"specialist_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return s.Get(ctx, id)
}
