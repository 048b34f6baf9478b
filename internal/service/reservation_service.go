package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"campsite/internal/domain"
	"campsite/internal/events"
	"campsite/internal/metrics"
	"campsite/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	OperationBook   = "book"
	OperationUpdate = "update"
	OperationCancel = "cancel"
)

type ReservationService struct {
	store    domain.Store
	guard    *ConflictGuard
	policy   *PolicyValidator
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

var _ domain.ReservationService = (*ReservationService)(nil)

func NewReservationService(store domain.Store, policy *PolicyValidator, eventBus domain.EventPublisher, logger *zerolog.Logger) *ReservationService {
	return &ReservationService{
		store:    store,
		guard:    NewConflictGuard(store, logger),
		policy:   policy,
		eventBus: eventBus,
		logger:   logger,
	}
}

// ParseReservationID converts a client-supplied id.
func ParseReservationID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, domain.NewValidationError(ReasonInvalidReservation, raw)
	}
	return id, nil
}

func (s *ReservationService) Book(ctx context.Context, r models.DateRange, email, name string) (uuid.UUID, error) {
	r = models.NewDateRange(r.Start, r.End)
	if err := s.policy.ValidateCreate(r); err != nil {
		s.record(OperationBook, err)
		return uuid.Nil, err
	}
	if err := s.policy.ValidateGuest(email, name); err != nil {
		s.record(OperationBook, err)
		return uuid.Nil, err
	}

	id, err := s.guard.Book(ctx, r, email, name)
	s.record(OperationBook, err)
	if err != nil {
		return uuid.Nil, err
	}

	s.logger.Info().Str("reservation_id", id.String()).Str("range", r.String()).Msg("Reservation booked")
	s.publishEvent(events.EventReservationBooked, events.ReservationEventPayload{
		ReservationID: id.String(),
		StartDate:     r.Start.Format(models.DateLayout),
		EndDate:       r.End.Format(models.DateLayout),
		GuestChanged:  true,
	})
	return id, nil
}

func (s *ReservationService) Update(ctx context.Context, id uuid.UUID, req domain.UpdateRequest) error {
	err := s.update(ctx, id, req)
	s.record(OperationUpdate, err)
	return err
}

func (s *ReservationService) update(ctx context.Context, id uuid.UUID, req domain.UpdateRequest) error {
	newRange, err := s.policy.ValidateUpdate(req.Start, req.End)
	if err != nil {
		return err
	}
	email := strings.TrimSpace(req.Email)
	name := strings.TrimSpace(req.Name)
	if email != "" {
		if err := s.policy.ValidateEmail(email); err != nil {
			return err
		}
	}

	err = s.store.WithTx(ctx, func(tx domain.Tables) error {
		current, err := tx.AllocationsByReservation(ctx, id)
		if err != nil {
			return fmt.Errorf("load allocations: %w", err)
		}
		if len(current) == 0 {
			return &domain.NotFoundError{ID: id}
		}

		if newRange != nil {
			if err := replaceAllocations(ctx, tx, id, *newRange); err != nil {
				return err
			}
		}

		if email != "" || name != "" {
			return updateGuest(ctx, tx, id, email, name)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrDateTaken) {
			metrics.IncDateConflict(metrics.PathConstraint)
			return &domain.DateConflictError{Dates: newRange.Dates()}
		}
		if errors.Is(err, domain.ErrInternalInconsistency) {
			s.logger.Error().Err(err).Str("reservation_id", id.String()).Msg("Reservation data is inconsistent")
		}
		return err
	}

	payload := events.ReservationEventPayload{
		ReservationID: id.String(),
		GuestChanged:  email != "" || name != "",
	}
	if newRange != nil {
		payload.StartDate = newRange.Start.Format(models.DateLayout)
		payload.EndDate = newRange.End.Format(models.DateLayout)
	}
	s.logger.Info().Str("reservation_id", id.String()).Bool("dates_changed", newRange != nil).Bool("guest_changed", payload.GuestChanged).Msg("Reservation updated")
	s.publishEvent(events.EventReservationUpdated, payload)
	return nil
}

// replaceAllocations frees the reservation's own dates before claiming the new
// ones, so a range overlapping the old one does not conflict with itself.
func replaceAllocations(ctx context.Context, tx domain.Tables, id uuid.UUID, r models.DateRange) error {
	if _, err := tx.DeleteAllocationsByReservation(ctx, id); err != nil {
		return fmt.Errorf("delete allocations: %w", err)
	}

	taken, err := tx.AllocationsInRange(ctx, r.Start, r.End)
	if err != nil {
		return fmt.Errorf("check allocations: %w", err)
	}
	if len(taken) > 0 {
		metrics.IncDateConflict(metrics.PathPrecheck)
		return &domain.DateConflictError{Dates: models.AllocationDates(taken)}
	}

	return tx.InsertAllocations(ctx, models.AllocationsFor(id, r))
}

func updateGuest(ctx context.Context, tx domain.Tables, id uuid.UUID, email, name string) error {
	link, err := tx.FindLink(ctx, id)
	if err != nil {
		return fmt.Errorf("find link: %w", err)
	}
	if link == nil {
		metrics.IncInconsistency(metrics.KindLink)
		return &domain.InconsistencyError{ReservationID: id, Missing: metrics.KindLink}
	}

	guest, err := tx.FindGuestByID(ctx, link.GuestID)
	if err != nil {
		return fmt.Errorf("find guest: %w", err)
	}
	if guest == nil {
		metrics.IncInconsistency(metrics.KindGuest)
		return &domain.InconsistencyError{ReservationID: id, Missing: metrics.KindGuest, MissingID: link.GuestID}
	}

	if email != "" {
		guest.Email = email
	}
	if name != "" {
		guest.Name = name
	}
	if err := tx.UpdateGuest(ctx, guest); err != nil {
		return fmt.Errorf("update guest: %w", err)
	}
	return nil
}

// Cancel deletes allocations, then link, then guest. Only the allocation step
// is mandatory; a missing link or guest is logged and counted.
func (s *ReservationService) Cancel(ctx context.Context, id uuid.UUID) (*domain.CancelResult, error) {
	result := &domain.CancelResult{}

	err := s.store.WithTx(ctx, func(tx domain.Tables) error {
		*result = domain.CancelResult{}

		current, err := tx.AllocationsByReservation(ctx, id)
		if err != nil {
			return fmt.Errorf("load allocations: %w", err)
		}
		if len(current) == 0 {
			return &domain.NotFoundError{ID: id}
		}

		deleted, err := tx.DeleteAllocationsByReservation(ctx, id)
		if err != nil {
			return fmt.Errorf("delete allocations: %w", err)
		}
		result.AllocationsDeleted = deleted

		link, err := tx.FindLink(ctx, id)
		if err != nil {
			return fmt.Errorf("find link: %w", err)
		}
		if link == nil {
			metrics.IncInconsistency(metrics.KindLink)
			s.logger.Error().Str("reservation_id", id.String()).Msg("Can't find link for cancelled reservation")
			return nil
		}
		if err := tx.DeleteLink(ctx, id); err != nil {
			return fmt.Errorf("delete link: %w", err)
		}
		result.LinkDeleted = true

		guest, err := tx.FindGuestByID(ctx, link.GuestID)
		if err != nil {
			return fmt.Errorf("find guest: %w", err)
		}
		if guest == nil {
			metrics.IncInconsistency(metrics.KindGuest)
			s.logger.Error().Str("reservation_id", id.String()).Str("guest_id", link.GuestID.String()).Msg("Can't find guest for cancelled reservation")
			return nil
		}
		if err := tx.DeleteGuest(ctx, guest.ID); err != nil {
			return fmt.Errorf("delete guest: %w", err)
		}
		result.GuestDeleted = true
		return nil
	})
	s.record(OperationCancel, err)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("reservation_id", id.String()).
		Int64("allocations_deleted", result.AllocationsDeleted).
		Bool("link_deleted", result.LinkDeleted).
		Bool("guest_deleted", result.GuestDeleted).
		Msg("Reservation cancelled")
	s.publishEvent(events.EventReservationCancelled, events.ReservationEventPayload{
		ReservationID: id.String(),
		GuestChanged:  result.GuestDeleted,
	})
	return result, nil
}

// GetAvailability marks every date of r free unless it is allocated.
func (s *ReservationService) GetAvailability(ctx context.Context, r models.DateRange) (models.Availability, error) {
	r = models.NewDateRange(r.Start, r.End)
	taken, err := s.store.AllocationsInRange(ctx, r.Start, r.End)
	if err != nil {
		return nil, fmt.Errorf("load allocations: %w", err)
	}

	availability := make(models.Availability, r.Days())
	for _, d := range r.Dates() {
		availability[d.Format(models.DateLayout)] = true
	}
	for _, a := range taken {
		availability[a.Date.Format(models.DateLayout)] = false
	}
	return availability, nil
}

// Reservation assembles the read model of an active reservation.
func (s *ReservationService) Reservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	allocs, err := s.store.AllocationsByReservation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load allocations: %w", err)
	}
	if len(allocs) == 0 {
		return nil, &domain.NotFoundError{ID: id}
	}

	res := &models.Reservation{ID: id.String()}
	for _, a := range allocs {
		res.Dates = append(res.Dates, a.Date.Format(models.DateLayout))
	}

	link, err := s.store.FindLink(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find link: %w", err)
	}
	if link != nil {
		guest, err := s.store.FindGuestByID(ctx, link.GuestID)
		if err != nil {
			return nil, fmt.Errorf("find guest: %w", err)
		}
		res.Guest = guest
	}
	return res, nil
}

func (s *ReservationService) publishEvent(eventType string, payload events.ReservationEventPayload) {
	if s.eventBus == nil {
		return
	}
	payload.OccurredAt = time.Now().UTC()

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("reservation_id", payload.ReservationID).Msg("publish event error")
	}
}

func (s *ReservationService) record(operation string, err error) {
	metrics.IncOperation(operation, outcome(err))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrDateConflict):
		return "date_conflict"
	case errors.Is(err, domain.ErrGuestConflict):
		return "guest_conflict"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInternalInconsistency):
		return "inconsistency"
	default:
		return "error"
	}
}
