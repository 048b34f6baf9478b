package service

import (
	"context"
	"errors"
	"fmt"

	"campsite/internal/domain"
	"campsite/internal/metrics"
	"campsite/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ConflictGuard books a range with two defenses: a pre-check that reports
// the precise taken dates, and the storage uniqueness constraint that
// decides races the pre-check cannot see.
type ConflictGuard struct {
	store  domain.Store
	logger *zerolog.Logger
}

func NewConflictGuard(store domain.Store, logger *zerolog.Logger) *ConflictGuard {
	return &ConflictGuard{store: store, logger: logger}
}

// Book creates allocations, guest and link for a new reservation atomically.
func (g *ConflictGuard) Book(ctx context.Context, r models.DateRange, email, name string) (uuid.UUID, error) {
	existing, err := g.store.FindGuestByEmail(ctx, email)
	if err != nil {
		return uuid.Nil, fmt.Errorf("find guest: %w", err)
	}
	if existing != nil {
		return uuid.Nil, &domain.GuestConflictError{Email: email}
	}

	taken, err := g.store.AllocationsInRange(ctx, r.Start, r.End)
	if err != nil {
		return uuid.Nil, fmt.Errorf("check allocations: %w", err)
	}
	if len(taken) > 0 {
		metrics.IncDateConflict(metrics.PathPrecheck)
		return uuid.Nil, &domain.DateConflictError{Dates: models.AllocationDates(taken)}
	}

	id := uuid.New()
	err = g.store.WithTx(ctx, func(tx domain.Tables) error {
		if err := tx.InsertAllocations(ctx, models.AllocationsFor(id, r)); err != nil {
			return err
		}
		guest := &models.Guest{ID: uuid.New(), Email: email, Name: name}
		if err := tx.InsertGuest(ctx, guest); err != nil {
			return err
		}
		return tx.InsertLink(ctx, &models.Link{ReservationID: id, GuestID: guest.ID})
	})
	if err != nil {
		if errors.Is(err, domain.ErrDateTaken) {
			metrics.IncDateConflict(metrics.PathConstraint)
			g.logger.Warn().Str("range", r.String()).Msg("Concurrent booking won the date constraint")
			return uuid.Nil, &domain.DateConflictError{Dates: r.Dates()}
		}
		return uuid.Nil, err
	}

	return id, nil
}
