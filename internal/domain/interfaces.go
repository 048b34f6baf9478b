package domain

import (
	"context"
	"time"

	"campsite/internal/models"

	"github.com/google/uuid"
)

// AllocationStore is the per-date ownership table. Storage guarantees at most
// one allocation per date; inserting a taken date fails with ErrDateTaken.
type AllocationStore interface {
	AllocationsInRange(ctx context.Context, start, end time.Time) ([]*models.Allocation, error)
	AllocationsByReservation(ctx context.Context, reservationID uuid.UUID) ([]*models.Allocation, error)
	InsertAllocations(ctx context.Context, allocs []*models.Allocation) error
	DeleteAllocationsByReservation(ctx context.Context, reservationID uuid.UUID) (int64, error)
}

// IdentityStore holds guests. Find methods return nil, nil when absent.
type IdentityStore interface {
	FindGuestByEmail(ctx context.Context, email string) (*models.Guest, error)
	FindGuestByID(ctx context.Context, id uuid.UUID) (*models.Guest, error)
	InsertGuest(ctx context.Context, guest *models.Guest) error
	UpdateGuest(ctx context.Context, guest *models.Guest) error
	DeleteGuest(ctx context.Context, id uuid.UUID) error
}

// LinkStore maps a reservation to its guest.
type LinkStore interface {
	FindLink(ctx context.Context, reservationID uuid.UUID) (*models.Link, error)
	InsertLink(ctx context.Context, link *models.Link) error
	DeleteLink(ctx context.Context, reservationID uuid.UUID) error
}

type Tables interface {
	AllocationStore
	IdentityStore
	LinkStore
}

// Store runs fn inside one atomic transaction; a non-nil error from fn rolls
// every write back. Methods of the embedded Tables run outside a transaction.
type Store interface {
	Tables
	WithTx(ctx context.Context, fn func(tx Tables) error) error
	Close() error
}

// AvailabilityCache is a read-through cache over availability queries.
// Any committed mutation must be followed by InvalidateAll.
type AvailabilityCache interface {
	Get(ctx context.Context, r models.DateRange) (models.Availability, bool, error)
	Set(ctx context.Context, r models.DateRange, availability models.Availability) error
	InvalidateAll(ctx context.Context) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type ReservationService interface {
	Book(ctx context.Context, r models.DateRange, email, name string) (uuid.UUID, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateRequest) error
	Cancel(ctx context.Context, id uuid.UUID) (*CancelResult, error)
	GetAvailability(ctx context.Context, r models.DateRange) (models.Availability, error)
}

type AvailabilityReader interface {
	GetAvailability(ctx context.Context, r models.DateRange) (models.Availability, error)
}

// UpdateRequest carries optional changes. Nil dates and blank strings mean
// "not supplied".
type UpdateRequest struct {
	Start *time.Time
	End   *time.Time
	Email string
	Name  string
}

// CancelResult reports the outcome of each deletion step of a cancel.
type CancelResult struct {
	AllocationsDeleted int64 `json:"allocations_deleted"`
	LinkDeleted        bool  `json:"link_deleted"`
	GuestDeleted       bool  `json:"guest_deleted"`
}
