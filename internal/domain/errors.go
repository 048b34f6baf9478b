package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"campsite/internal/models"

	"github.com/google/uuid"
)

var (
	ErrValidation            = errors.New("validation error")
	ErrDateConflict          = errors.New("dates already booked")
	ErrGuestConflict         = errors.New("guest already has a booking")
	ErrNotFound              = errors.New("booking not found")
	ErrInternalInconsistency = errors.New("internal inconsistency")

	// ErrDateTaken is returned by stores when the allocation date uniqueness
	// constraint rejects a write.
	ErrDateTaken = errors.New("allocation date already taken")
)

// ValidationError is a caller-correctable rejection of a request.
type ValidationError struct {
	Reason string
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// DateConflictError lists requested dates that are already allocated.
type DateConflictError struct {
	Dates []time.Time
}

func (e *DateConflictError) Error() string {
	parts := make([]string, 0, len(e.Dates))
	for _, d := range e.Dates {
		parts = append(parts, d.Format(models.DateLayout))
	}
	return fmt.Sprintf("there is another booking for dates %s", strings.Join(parts, ","))
}

func (e *DateConflictError) Is(target error) bool { return target == ErrDateConflict }

type GuestConflictError struct {
	Email string
}

func (e *GuestConflictError) Error() string {
	return fmt.Sprintf("booking for user %s already exists", e.Email)
}

func (e *GuestConflictError) Is(target error) bool { return target == ErrGuestConflict }

type NotFoundError struct {
	ID uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("booking with id %s does not exist", e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InconsistencyError signals a link or guest record that should exist but
// does not. It is a defect, never a user error.
type InconsistencyError struct {
	ReservationID uuid.UUID
	Missing       string
	MissingID     uuid.UUID
}

func (e *InconsistencyError) Error() string {
	if e.MissingID != uuid.Nil {
		return fmt.Sprintf("can't find %s %s for booking %s", e.Missing, e.MissingID, e.ReservationID)
	}
	return fmt.Sprintf("can't find %s for booking %s", e.Missing, e.ReservationID)
}

func (e *InconsistencyError) Is(target error) bool { return target == ErrInternalInconsistency }
