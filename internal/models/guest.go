package models

import "github.com/google/uuid"

type Guest struct {
	ID    uuid.UUID `json:"id" db:"id"`
	Email string    `json:"email" db:"email"`
	Name  string    `json:"name" db:"name"`
}

// Link binds a reservation to its guest. Exactly one exists per reservation.
type Link struct {
	ReservationID uuid.UUID `json:"reservation_id" db:"reservation_id"`
	GuestID       uuid.UUID `json:"guest_id" db:"guest_id"`
}
