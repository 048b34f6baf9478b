package models

import (
	"time"

	"github.com/google/uuid"
)

// Allocation is ownership of a single calendar date by a reservation.
// At most one allocation exists per date.
type Allocation struct {
	Date          time.Time `json:"date" db:"date"`
	ReservationID uuid.UUID `json:"reservation_id" db:"reservation_id"`
}

// AllocationsFor builds one allocation per date of r.
func AllocationsFor(reservationID uuid.UUID, r DateRange) []*Allocation {
	dates := r.Dates()
	out := make([]*Allocation, 0, len(dates))
	for _, d := range dates {
		out = append(out, &Allocation{Date: d, ReservationID: reservationID})
	}
	return out
}

// AllocationDates extracts the dates of allocs.
func AllocationDates(allocs []*Allocation) []time.Time {
	dates := make([]time.Time, 0, len(allocs))
	for _, a := range allocs {
		dates = append(dates, a.Date)
	}
	return dates
}
