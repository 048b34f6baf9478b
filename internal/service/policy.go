package service

import (
	"net/mail"
	"strings"
	"time"

	"campsite/internal/config"
	"campsite/internal/domain"
	"campsite/internal/models"
)

const (
	ReasonNotInFuture        = "start date must be in the future"
	ReasonRangeInverted      = "range inverted: start date is after end date"
	ReasonTooLong            = "too long: a stay can't exceed %d days"
	ReasonTooFarAhead        = "too far ahead: start date can't be more than %d month(s) from today"
	ReasonPartialDatePair    = "partial date pair: start date and end date must be set together"
	ReasonStartInPast        = "start date is in the past"
	ReasonWindowTooWide      = "window too wide: an availability query can't span more than %d month(s)"
	ReasonNameRequired       = "name must not be blank"
	ReasonEmailRequired      = "email must not be blank"
	ReasonEmailInvalid       = "email %q is not a valid address"
	ReasonInvalidReservation = "can't convert %s to uuid"
)

// PolicyValidator checks requests against the campsite booking rules.
// It holds no state besides its configuration and clock.
type PolicyValidator struct {
	maxStayDays      int
	maxAdvanceMonths int
	windowMonths     int
	maxWindowMonths  int
	now              func() time.Time
}

func NewPolicyValidator(cfg config.PolicyConfig) *PolicyValidator {
	p := &PolicyValidator{
		maxStayDays:      cfg.MaxStayDays,
		maxAdvanceMonths: cfg.MaxAdvanceMonths,
		windowMonths:     cfg.DefaultWindowMonths,
		maxWindowMonths:  cfg.MaxWindowMonths,
		now:              time.Now,
	}
	if p.maxStayDays <= 0 {
		p.maxStayDays = models.DefaultMaxStayDays
	}
	if p.maxAdvanceMonths <= 0 {
		p.maxAdvanceMonths = models.DefaultMaxAdvanceMonths
	}
	if p.windowMonths <= 0 {
		p.windowMonths = models.DefaultWindowMonths
	}
	if p.maxWindowMonths <= 0 {
		p.maxWindowMonths = models.DefaultMaxWindowMonths
	}
	if p.windowMonths > p.maxWindowMonths {
		p.maxWindowMonths = p.windowMonths
	}
	return p
}

// WithClock replaces the time source.
func (p *PolicyValidator) WithClock(now func() time.Time) *PolicyValidator {
	p.now = now
	return p
}

// Today returns the current calendar date.
func (p *PolicyValidator) Today() time.Time {
	return models.Day(p.now())
}

// ValidateCreate applies the create-time range rules in order: future start,
// ordering, stay length, advance window.
func (p *PolicyValidator) ValidateCreate(r models.DateRange) error {
	today := p.Today()

	if !r.Start.After(today) {
		return domain.NewValidationError(ReasonNotInFuture)
	}
	if r.Start.After(r.End) {
		return domain.NewValidationError(ReasonRangeInverted)
	}
	if r.Days() > p.maxStayDays {
		return domain.NewValidationError(ReasonTooLong, p.maxStayDays)
	}
	if r.Start.After(today.AddDate(0, p.maxAdvanceMonths, 0)) {
		return domain.NewValidationError(ReasonTooFarAhead, p.maxAdvanceMonths)
	}
	return nil
}

// ValidateUpdate returns the new range when both ends are supplied, nil when
// neither is.
func (p *PolicyValidator) ValidateUpdate(start, end *time.Time) (*models.DateRange, error) {
	switch {
	case start == nil && end == nil:
		return nil, nil
	case start == nil || end == nil:
		return nil, domain.NewValidationError(ReasonPartialDatePair)
	}

	r := models.NewDateRange(*start, *end)
	if err := p.ValidateCreate(r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ValidateAvailabilityQuery resolves the query window. Without dates it
// covers today through the default window.
func (p *PolicyValidator) ValidateAvailabilityQuery(start, end *time.Time) (models.DateRange, error) {
	today := p.Today()

	switch {
	case start == nil && end == nil:
		return models.NewDateRange(today, today.AddDate(0, p.windowMonths, 0)), nil
	case start == nil || end == nil:
		return models.DateRange{}, domain.NewValidationError(ReasonPartialDatePair)
	}

	r := models.NewDateRange(*start, *end)
	if r.Start.After(r.End) {
		return models.DateRange{}, domain.NewValidationError(ReasonRangeInverted)
	}
	if r.Start.Before(today) {
		return models.DateRange{}, domain.NewValidationError(ReasonStartInPast)
	}
	if r.End.After(r.Start.AddDate(0, p.maxWindowMonths, 0)) {
		return models.DateRange{}, domain.NewValidationError(ReasonWindowTooWide, p.maxWindowMonths)
	}
	return r, nil
}

// ValidateGuest checks the guest fields of a new booking.
func (p *PolicyValidator) ValidateGuest(email, name string) error {
	if strings.TrimSpace(name) == "" {
		return domain.NewValidationError(ReasonNameRequired)
	}
	if strings.TrimSpace(email) == "" {
		return domain.NewValidationError(ReasonEmailRequired)
	}
	return p.ValidateEmail(email)
}

// ValidateEmail accepts a bare address only, without display name.
func (p *PolicyValidator) ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return domain.NewValidationError(ReasonEmailInvalid, email)
	}
	return nil
}
