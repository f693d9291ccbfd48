package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by repositories when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Event represents a conference event. Code is the stable business key used
// as a join key by fees, registrations, and payments; the numeric surrogate
// ID never leaves the database layer.
// swagger:model Event
type Event struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Location    string    `json:"location"`

	// RegistrationDeadlineEarly bounds the early-bird pricing tier.
	// Nil means the event has no early tier at all.
	RegistrationDeadlineEarly *time.Time `json:"registration_deadline_early"`
	// RegistrationDeadlineLate is nil when the event has no late tier;
	// the early rate then applies indefinitely past the early deadline.
	RegistrationDeadlineLate *time.Time `json:"registration_deadline_late"`

	IsMainConference bool      `json:"is_main_conference"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PeriodFor resolves which pricing period applies to a registration made at t.
// This only picks the rate tier; whether registration is still open at t is a
// caller concern and is not enforced here.
func (e *Event) PeriodFor(t time.Time) RegistrationPeriod {
	if e.RegistrationDeadlineEarly == nil {
		return PeriodLate
	}
	if !t.After(endOfDay(*e.RegistrationDeadlineEarly)) {
		return PeriodEarly
	}
	if e.RegistrationDeadlineLate != nil {
		return PeriodLate
	}
	// No late tier: the early rate keeps applying after the deadline.
	return PeriodEarly
}

// endOfDay normalizes a date-typed deadline so that a registration made any
// time on the deadline day still counts as within it.
func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999999, t.Location())
}

// EventRepository defines the interface for event storage
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	GetByCode(ctx context.Context, code string) (*Event, error)
	ListByCodes(ctx context.Context, codes []string) ([]*Event, error)
	List(ctx context.Context) ([]*Event, error)
}
