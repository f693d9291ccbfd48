package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput is returned when a caller passes structurally invalid input
// (empty event list, unknown category or format). This is a caller bug and is
// distinct from a rate-table configuration gap, which degrades per item.
var ErrInvalidInput = errors.New("invalid input")

// ErrUnpricedEvents is returned when a flow refuses to finalize a
// registration because some selected events could not be priced.
var ErrUnpricedEvents = errors.New("some events could not be priced")

// ParticipantCategory is the pricing category frozen onto a registration at
// creation time.
type ParticipantCategory string

const (
	CategoryUndergradStudent ParticipantCategory = "undergrad_student"
	CategoryGradStudent      ParticipantCategory = "grad_student"
	CategoryProfessorABE     ParticipantCategory = "professor_abe"
	CategoryProfessorNonABE  ParticipantCategory = "professor_non_abe_professional"
)

// Valid reports whether c is one of the known participant categories.
func (c ParticipantCategory) Valid() bool {
	switch c {
	case CategoryUndergradStudent, CategoryGradStudent, CategoryProfessorABE, CategoryProfessorNonABE:
		return true
	}
	return false
}

// ParticipationFormat is how a participant attends. A participant does not
// mix formats within one calculation.
type ParticipationFormat string

const (
	FormatInPerson ParticipationFormat = "in-person"
	FormatOnline   ParticipationFormat = "online"
)

// Valid reports whether f is a known participation format.
func (f ParticipationFormat) Valid() bool {
	return f == FormatInPerson || f == FormatOnline
}

// RegistrationPeriod is the pricing tier resolved per event from its deadlines.
type RegistrationPeriod string

const (
	PeriodEarly RegistrationPeriod = "early"
	PeriodLate  RegistrationPeriod = "late"
)

// FeeKey is the typed composite key of the rate table.
type FeeKey struct {
	EventCode         string
	Category          ParticipantCategory
	Format            ParticipationFormat
	Period            RegistrationPeriod
	MainEventDiscount bool
}

// Fee is one row of the rate table: a price for a unique FeeKey tuple.
// For satellite workshops both a discounted and a non-discounted row are
// expected per (event, category, format, period); the main conference carries
// only the non-discounted row.
// swagger:model Fee
type Fee struct {
	ID                string              `json:"id"`
	EventCode         string              `json:"event_code"`
	Category          ParticipantCategory `json:"participant_category"`
	Format            ParticipationFormat `json:"type"`
	Period            RegistrationPeriod  `json:"period"`
	Price             decimal.Decimal     `json:"price"`
	MainEventDiscount bool                `json:"is_discount_for_main_event_participant"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// Key returns the composite rate-table key of this row.
func (f *Fee) Key() FeeKey {
	return FeeKey{
		EventCode:         f.EventCode,
		Category:          f.Category,
		Format:            f.Format,
		Period:            f.Period,
		MainEventDiscount: f.MainEventDiscount,
	}
}

// FeeRepository defines read access to the rate table. A missing row is
// reported as ErrNotFound, never invented as a zero price.
type FeeRepository interface {
	// ListByEventCodes bulk-loads every rate row for the given events so the
	// engine can resolve all lookups from one round trip.
	ListByEventCodes(ctx context.Context, codes []string) ([]*Fee, error)
}

// FeeLine is the per-event outcome of a fee calculation. Error is set (and
// CalculatedPrice zero) when the event was unknown or its rate row missing.
type FeeLine struct {
	EventCode       string             `json:"event_code"`
	EventName       string             `json:"event_name,omitempty"`
	Period          RegistrationPeriod `json:"period,omitempty"`
	CalculatedPrice decimal.Decimal    `json:"calculated_price"`
	DiscountApplied bool               `json:"is_discount_applied"`
	Error           string             `json:"error,omitempty"`
}

// FeeResult is the aggregate outcome of CalculateFees. TotalPaid and
// AmountDue are populated only when an existing registration was supplied.
type FeeResult struct {
	Details  []FeeLine       `json:"details"`
	TotalFee decimal.Decimal `json:"total_fee"`

	TotalPaid *decimal.Decimal `json:"total_paid,omitempty"`
	AmountDue *decimal.Decimal `json:"amount_due,omitempty"`
}

// HasErrors reports whether any event in the batch failed to price. A caller
// must not finalize a registration containing unpriced events.
func (r *FeeResult) HasErrors() bool {
	for _, d := range r.Details {
		if d.Error != "" {
			return true
		}
	}
	return false
}

// ErroredEventCodes returns the codes of the events that failed to price.
func (r *FeeResult) ErroredEventCodes() []string {
	var codes []string
	for _, d := range r.Details {
		if d.Error != "" {
			codes = append(codes, d.EventCode)
		}
	}
	return codes
}

// PriceFor returns the calculated price for the given event code, or zero if
// the code is not part of the result.
func (r *FeeResult) PriceFor(eventCode string) decimal.Decimal {
	for _, d := range r.Details {
		if d.EventCode == eventCode {
			return d.CalculatedPrice
		}
	}
	return decimal.Zero
}

// FeeCalculationService prices a set of events for one participant.
type FeeCalculationService interface {
	// CalculateFees resolves the applicable period per event at referenceDate,
	// applies the main-conference bundling discount against the union of
	// eventCodes and the existing registration's events, and sums the total.
	// Unknown codes and missing rate rows degrade per item; structurally
	// invalid input fails immediately with ErrInvalidInput.
	CalculateFees(ctx context.Context, category ParticipantCategory, eventCodes []string, referenceDate time.Time, format ParticipationFormat, existing *Registration) (*FeeResult, error)
}
