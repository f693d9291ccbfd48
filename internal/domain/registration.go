package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoRegistration is returned when an operation requires an existing
// registration and the user has none.
var ErrNoRegistration = errors.New("no existing registration found")

// ErrAlreadyRegistered is returned when creating a registration for a user
// who already has one.
var ErrAlreadyRegistered = errors.New("user already has a registration")

// Registration payment status values. These summarize the registration as a
// whole; individual payments carry their own PaymentStatus.
const (
	RegistrationAwaitingPayment = "pending_payment"
	RegistrationPaid            = "paid"
	RegistrationFree            = "free"
)

// Registration is one participant's intent to attend a set of events.
// CategorySnapshot is frozen at creation so later category changes never
// retroactively alter already-quoted prices.
// swagger:model Registration
type Registration struct {
	ID               string              `json:"id"`
	UserID           string              `json:"user_id"`
	FullName         string              `json:"full_name"`
	Email            string              `json:"email"`
	CategorySnapshot ParticipantCategory `json:"registration_category_snapshot"`
	Format           ParticipationFormat `json:"participation_format"`
	PaymentStatus    string              `json:"payment_status"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`

	// Events are the attached events with their price snapshots. Populated
	// by repository loads that join the association table.
	Events []*RegistrationEvent `json:"events,omitempty"`
}

// EventCodes returns the codes of the currently attached events.
func (r *Registration) EventCodes() []string {
	codes := make([]string, 0, len(r.Events))
	for _, ev := range r.Events {
		codes = append(codes, ev.EventCode)
	}
	return codes
}

// RegistrationEvent associates an event with a registration, carrying the
// price computed at the moment the event was added. That snapshot is the
// authoritative historical price regardless of later rate-table changes.
type RegistrationEvent struct {
	EventCode           string          `json:"event_code"`
	PriceAtRegistration decimal.Decimal `json:"price_at_registration"`
}

// RegistrationRepository defines storage operations for registrations and
// their event associations.
type RegistrationRepository interface {
	Create(ctx context.Context, reg *Registration) error
	GetByID(ctx context.Context, id string) (*Registration, error)
	// GetByUserID loads the user's registration with its events. A user has
	// at most one registration in this design.
	GetByUserID(ctx context.Context, userID string) (*Registration, error)
	// GetByUserIDForUpdate is GetByUserID with a row lock on the
	// registration. Flows that mutate the event set call this inside their
	// transaction so concurrent requests for the same registration serialize
	// and the second one re-reads the committed event set.
	GetByUserIDForUpdate(ctx context.Context, userID string) (*Registration, error)
	// AttachEvent upserts the event association with its price snapshot;
	// attaching an already-attached event updates nothing but the price.
	AttachEvent(ctx context.Context, registrationID string, ev *RegistrationEvent) error
	UpdatePaymentStatus(ctx context.Context, registrationID, status string) error
	// ListAwaitingPaymentWithoutPayments returns registrations whose payment
	// status claims an outstanding payment exists while no payment row does.
	ListAwaitingPaymentWithoutPayments(ctx context.Context) ([]*Registration, error)
}

// TxRunner runs fn inside one database transaction. Repository calls made
// with the ctx passed to fn join that transaction; fn returning an error
// rolls everything back.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CreateRegistrationInput is the input for the initial signup flow.
type CreateRegistrationInput struct {
	UserID        string
	FullName      string
	Email         string
	Category      ParticipantCategory
	Format        ParticipationFormat
	EventCodes    []string
	PaymentMethod string
}

// RegistrationService handles the initial signup flow.
type RegistrationService interface {
	// CreateRegistration prices the selected events, creates the registration
	// with its category snapshot, attaches events with price snapshots, and
	// creates the initial pending payment - all in one transaction.
	CreateRegistration(ctx context.Context, input CreateRegistrationInput) (*Registration, *Payment, error)
	GetMyRegistration(ctx context.Context, userID string) (*Registration, error)
}

// AdditionalFeeQuote is the outcome of pricing an additional-events request.
type AdditionalFeeQuote struct {
	CanRegister     bool            `json:"can_register"`
	TotalNewFee     decimal.Decimal `json:"total_new_fee"`
	DifferenceToPay decimal.Decimal `json:"difference_to_pay"`
	Details         []FeeLine       `json:"details"`
	BlockedEvents   []string        `json:"blocked_events,omitempty"`
	Message         string          `json:"message"`
}

// AdditionalRegistrationResult is the outcome of creating an additional
// registration.
type AdditionalRegistrationResult struct {
	Success bool     `json:"success"`
	Payment *Payment `json:"payment,omitempty"`
	Message string   `json:"message"`
}

// RegistrationEligibility reports whether a set of events can still be
// requested by the user.
type RegistrationEligibility struct {
	CanRegister   bool     `json:"can_register"`
	Message       string   `json:"message"`
	BlockedEvents []string `json:"blocked_events,omitempty"`
}

// AdditionalRegistrationService handles adding events to an existing
// registration. Events covered by a settled payment are immutable: asking
// for one again is a business-rule rejection, never an error.
type AdditionalRegistrationService interface {
	CalculateAdditionalEventsFees(ctx context.Context, userID string, newEventCodes []string, category ParticipantCategory, format ParticipationFormat) (*AdditionalFeeQuote, error)
	CreateAdditionalRegistration(ctx context.Context, userID string, newEventCodes []string, category ParticipantCategory, format ParticipationFormat, paymentMethod string) (*AdditionalRegistrationResult, error)
	CanUserRegisterForEvents(ctx context.Context, userID string, eventCodes []string) (*RegistrationEligibility, error)
	// UserAccessibleEvents returns the codes of the events the user holds
	// through settled payments.
	UserAccessibleEvents(ctx context.Context, userID string) ([]string, error)
}

// RepairSummary is the outcome of one orphan repair run.
type RepairSummary struct {
	Fixed   int `json:"fixed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// OrphanRepairService recreates payment rows for registrations that were
// left awaiting payment with no payment record after a prior failure.
type OrphanRepairService interface {
	RepairOrphanedPayments(ctx context.Context) (*RepairSummary, error)
}
