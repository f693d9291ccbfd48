package domain

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of a single payment record.
type PaymentStatus string

const (
	PaymentStatusPending         PaymentStatus = "pending"
	PaymentStatusPendingApproval PaymentStatus = "pending_approval"
	PaymentStatusPaid            PaymentStatus = "paid"
	PaymentStatusConfirmed       PaymentStatus = "confirmed"
	PaymentStatusCancelled       PaymentStatus = "cancelled"
	PaymentStatusRejected        PaymentStatus = "rejected"
)

// Settled reports whether the payment counts toward total paid.
func (s PaymentStatus) Settled() bool {
	return s == PaymentStatusPaid || s == PaymentStatusConfirmed
}

// AwaitingSettlement reports whether the payment counts toward total pending.
func (s PaymentStatus) AwaitingSettlement() bool {
	return s == PaymentStatusPending || s == PaymentStatusPendingApproval
}

// Payment is one payment record of a registration. Amount is immutable once
// created: a participant who owes more after a modification gets an
// additional payment row, never an edit to an existing one.
// swagger:model Payment
type Payment struct {
	ID             string          `json:"id"`
	RegistrationID string          `json:"registration_id"`
	UserID         string          `json:"user_id"`
	Reference      string          `json:"payment_reference"`
	Method         string          `json:"payment_method"`
	Status         PaymentStatus   `json:"status"`
	Amount         decimal.Decimal `json:"amount"`
	ProofPath      *string         `json:"payment_proof_path,omitempty"`
	ConfirmedAt    *time.Time      `json:"confirmed_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// PaymentEvent links an event to the payment that covers it, carrying the
// price charged for that event inside that payment.
type PaymentEvent struct {
	EventCode       string          `json:"event_code"`
	IndividualPrice decimal.Decimal `json:"individual_price"`
	RegistrationID  string          `json:"registration_id"`
}

// GeneratePaymentReference returns a human-quotable payment reference of the
// form PAY-20250828-3FA9C1.
func GeneratePaymentReference() string {
	const alphabet = "0123456789ABCDEF"
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform is broken; fall back to time.
		return fmt.Sprintf("PAY-%s-%06d", time.Now().Format("20060102"), time.Now().UnixNano()%1000000)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return fmt.Sprintf("PAY-%s-%s", time.Now().Format("20060102"), string(buf))
}

// TotalPaid sums the amounts of settled (paid/confirmed) payments.
func TotalPaid(payments []*Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if p.Status.Settled() {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// TotalPending sums the amounts of payments awaiting settlement. Cancelled
// and rejected payments are excluded from every sum.
func TotalPending(payments []*Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if p.Status.AwaitingSettlement() {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// AmountDue is the outstanding obligation: totalFee minus settled payments,
// floored at zero so over-payment never yields a negative due amount.
func AmountDue(totalFee decimal.Decimal, payments []*Payment) decimal.Decimal {
	due := totalFee.Sub(TotalPaid(payments))
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}

// PaymentRepository defines storage operations for payments and their event
// associations.
type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	ListByRegistrationID(ctx context.Context, registrationID string) ([]*Payment, error)
	AttachEvent(ctx context.Context, paymentID string, ev *PaymentEvent) error
	// ListSettledEventsByUserID returns the event associations of every
	// settled payment of the user. These events are immutable: they can
	// never be re-requested or repriced.
	ListSettledEventsByUserID(ctx context.Context, userID string) ([]*PaymentEvent, error)
}
