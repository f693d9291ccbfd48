package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confreg/internal/domain"
)

// fakeEventRepo implements domain.EventRepository for tests.
type fakeEventRepo struct {
	byCode  map[string]*domain.Event
	listErr error
}

func newFakeEventRepo(events ...*domain.Event) *fakeEventRepo {
	f := &fakeEventRepo{byCode: make(map[string]*domain.Event)}
	for _, ev := range events {
		f.byCode[ev.Code] = ev
	}
	return f
}

func (f *fakeEventRepo) Create(ctx context.Context, ev *domain.Event) error {
	f.byCode[ev.Code] = ev
	return nil
}

func (f *fakeEventRepo) GetByCode(ctx context.Context, code string) (*domain.Event, error) {
	if ev, ok := f.byCode[code]; ok {
		return ev, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeEventRepo) ListByCodes(ctx context.Context, codes []string) ([]*domain.Event, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*domain.Event
	for _, code := range codes {
		if ev, ok := f.byCode[code]; ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) List(ctx context.Context) ([]*domain.Event, error) {
	var out []*domain.Event
	for _, ev := range f.byCode {
		out = append(out, ev)
	}
	return out, nil
}

// fakeFeeRepo implements domain.FeeRepository for tests.
type fakeFeeRepo struct {
	byKey   map[domain.FeeKey]*domain.Fee
	listErr error
}

func newFakeFeeRepo(fees ...*domain.Fee) *fakeFeeRepo {
	f := &fakeFeeRepo{byKey: make(map[domain.FeeKey]*domain.Fee)}
	for _, fee := range fees {
		f.byKey[fee.Key()] = fee
	}
	return f
}

func (f *fakeFeeRepo) ListByEventCodes(ctx context.Context, codes []string) ([]*domain.Fee, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*domain.Fee
	for _, fee := range f.byKey {
		for _, code := range codes {
			if fee.EventCode == code {
				out = append(out, fee)
				break
			}
		}
	}
	return out, nil
}

// fakePaymentRepo implements domain.PaymentRepository for tests.
type fakePaymentRepo struct {
	byRegistration map[string][]*domain.Payment
	settledByUser  map[string][]*domain.PaymentEvent
	attached       []*domain.PaymentEvent
	createErr      error
	attachErr      error
	nextID         int
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{
		byRegistration: make(map[string][]*domain.Payment),
		settledByUser:  make(map[string][]*domain.PaymentEvent),
	}
}

func (f *fakePaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	p.ID = fmt.Sprintf("payment-%d", f.nextID)
	f.byRegistration[p.RegistrationID] = append(f.byRegistration[p.RegistrationID], p)
	return nil
}

func (f *fakePaymentRepo) ListByRegistrationID(ctx context.Context, registrationID string) ([]*domain.Payment, error) {
	return f.byRegistration[registrationID], nil
}

func (f *fakePaymentRepo) AttachEvent(ctx context.Context, paymentID string, ev *domain.PaymentEvent) error {
	if f.attachErr != nil {
		return f.attachErr
	}
	f.attached = append(f.attached, ev)
	return nil
}

func (f *fakePaymentRepo) ListSettledEventsByUserID(ctx context.Context, userID string) ([]*domain.PaymentEvent, error) {
	return f.settledByUser[userID], nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func datePtr(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

const mainCode = "BCSMIF2025"

func seedEvents() *fakeEventRepo {
	return newFakeEventRepo(
		&domain.Event{
			Code:                      mainCode,
			Name:                      "8th BCSMIF",
			IsMainConference:          true,
			RegistrationDeadlineEarly: datePtr(2025, time.August, 15),
			RegistrationDeadlineLate:  datePtr(2025, time.September, 28),
		},
		&domain.Event{
			Code:                      "RAA2025",
			Name:                      "Risk Analysis Workshop",
			RegistrationDeadlineEarly: datePtr(2025, time.August, 15),
			RegistrationDeadlineLate:  datePtr(2025, time.September, 28),
		},
	)
}

func seedFees() *fakeFeeRepo {
	return newFakeFeeRepo(
		&domain.Fee{EventCode: mainCode, Category: domain.CategoryGradStudent, Format: domain.FormatInPerson, Period: domain.PeriodEarly, Price: dec("600.00")},
		&domain.Fee{EventCode: mainCode, Category: domain.CategoryGradStudent, Format: domain.FormatInPerson, Period: domain.PeriodLate, Price: dec("700.00")},
		&domain.Fee{EventCode: mainCode, Category: domain.CategoryProfessorABE, Format: domain.FormatInPerson, Period: domain.PeriodEarly, Price: dec("1200.00")},
		&domain.Fee{EventCode: mainCode, Category: domain.CategoryProfessorABE, Format: domain.FormatInPerson, Period: domain.PeriodLate, Price: dec("1400.00")},
		&domain.Fee{EventCode: "RAA2025", Category: domain.CategoryProfessorABE, Format: domain.FormatInPerson, Period: domain.PeriodEarly, Price: dec("250.00")},
		&domain.Fee{EventCode: "RAA2025", Category: domain.CategoryProfessorABE, Format: domain.FormatInPerson, Period: domain.PeriodEarly, Price: dec("100.00"), MainEventDiscount: true},
		&domain.Fee{EventCode: "RAA2025", Category: domain.CategoryGradStudent, Format: domain.FormatInPerson, Period: domain.PeriodEarly, Price: dec("100.00")},
	)
}

var (
	earlyDate = time.Date(2025, time.August, 10, 12, 0, 0, 0, time.UTC)
	lateDate  = time.Date(2025, time.September, 1, 12, 0, 0, 0, time.UTC)
)

func TestFeeCalculationService_CalculateFees(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		category      domain.ParticipantCategory
		codes         []string
		ref           time.Time
		format        domain.ParticipationFormat
		wantTotal     string
		wantDiscounts map[string]bool
		wantPeriods   map[string]domain.RegistrationPeriod
	}{
		{
			name:        "grad student early main conference",
			category:    domain.CategoryGradStudent,
			codes:       []string{mainCode},
			ref:         earlyDate,
			format:      domain.FormatInPerson,
			wantTotal:   "600.00",
			wantPeriods: map[string]domain.RegistrationPeriod{mainCode: domain.PeriodEarly},
		},
		{
			name:        "grad student late main conference",
			category:    domain.CategoryGradStudent,
			codes:       []string{mainCode},
			ref:         lateDate,
			format:      domain.FormatInPerson,
			wantTotal:   "700.00",
			wantPeriods: map[string]domain.RegistrationPeriod{mainCode: domain.PeriodLate},
		},
		{
			name:      "deadline day still counts as early",
			category:  domain.CategoryGradStudent,
			codes:     []string{mainCode},
			ref:       time.Date(2025, time.August, 15, 22, 0, 0, 0, time.UTC),
			format:    domain.FormatInPerson,
			wantTotal: "600.00",
		},
		{
			name:          "workshop discounted when bundled with main conference",
			category:      domain.CategoryProfessorABE,
			codes:         []string{mainCode, "RAA2025"},
			ref:           earlyDate,
			format:        domain.FormatInPerson,
			wantTotal:     "1300.00",
			wantDiscounts: map[string]bool{mainCode: false, "RAA2025": true},
		},
		{
			name:          "workshop alone prices at the normal rate",
			category:      domain.CategoryProfessorABE,
			codes:         []string{"RAA2025"},
			ref:           earlyDate,
			format:        domain.FormatInPerson,
			wantTotal:     "250.00",
			wantDiscounts: map[string]bool{"RAA2025": false},
		},
		{
			name:      "duplicate codes are priced once",
			category:  domain.CategoryGradStudent,
			codes:     []string{mainCode, mainCode, " " + mainCode + " "},
			ref:       earlyDate,
			format:    domain.FormatInPerson,
			wantTotal: "600.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewFeeCalculationService(seedEvents(), seedFees(), newFakePaymentRepo(), mainCode)

			result, err := svc.CalculateFees(ctx, tt.category, tt.codes, tt.ref, tt.format, nil)

			require.NoError(t, err)
			assert.False(t, result.HasErrors())
			assert.True(t, dec(tt.wantTotal).Equal(result.TotalFee),
				"total: want %s got %s", tt.wantTotal, result.TotalFee)
			for _, d := range result.Details {
				if want, ok := tt.wantDiscounts[d.EventCode]; ok {
					assert.Equal(t, want, d.DiscountApplied, "discount for %s", d.EventCode)
				}
				if want, ok := tt.wantPeriods[d.EventCode]; ok {
					assert.Equal(t, want, d.Period, "period for %s", d.EventCode)
				}
			}
			assert.Nil(t, result.TotalPaid)
			assert.Nil(t, result.AmountDue)
		})
	}
}

func TestFeeCalculationService_InvalidInput(t *testing.T) {
	ctx := context.Background()
	svc := NewFeeCalculationService(seedEvents(), seedFees(), newFakePaymentRepo(), mainCode)

	tests := []struct {
		name     string
		category domain.ParticipantCategory
		codes    []string
		format   domain.ParticipationFormat
	}{
		{name: "empty event list", category: domain.CategoryGradStudent, codes: nil, format: domain.FormatInPerson},
		{name: "whitespace-only codes", category: domain.CategoryGradStudent, codes: []string{"  ", ""}, format: domain.FormatInPerson},
		{name: "empty category", category: "  ", codes: []string{mainCode}, format: domain.FormatInPerson},
		{name: "unknown format", category: domain.CategoryGradStudent, codes: []string{mainCode}, format: "hybrid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.CalculateFees(ctx, tt.category, tt.codes, earlyDate, tt.format, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidInput))
			assert.Nil(t, result)
		})
	}
}

func TestFeeCalculationService_PerEventDegradation(t *testing.T) {
	ctx := context.Background()
	svc := NewFeeCalculationService(seedEvents(), seedFees(), newFakePaymentRepo(), mainCode)

	t.Run("unknown event code degrades per item", func(t *testing.T) {
		result, err := svc.CalculateFees(ctx, domain.CategoryGradStudent,
			[]string{mainCode, "GHOST2025"}, earlyDate, domain.FormatInPerson, nil)

		require.NoError(t, err)
		require.Len(t, result.Details, 2)
		assert.True(t, result.HasErrors())
		assert.Equal(t, []string{"GHOST2025"}, result.ErroredEventCodes())
		assert.True(t, dec("600.00").Equal(result.TotalFee))

		var ghost domain.FeeLine
		for _, d := range result.Details {
			if d.EventCode == "GHOST2025" {
				ghost = d
			}
		}
		assert.Equal(t, "event not found", ghost.Error)
		assert.True(t, ghost.CalculatedPrice.IsZero())
	})

	t.Run("missing rate row degrades per item", func(t *testing.T) {
		// No online rates are seeded at all.
		result, err := svc.CalculateFees(ctx, domain.CategoryGradStudent,
			[]string{mainCode}, earlyDate, domain.FormatOnline, nil)

		require.NoError(t, err)
		require.Len(t, result.Details, 1)
		assert.Equal(t, "fee configuration not found", result.Details[0].Error)
		assert.True(t, result.Details[0].CalculatedPrice.IsZero())
		assert.True(t, result.TotalFee.IsZero())
	})

	t.Run("unknown category degrades instead of failing", func(t *testing.T) {
		result, err := svc.CalculateFees(ctx, "alien_category",
			[]string{mainCode}, earlyDate, domain.FormatInPerson, nil)

		require.NoError(t, err)
		require.Len(t, result.Details, 1)
		assert.Equal(t, "fee configuration not found", result.Details[0].Error)
	})

	t.Run("missing discounted row falls back to the normal row", func(t *testing.T) {
		// grad_student has no discounted workshop row seeded.
		result, err := svc.CalculateFees(ctx, domain.CategoryGradStudent,
			[]string{mainCode, "RAA2025"}, earlyDate, domain.FormatInPerson, nil)

		require.NoError(t, err)
		assert.False(t, result.HasErrors())
		assert.True(t, dec("700.00").Equal(result.TotalFee))
		for _, d := range result.Details {
			assert.False(t, d.DiscountApplied, "no discount row exists for %s", d.EventCode)
		}
	})
}

func TestFeeCalculationService_ExistingRegistration(t *testing.T) {
	ctx := context.Background()

	registration := &domain.Registration{
		ID:     "reg-1",
		UserID: "user-1",
		Events: []*domain.RegistrationEvent{
			{EventCode: mainCode, PriceAtRegistration: dec("1200.00")},
		},
	}

	t.Run("union unlocks the workshop discount", func(t *testing.T) {
		svc := NewFeeCalculationService(seedEvents(), seedFees(), newFakePaymentRepo(), mainCode)

		// Only the workshop is requested; the main conference comes from the
		// existing registration.
		result, err := svc.CalculateFees(ctx, domain.CategoryProfessorABE,
			[]string{"RAA2025"}, earlyDate, domain.FormatInPerson, registration)

		require.NoError(t, err)
		require.Len(t, result.Details, 1)
		assert.True(t, result.Details[0].DiscountApplied)
		assert.True(t, dec("100.00").Equal(result.TotalFee))
	})

	t.Run("reconciliation reports paid and due", func(t *testing.T) {
		payments := newFakePaymentRepo()
		payments.byRegistration["reg-1"] = []*domain.Payment{
			{ID: "p1", RegistrationID: "reg-1", Status: domain.PaymentStatusPaid, Amount: dec("600.00")},
			{ID: "p2", RegistrationID: "reg-1", Status: domain.PaymentStatusPending, Amount: dec("200.00")},
			{ID: "p3", RegistrationID: "reg-1", Status: domain.PaymentStatusCancelled, Amount: dec("99.00")},
		}
		svc := NewFeeCalculationService(seedEvents(), seedFees(), payments, mainCode)

		result, err := svc.CalculateFees(ctx, domain.CategoryProfessorABE,
			[]string{mainCode}, earlyDate, domain.FormatInPerson, registration)

		require.NoError(t, err)
		require.NotNil(t, result.TotalPaid)
		require.NotNil(t, result.AmountDue)
		assert.True(t, dec("600.00").Equal(*result.TotalPaid))
		// 1200.00 total minus 600.00 settled; the pending 200.00 does not
		// reduce the obligation and the cancelled payment is ignored.
		assert.True(t, dec("600.00").Equal(*result.AmountDue))
	})

	t.Run("overpayment floors amount due at zero", func(t *testing.T) {
		payments := newFakePaymentRepo()
		payments.byRegistration["reg-1"] = []*domain.Payment{
			{ID: "p1", RegistrationID: "reg-1", Status: domain.PaymentStatusConfirmed, Amount: dec("2000.00")},
		}
		svc := NewFeeCalculationService(seedEvents(), seedFees(), payments, mainCode)

		result, err := svc.CalculateFees(ctx, domain.CategoryProfessorABE,
			[]string{mainCode}, earlyDate, domain.FormatInPerson, registration)

		require.NoError(t, err)
		require.NotNil(t, result.AmountDue)
		assert.True(t, result.AmountDue.IsZero())
	})
}

func TestFeeCalculationService_PricingProperties(t *testing.T) {
	ctx := context.Background()

	t.Run("discounted rows never exceed their normal counterparts", func(t *testing.T) {
		fees := seedFees()
		for key, fee := range fees.byKey {
			if !key.MainEventDiscount {
				continue
			}
			normalKey := key
			normalKey.MainEventDiscount = false
			normal, ok := fees.byKey[normalKey]
			require.True(t, ok, "discounted row %v has no normal counterpart", key)
			assert.True(t, fee.Price.LessThanOrEqual(normal.Price),
				"%s: discounted %s > normal %s", key.EventCode, fee.Price, normal.Price)
		}
	})

	t.Run("adding events never lowers the total", func(t *testing.T) {
		categories := []domain.ParticipantCategory{
			domain.CategoryGradStudent,
			domain.CategoryProfessorABE,
		}
		for _, category := range categories {
			t.Run(string(category), func(t *testing.T) {
				svc := NewFeeCalculationService(seedEvents(), seedFees(), newFakePaymentRepo(), mainCode)

				subset, err := svc.CalculateFees(ctx, category,
					[]string{"RAA2025"}, earlyDate, domain.FormatInPerson, nil)
				require.NoError(t, err)
				superset, err := svc.CalculateFees(ctx, category,
					[]string{mainCode, "RAA2025"}, earlyDate, domain.FormatInPerson, nil)
				require.NoError(t, err)

				assert.True(t, subset.TotalFee.LessThanOrEqual(superset.TotalFee),
					"subset %s > superset %s", subset.TotalFee, superset.TotalFee)
				// The bundle may discount the workshop but never surcharge it.
				assert.True(t, superset.PriceFor("RAA2025").LessThanOrEqual(subset.PriceFor("RAA2025")),
					"bundled workshop %s > standalone %s",
					superset.PriceFor("RAA2025"), subset.PriceFor("RAA2025"))
			})
		}
	})

	t.Run("total is the sum of its lines", func(t *testing.T) {
		svc := NewFeeCalculationService(seedEvents(), seedFees(), newFakePaymentRepo(), mainCode)

		for _, codes := range [][]string{
			{mainCode},
			{"RAA2025"},
			{mainCode, "RAA2025"},
		} {
			result, err := svc.CalculateFees(ctx, domain.CategoryProfessorABE,
				codes, earlyDate, domain.FormatInPerson, nil)
			require.NoError(t, err)

			sum := decimal.Zero
			for _, d := range result.Details {
				sum = sum.Add(d.CalculatedPrice)
			}
			assert.True(t, sum.Equal(result.TotalFee),
				"codes %v: lines sum to %s, total %s", codes, sum, result.TotalFee)
		}
	})
}

func TestFeeCalculationService_RepoError(t *testing.T) {
	ctx := context.Background()
	events := seedEvents()
	events.listErr = errors.New("connection reset")
	svc := NewFeeCalculationService(events, seedFees(), newFakePaymentRepo(), mainCode)

	_, err := svc.CalculateFees(ctx, domain.CategoryGradStudent,
		[]string{mainCode}, earlyDate, domain.FormatInPerson, nil)

	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrInvalidInput))
}
