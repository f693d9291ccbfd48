package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confreg/internal/domain"
)

// fakeRegistrationRepo implements domain.RegistrationRepository for tests.
type fakeRegistrationRepo struct {
	byID          map[string]*domain.Registration
	byUser        map[string]*domain.Registration
	attached      map[string][]*domain.RegistrationEvent
	statusUpdates map[string][]string
	orphans       []*domain.Registration
	lockedReads   int
	createErr     error
	attachErr     error
	updateErr     error
	scanErr       error
	nextID        int
}

func newFakeRegistrationRepo() *fakeRegistrationRepo {
	return &fakeRegistrationRepo{
		byID:          make(map[string]*domain.Registration),
		byUser:        make(map[string]*domain.Registration),
		attached:      make(map[string][]*domain.RegistrationEvent),
		statusUpdates: make(map[string][]string),
	}
}

func (f *fakeRegistrationRepo) add(reg *domain.Registration) {
	f.byID[reg.ID] = reg
	f.byUser[reg.UserID] = reg
	f.attached[reg.ID] = reg.Events
}

func (f *fakeRegistrationRepo) Create(ctx context.Context, reg *domain.Registration) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	reg.ID = fmt.Sprintf("reg-%d", f.nextID)
	f.add(reg)
	return nil
}

func (f *fakeRegistrationRepo) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	if reg, ok := f.byID[id]; ok {
		return reg, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRegistrationRepo) GetByUserID(ctx context.Context, userID string) (*domain.Registration, error) {
	if reg, ok := f.byUser[userID]; ok {
		return reg, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRegistrationRepo) GetByUserIDForUpdate(ctx context.Context, userID string) (*domain.Registration, error) {
	f.lockedReads++
	return f.GetByUserID(ctx, userID)
}

func (f *fakeRegistrationRepo) AttachEvent(ctx context.Context, registrationID string, ev *domain.RegistrationEvent) error {
	if f.attachErr != nil {
		return f.attachErr
	}
	f.attached[registrationID] = append(f.attached[registrationID], ev)
	return nil
}

func (f *fakeRegistrationRepo) UpdatePaymentStatus(ctx context.Context, registrationID, status string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.byID[registrationID]; !ok {
		return domain.ErrNotFound
	}
	f.statusUpdates[registrationID] = append(f.statusUpdates[registrationID], status)
	return nil
}

func (f *fakeRegistrationRepo) ListAwaitingPaymentWithoutPayments(ctx context.Context) ([]*domain.Registration, error) {
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	return f.orphans, nil
}

// fakeTxRunner implements domain.TxRunner for tests. It runs fn inline and
// counts invocations.
type fakeTxRunner struct {
	calls    int
	beginErr error
}

func (f *fakeTxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if f.beginErr != nil {
		return f.beginErr
	}
	f.calls++
	return fn(ctx)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setNow pins the service clock so period resolution is deterministic.
func setNow(t *testing.T, svc any, at time.Time) {
	t.Helper()
	switch s := svc.(type) {
	case *registrationService:
		s.now = func() time.Time { return at }
	case *additionalRegistrationService:
		s.now = func() time.Time { return at }
	default:
		t.Fatalf("cannot pin clock on %T", svc)
	}
}

func TestRegistrationService_CreateRegistration(t *testing.T) {
	ctx := context.Background()

	input := domain.CreateRegistrationInput{
		UserID:        "user-1",
		FullName:      "Ana Silva",
		Email:         "ana@example.org",
		Category:      domain.CategoryGradStudent,
		Format:        domain.FormatInPerson,
		EventCodes:    []string{mainCode},
		PaymentMethod: "bank_transfer",
	}

	t.Run("creates registration with pending payment", func(t *testing.T) {
		regRepo := newFakeRegistrationRepo()
		payRepo := newFakePaymentRepo()
		tx := &fakeTxRunner{}
		feeSvc := NewFeeCalculationService(seedEvents(), seedFees(), payRepo, mainCode)
		svc := NewRegistrationService(regRepo, payRepo, feeSvc, tx, nil, testLogger())
		setNow(t, svc, earlyDate)

		reg, payment, err := svc.CreateRegistration(ctx, input)

		require.NoError(t, err)
		require.NotNil(t, reg)
		require.NotNil(t, payment)
		assert.Equal(t, 1, tx.calls)
		assert.Equal(t, domain.RegistrationAwaitingPayment, reg.PaymentStatus)
		assert.Equal(t, domain.CategoryGradStudent, reg.CategorySnapshot)

		assert.Equal(t, domain.PaymentStatusPending, payment.Status)
		assert.Equal(t, "bank_transfer", payment.Method)
		assert.True(t, dec("600.00").Equal(payment.Amount))
		assert.Regexp(t, `^PAY-\d{8}-[0-9A-F]{6}$`, payment.Reference)

		require.Len(t, regRepo.attached[reg.ID], 1)
		assert.True(t, dec("600.00").Equal(regRepo.attached[reg.ID][0].PriceAtRegistration))
		require.Len(t, payRepo.attached, 1)
		assert.Equal(t, mainCode, payRepo.attached[0].EventCode)
	})

	t.Run("zero total marks the registration free", func(t *testing.T) {
		regRepo := newFakeRegistrationRepo()
		payRepo := newFakePaymentRepo()
		fees := newFakeFeeRepo(&domain.Fee{
			EventCode: mainCode,
			Category:  domain.CategoryUndergradStudent,
			Format:    domain.FormatOnline,
			Period:    domain.PeriodEarly,
			Price:     dec("0.00"),
		})
		feeSvc := NewFeeCalculationService(seedEvents(), fees, payRepo, mainCode)
		svc := NewRegistrationService(regRepo, payRepo, feeSvc, &fakeTxRunner{}, nil, testLogger())
		setNow(t, svc, earlyDate)

		free := input
		free.Category = domain.CategoryUndergradStudent
		free.Format = domain.FormatOnline
		reg, payment, err := svc.CreateRegistration(ctx, free)

		require.NoError(t, err)
		assert.Equal(t, domain.RegistrationFree, reg.PaymentStatus)
		assert.Equal(t, domain.PaymentStatusPaid, payment.Status)
		assert.Equal(t, "none", payment.Method)
		assert.True(t, payment.Amount.IsZero())
	})

	t.Run("rejects a second registration", func(t *testing.T) {
		regRepo := newFakeRegistrationRepo()
		regRepo.add(&domain.Registration{ID: "reg-0", UserID: "user-1"})
		payRepo := newFakePaymentRepo()
		feeSvc := NewFeeCalculationService(seedEvents(), seedFees(), payRepo, mainCode)
		svc := NewRegistrationService(regRepo, payRepo, feeSvc, &fakeTxRunner{}, nil, testLogger())

		_, _, err := svc.CreateRegistration(ctx, input)

		require.ErrorIs(t, err, domain.ErrAlreadyRegistered)
	})

	t.Run("refuses to finalize with unpriced events", func(t *testing.T) {
		regRepo := newFakeRegistrationRepo()
		payRepo := newFakePaymentRepo()
		feeSvc := NewFeeCalculationService(seedEvents(), seedFees(), payRepo, mainCode)
		svc := NewRegistrationService(regRepo, payRepo, feeSvc, &fakeTxRunner{}, nil, testLogger())
		setNow(t, svc, earlyDate)

		bad := input
		bad.EventCodes = []string{mainCode, "GHOST2025"}
		_, _, err := svc.CreateRegistration(ctx, bad)

		require.ErrorIs(t, err, domain.ErrUnpricedEvents)
		assert.Empty(t, regRepo.byID, "nothing persisted on rejection")
	})

	t.Run("validates input before touching storage", func(t *testing.T) {
		svc := NewRegistrationService(newFakeRegistrationRepo(), newFakePaymentRepo(), nil, &fakeTxRunner{}, nil, testLogger())

		tests := []struct {
			name   string
			mutate func(*domain.CreateRegistrationInput)
		}{
			{"empty event codes", func(in *domain.CreateRegistrationInput) { in.EventCodes = nil }},
			{"unknown category", func(in *domain.CreateRegistrationInput) { in.Category = "visitor" }},
			{"unknown format", func(in *domain.CreateRegistrationInput) { in.Format = "hybrid" }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				in := input
				tt.mutate(&in)
				_, _, err := svc.CreateRegistration(ctx, in)
				require.ErrorIs(t, err, domain.ErrInvalidInput)
			})
		}
	})

	t.Run("transaction failure surfaces", func(t *testing.T) {
		regRepo := newFakeRegistrationRepo()
		payRepo := newFakePaymentRepo()
		payRepo.createErr = errors.New("disk full")
		feeSvc := NewFeeCalculationService(seedEvents(), seedFees(), payRepo, mainCode)
		svc := NewRegistrationService(regRepo, payRepo, feeSvc, &fakeTxRunner{}, nil, testLogger())
		setNow(t, svc, earlyDate)

		_, _, err := svc.CreateRegistration(ctx, input)

		require.Error(t, err)
	})
}

func TestRegistrationService_GetMyRegistration(t *testing.T) {
	ctx := context.Background()
	regRepo := newFakeRegistrationRepo()
	regRepo.add(&domain.Registration{ID: "reg-1", UserID: "user-1"})
	svc := NewRegistrationService(regRepo, newFakePaymentRepo(), nil, &fakeTxRunner{}, nil, testLogger())

	reg, err := svc.GetMyRegistration(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "reg-1", reg.ID)

	_, err = svc.GetMyRegistration(ctx, "stranger")
	require.ErrorIs(t, err, domain.ErrNoRegistration)
}
