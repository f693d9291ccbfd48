package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"confreg/internal/domain"
)

func TestPaymentRepository_Create(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO payments`).
		WithArgs("reg-1", "user-1", "PAY-20250828-3FA9C1", "bank_transfer", "pending", decimalFromString(t, "600.00")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("pay-1", now, now))

	repo := NewPaymentRepository(db)
	payment := &domain.Payment{
		RegistrationID: "reg-1",
		UserID:         "user-1",
		Reference:      "PAY-20250828-3FA9C1",
		Method:         "bank_transfer",
		Status:         domain.PaymentStatusPending,
		Amount:         decimalFromString(t, "600.00"),
	}
	require.NoError(t, repo.Create(ctx, payment))
	require.Equal(t, "pay-1", payment.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_ListByRegistrationID(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	confirmed := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cols := []string{
		"id", "registration_id", "user_id", "payment_reference", "payment_method",
		"status", "amount", "payment_proof_path", "confirmed_at", "created_at", "updated_at",
	}
	mock.ExpectQuery(`SELECT (.+) FROM payments\s+WHERE registration_id = \$1`).
		WithArgs("reg-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("pay-1", "reg-1", "user-1", "PAY-1", "bank_transfer", "paid", "600.00", "proofs/pay-1.pdf", confirmed, now, now).
			AddRow("pay-2", "reg-1", "user-1", "PAY-2", "bank_transfer", "pending", "200.00", nil, nil, now, now))

	repo := NewPaymentRepository(db)
	payments, err := repo.ListByRegistrationID(ctx, "reg-1")

	require.NoError(t, err)
	require.Len(t, payments, 2)

	require.Equal(t, domain.PaymentStatusPaid, payments[0].Status)
	require.NotNil(t, payments[0].ProofPath)
	require.NotNil(t, payments[0].ConfirmedAt)

	require.Equal(t, domain.PaymentStatusPending, payments[1].Status)
	require.Nil(t, payments[1].ProofPath)
	require.Nil(t, payments[1].ConfirmedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_AttachEvent(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO event_payment`).
		WithArgs("pay-1", "RAA2025", decimalFromString(t, "100.00"), "reg-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPaymentRepository(db)
	err = repo.AttachEvent(ctx, "pay-1", &domain.PaymentEvent{
		EventCode:       "RAA2025",
		IndividualPrice: decimalFromString(t, "100.00"),
		RegistrationID:  "reg-1",
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_ListSettledEventsByUserID(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT ep.event_code, ep.individual_price, ep.registration_id\s+FROM event_payment ep\s+JOIN payments p`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"event_code", "individual_price", "registration_id"}).
			AddRow("BCSMIF2025", "1200.00", "reg-1"))

	repo := NewPaymentRepository(db)
	events, err := repo.ListSettledEventsByUserID(ctx, "user-1")

	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "BCSMIF2025", events[0].EventCode)
	require.True(t, events[0].IndividualPrice.Equal(decimalFromString(t, "1200.00")))
	require.NoError(t, mock.ExpectationsWereMet())
}
