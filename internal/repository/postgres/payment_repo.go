package postgres

import (
	"context"
	"database/sql"

	"confreg/internal/domain"
)

type paymentRepository struct {
	DB *sql.DB
}

func NewPaymentRepository(db *sql.DB) domain.PaymentRepository {
	return &paymentRepository{
		DB: db,
	}
}

func (r *paymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (registration_id, user_id, payment_reference, payment_method,
			status, amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING id, created_at, updated_at
	`
	return q(ctx, r.DB).QueryRowContext(ctx, query,
		p.RegistrationID, p.UserID, p.Reference, p.Method, p.Status, p.Amount,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *paymentRepository) ListByRegistrationID(ctx context.Context, registrationID string) ([]*domain.Payment, error) {
	query := `
		SELECT id, registration_id, user_id, payment_reference, payment_method, status,
			amount, payment_proof_path, confirmed_at, created_at, updated_at
		FROM payments
		WHERE registration_id = $1
		ORDER BY created_at
	`
	rows, err := q(ctx, r.DB).QueryContext(ctx, query, registrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		p := &domain.Payment{}
		if err := rows.Scan(
			&p.ID, &p.RegistrationID, &p.UserID, &p.Reference, &p.Method, &p.Status,
			&p.Amount, &p.ProofPath, &p.ConfirmedAt, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if payments == nil {
		payments = []*domain.Payment{}
	}
	return payments, nil
}

func (r *paymentRepository) AttachEvent(ctx context.Context, paymentID string, ev *domain.PaymentEvent) error {
	query := `
		INSERT INTO event_payment (payment_id, event_code, individual_price, registration_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
	`
	_, err := q(ctx, r.DB).ExecContext(ctx, query, paymentID, ev.EventCode, ev.IndividualPrice, ev.RegistrationID)
	return err
}

func (r *paymentRepository) ListSettledEventsByUserID(ctx context.Context, userID string) ([]*domain.PaymentEvent, error) {
	query := `
		SELECT ep.event_code, ep.individual_price, ep.registration_id
		FROM event_payment ep
		JOIN payments p ON p.id = ep.payment_id
		WHERE p.user_id = $1
		  AND p.status IN ('paid', 'confirmed')
		ORDER BY ep.event_code
	`
	rows, err := q(ctx, r.DB).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.PaymentEvent
	for rows.Next() {
		ev := &domain.PaymentEvent{}
		if err := rows.Scan(&ev.EventCode, &ev.IndividualPrice, &ev.RegistrationID); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if events == nil {
		events = []*domain.PaymentEvent{}
	}
	return events, nil
}
