package postgres

import (
	"context"
	"database/sql"
	"errors"

	"confreg/internal/domain"
)

type registrationRepository struct {
	DB *sql.DB
}

func NewRegistrationRepository(db *sql.DB) domain.RegistrationRepository {
	return &registrationRepository{
		DB: db,
	}
}

const registrationColumns = `id, user_id, full_name, email, registration_category_snapshot,
		participation_format, payment_status, created_at, updated_at`

func (r *registrationRepository) Create(ctx context.Context, reg *domain.Registration) error {
	query := `
		INSERT INTO registrations (user_id, full_name, email, registration_category_snapshot,
			participation_format, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING id, created_at, updated_at
	`
	return q(ctx, r.DB).QueryRowContext(ctx, query,
		reg.UserID, reg.FullName, reg.Email, reg.CategorySnapshot, reg.Format, reg.PaymentStatus,
	).Scan(&reg.ID, &reg.CreatedAt, &reg.UpdatedAt)
}

func (r *registrationRepository) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *registrationRepository) GetByUserID(ctx context.Context, userID string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE user_id = $1`
	return r.getOne(ctx, query, userID)
}

func (r *registrationRepository) GetByUserIDForUpdate(ctx context.Context, userID string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE user_id = $1 FOR UPDATE`
	return r.getOne(ctx, query, userID)
}

func (r *registrationRepository) getOne(ctx context.Context, query string, arg any) (*domain.Registration, error) {
	reg := &domain.Registration{}
	err := q(ctx, r.DB).QueryRowContext(ctx, query, arg).Scan(
		&reg.ID, &reg.UserID, &reg.FullName, &reg.Email, &reg.CategorySnapshot,
		&reg.Format, &reg.PaymentStatus, &reg.CreatedAt, &reg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	events, err := r.listEvents(ctx, reg.ID)
	if err != nil {
		return nil, err
	}
	reg.Events = events
	return reg, nil
}

func (r *registrationRepository) AttachEvent(ctx context.Context, registrationID string, ev *domain.RegistrationEvent) error {
	// Upsert keeps the attach idempotent: re-attaching an event refreshes
	// the price snapshot instead of failing or duplicating the row.
	query := `
		INSERT INTO event_registration (registration_id, event_code, price_at_registration, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (registration_id, event_code)
		DO UPDATE SET price_at_registration = EXCLUDED.price_at_registration, updated_at = now()
	`
	_, err := q(ctx, r.DB).ExecContext(ctx, query, registrationID, ev.EventCode, ev.PriceAtRegistration)
	return err
}

func (r *registrationRepository) listEvents(ctx context.Context, registrationID string) ([]*domain.RegistrationEvent, error) {
	query := `
		SELECT event_code, price_at_registration
		FROM event_registration
		WHERE registration_id = $1
		ORDER BY event_code
	`
	rows, err := q(ctx, r.DB).QueryContext(ctx, query, registrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.RegistrationEvent
	for rows.Next() {
		ev := &domain.RegistrationEvent{}
		if err := rows.Scan(&ev.EventCode, &ev.PriceAtRegistration); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if events == nil {
		events = []*domain.RegistrationEvent{}
	}
	return events, nil
}

func (r *registrationRepository) UpdatePaymentStatus(ctx context.Context, registrationID, status string) error {
	query := `UPDATE registrations SET payment_status = $2, updated_at = now() WHERE id = $1`
	res, err := q(ctx, r.DB).ExecContext(ctx, query, registrationID, status)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *registrationRepository) ListAwaitingPaymentWithoutPayments(ctx context.Context) ([]*domain.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations r
		WHERE r.payment_status = $1
		  AND NOT EXISTS (SELECT 1 FROM payments p WHERE p.registration_id = r.id)
		ORDER BY r.created_at
	`
	rows, err := q(ctx, r.DB).QueryContext(ctx, query, domain.RegistrationAwaitingPayment)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []*domain.Registration
	for rows.Next() {
		reg := &domain.Registration{}
		if err := rows.Scan(
			&reg.ID, &reg.UserID, &reg.FullName, &reg.Email, &reg.CategorySnapshot,
			&reg.Format, &reg.PaymentStatus, &reg.CreatedAt, &reg.UpdatedAt,
		); err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if regs == nil {
		regs = []*domain.Registration{}
	}
	return regs, nil
}
