package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"confreg/internal/domain"
)

type eventRepository struct {
	DB *sql.DB
}

func NewEventRepository(db *sql.DB) domain.EventRepository {
	return &eventRepository{
		DB: db,
	}
}

const eventColumns = `code, name, description, start_date, end_date, location,
		registration_deadline_early, registration_deadline_late, is_main_conference,
		created_at, updated_at`

func (r *eventRepository) Create(ctx context.Context, event *domain.Event) error {
	query := `
		INSERT INTO events (code, name, description, start_date, end_date, location,
			registration_deadline_early, registration_deadline_late, is_main_conference,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING created_at, updated_at
	`
	return q(ctx, r.DB).QueryRowContext(ctx, query,
		event.Code, event.Name, event.Description, event.StartDate, event.EndDate,
		event.Location, event.RegistrationDeadlineEarly, event.RegistrationDeadlineLate,
		event.IsMainConference,
	).Scan(&event.CreatedAt, &event.UpdatedAt)
}

func (r *eventRepository) GetByCode(ctx context.Context, code string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE code = $1`
	event := &domain.Event{}
	err := q(ctx, r.DB).QueryRowContext(ctx, query, code).Scan(
		&event.Code, &event.Name, &event.Description, &event.StartDate, &event.EndDate,
		&event.Location, &event.RegistrationDeadlineEarly, &event.RegistrationDeadlineLate,
		&event.IsMainConference, &event.CreatedAt, &event.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return event, nil
}

func (r *eventRepository) ListByCodes(ctx context.Context, codes []string) ([]*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE code = ANY($1) ORDER BY start_date`
	rows, err := q(ctx, r.DB).QueryContext(ctx, query, pq.Array(codes))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (r *eventRepository) List(ctx context.Context) ([]*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY start_date`
	rows, err := q(ctx, r.DB).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*domain.Event, error) {
	var events []*domain.Event
	for rows.Next() {
		event := &domain.Event{}
		if err := rows.Scan(
			&event.Code, &event.Name, &event.Description, &event.StartDate, &event.EndDate,
			&event.Location, &event.RegistrationDeadlineEarly, &event.RegistrationDeadlineLate,
			&event.IsMainConference, &event.CreatedAt, &event.UpdatedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if events == nil {
		events = []*domain.Event{}
	}
	return events, nil
}
