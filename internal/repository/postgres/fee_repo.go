package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"confreg/internal/domain"
)

type feeRepository struct {
	DB *sql.DB
}

func NewFeeRepository(db *sql.DB) domain.FeeRepository {
	return &feeRepository{
		DB: db,
	}
}

const feeColumns = `id, event_code, participant_category, type, period, price,
		is_discount_for_main_event_participant, created_at, updated_at`

func (r *feeRepository) ListByEventCodes(ctx context.Context, codes []string) ([]*domain.Fee, error) {
	query := `
		SELECT ` + feeColumns + `
		FROM fees
		WHERE event_code = ANY($1)
		ORDER BY event_code, participant_category, type, period
	`
	rows, err := q(ctx, r.DB).QueryContext(ctx, query, pq.Array(codes))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fees []*domain.Fee
	for rows.Next() {
		fee := &domain.Fee{}
		if err := rows.Scan(
			&fee.ID, &fee.EventCode, &fee.Category, &fee.Format, &fee.Period, &fee.Price,
			&fee.MainEventDiscount, &fee.CreatedAt, &fee.UpdatedAt,
		); err != nil {
			return nil, err
		}
		fees = append(fees, fee)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if fees == nil {
		fees = []*domain.Fee{}
	}
	return fees, nil
}
