package plan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kingsinvest/kings_invest/internal/money"
)

// Repository persists investment plans.
type Repository interface {
	Upsert(ctx context.Context, p Plan) error
	Get(ctx context.Context, id string) (Plan, error)
	ListActive(ctx context.Context) ([]Plan, error)
}

// PostgresRepository stores plans in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert inserts a plan or refreshes an existing one with the same id.
func (r *PostgresRepository) Upsert(ctx context.Context, p Plan) error {
	_, err := r.db.Exec(ctx, `INSERT INTO investment_plans (id, name, description, terms, rate, duration_days, is_active)
        VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)
        ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description,
            terms = EXCLUDED.terms, rate = EXCLUDED.rate, duration_days = EXCLUDED.duration_days,
            is_active = EXCLUDED.is_active`,
		p.ID, p.Name, p.Description, p.Terms, p.Rate.String(), p.DurationDays, p.IsActive)
	return err
}

// Get fetches a plan by identifier regardless of its active flag.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Plan, error) {
	row := r.db.QueryRow(ctx, `SELECT id, name, description, terms, rate::text, duration_days, is_active, created_at
        FROM investment_plans WHERE id = $1`, id)
	p, err := scanPlan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Plan{}, ErrNotFound
	}
	return p, err
}

// ListActive returns the plans open for investment ordered by name.
func (r *PostgresRepository) ListActive(ctx context.Context) ([]Plan, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, description, terms, rate::text, duration_days, is_active, created_at
        FROM investment_plans WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func scanPlan(row pgx.Row) (Plan, error) {
	var (
		p         Plan
		rate      string
		createdAt time.Time
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Terms, &rate, &p.DurationDays, &p.IsActive, &createdAt); err != nil {
		return Plan{}, err
	}
	r, err := money.FromDB(rate)
	if err != nil {
		return Plan{}, fmt.Errorf("parse rate for plan %s: %w", p.ID, err)
	}
	p.Rate = r
	p.CreatedAt = createdAt.UTC()
	return p, nil
}
