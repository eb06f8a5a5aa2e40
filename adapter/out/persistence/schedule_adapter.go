package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"nittei/core/domain"
	"nittei/core/port/out"
)

// ScheduleAdapter implements out.ScheduleRepository using PostgreSQL.
// Rules is stored as a single JSONB column rather than a child table:
// a schedule's rule set is always read and written as one unit (CreateSchedule/
// UpdateSchedule replace it wholesale), so there is no query that needs to
// address an individual rule by row id.
type ScheduleAdapter struct {
	db *sqlx.DB
}

// NewScheduleAdapter creates a new ScheduleAdapter.
func NewScheduleAdapter(db *sqlx.DB) *ScheduleAdapter {
	return &ScheduleAdapter{db: db}
}

type scheduleRow struct {
	ID        uuid.UUID       `db:"id"`
	AccountID uuid.UUID       `db:"account_id"`
	UserID    uuid.UUID       `db:"user_id"`
	Timezone  string          `db:"timezone"`
	Rules     json.RawMessage `db:"rules"`
	Metadata  json.RawMessage `db:"metadata"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func (r *scheduleRow) toEntity() (*domain.Schedule, error) {
	s := &domain.Schedule{
		ID:        r.ID,
		AccountID: r.AccountID,
		UserID:    r.UserID,
		Timezone:  r.Timezone,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if len(r.Rules) > 0 {
		if err := json.Unmarshal(r.Rules, &s.Rules); err != nil {
			return nil, err
		}
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &s.Metadata); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// GetByID fetches a schedule by id.
func (a *ScheduleAdapter) GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error) {
	var row scheduleRow
	if err := a.db.GetContext(ctx, &row, `SELECT * FROM schedules WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return row.toEntity()
}

// ForUser lists every schedule owned by userID.
func (a *ScheduleAdapter) ForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Schedule, error) {
	rows, err := a.db.QueryxContext(ctx, `SELECT * FROM schedules WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []*domain.Schedule
	for rows.Next() {
		var row scheduleRow
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		s, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, nil
}

// Create inserts a new schedule.
func (a *ScheduleAdapter) Create(ctx context.Context, schedule *domain.Schedule) error {
	rules, err := json.Marshal(schedule.Rules)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(schedule.Metadata)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO schedules (id, account_id, user_id, timezone, rules, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	return a.db.QueryRowxContext(ctx, query,
		schedule.ID, schedule.AccountID, schedule.UserID, schedule.Timezone, rules, metadata,
	).Scan(&schedule.CreatedAt, &schedule.UpdatedAt)
}

// Update replaces an existing schedule's rules wholesale.
func (a *ScheduleAdapter) Update(ctx context.Context, schedule *domain.Schedule) error {
	rules, err := json.Marshal(schedule.Rules)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(schedule.Metadata)
	if err != nil {
		return err
	}
	query := `
		UPDATE schedules SET rules = $1, metadata = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at
	`
	return a.db.QueryRowxContext(ctx, query, rules, metadata, schedule.ID).Scan(&schedule.UpdatedAt)
}

// Delete removes a schedule.
func (a *ScheduleAdapter) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	return err
}

var _ out.ScheduleRepository = (*ScheduleAdapter)(nil)
