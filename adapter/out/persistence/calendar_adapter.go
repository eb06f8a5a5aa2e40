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
	"nittei/internal/recurrence"
)

// CalendarAdapter implements out.CalendarRepository using PostgreSQL.
type CalendarAdapter struct {
	db *sqlx.DB
}

// NewCalendarAdapter creates a new CalendarAdapter.
func NewCalendarAdapter(db *sqlx.DB) *CalendarAdapter {
	return &CalendarAdapter{db: db}
}

type calendarRow struct {
	ID           uuid.UUID      `db:"id"`
	AccountID    uuid.UUID      `db:"account_id"`
	UserID       uuid.UUID      `db:"user_id"`
	Name         sql.NullString `db:"name"`
	Timezone     string         `db:"timezone"`
	WeekStart    int            `db:"week_start"`
	ProviderKind sql.NullString `db:"provider_kind"`
	ProviderID   sql.NullString `db:"provider_id"`
	Metadata     json.RawMessage `db:"metadata"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r *calendarRow) toEntity() (*domain.Calendar, error) {
	c := &domain.Calendar{
		ID:        r.ID,
		AccountID: r.AccountID,
		UserID:    r.UserID,
		Settings: domain.CalendarSettings{
			Timezone:  r.Timezone,
			WeekStart: recurrence.Weekday(r.WeekStart),
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Name.Valid {
		c.Name = &r.Name.String
	}
	if r.ProviderKind.Valid {
		c.ProviderKind = &r.ProviderKind.String
	}
	if r.ProviderID.Valid {
		c.ProviderID = &r.ProviderID.String
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &c.Metadata); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// GetByID fetches a calendar by id.
func (a *CalendarAdapter) GetByID(ctx context.Context, id uuid.UUID) (*domain.Calendar, error) {
	var row calendarRow
	if err := a.db.GetContext(ctx, &row, `SELECT * FROM calendars WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return row.toEntity()
}

// ForUser lists every calendar owned by userID.
func (a *CalendarAdapter) ForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Calendar, error) {
	rows, err := a.db.QueryxContext(ctx, `SELECT * FROM calendars WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calendars []*domain.Calendar
	for rows.Next() {
		var row calendarRow
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		c, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		calendars = append(calendars, c)
	}
	return calendars, nil
}

// Create inserts a new calendar.
func (a *CalendarAdapter) Create(ctx context.Context, calendar *domain.Calendar) error {
	metadata, err := json.Marshal(calendar.Metadata)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO calendars (
			id, account_id, user_id, name, timezone, week_start,
			provider_kind, provider_id, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	return a.db.QueryRowxContext(ctx, query,
		calendar.ID, calendar.AccountID, calendar.UserID, calendar.Name,
		calendar.Settings.Timezone, int(calendar.Settings.WeekStart),
		calendar.ProviderKind, calendar.ProviderID, metadata,
	).Scan(&calendar.CreatedAt, &calendar.UpdatedAt)
}

// Update persists changes to an existing calendar.
func (a *CalendarAdapter) Update(ctx context.Context, calendar *domain.Calendar) error {
	metadata, err := json.Marshal(calendar.Metadata)
	if err != nil {
		return err
	}
	query := `
		UPDATE calendars SET
			name = $1, timezone = $2, week_start = $3,
			provider_kind = $4, provider_id = $5, metadata = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at
	`
	return a.db.QueryRowxContext(ctx, query,
		calendar.Name, calendar.Settings.Timezone, int(calendar.Settings.WeekStart),
		calendar.ProviderKind, calendar.ProviderID, metadata, calendar.ID,
	).Scan(&calendar.UpdatedAt)
}

// Delete removes a calendar.
func (a *CalendarAdapter) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM calendars WHERE id = $1`, id)
	return err
}

var _ out.CalendarRepository = (*CalendarAdapter)(nil)
