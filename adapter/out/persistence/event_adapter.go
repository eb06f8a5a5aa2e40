package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"nittei/core/domain"
	"nittei/core/port/out"
	"nittei/internal/recurrence"
)

// EventAdapter implements out.EventRepository using PostgreSQL.
type EventAdapter struct {
	db *sqlx.DB
}

// NewEventAdapter creates a new EventAdapter.
func NewEventAdapter(db *sqlx.DB) *EventAdapter {
	return &EventAdapter{db: db}
}

type eventRow struct {
	ID                uuid.UUID       `db:"id"`
	AccountID         uuid.UUID       `db:"account_id"`
	CalendarID        uuid.UUID       `db:"calendar_id"`
	UserID            uuid.UUID       `db:"user_id"`
	ExternalID        sql.NullString  `db:"external_id"`
	Title             sql.NullString  `db:"title"`
	Start             time.Time       `db:"start_time"`
	DurationSeconds   int64           `db:"duration_seconds"`
	Busy              bool            `db:"busy"`
	Status            string          `db:"status"`
	RecurrenceRule    json.RawMessage `db:"recurrence_rule"`
	RecurrenceUntil   sql.NullTime    `db:"recurrence_until"`
	Exdates           pq.StringArray  `db:"exdates"`
	RecurringEventID  uuid.NullUUID   `db:"recurring_event_id"`
	OriginalStartTime sql.NullTime    `db:"original_start_time"`
	Reminders         json.RawMessage `db:"reminders"`
	ServiceID         uuid.NullUUID   `db:"service_id"`
	Metadata          json.RawMessage `db:"metadata"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

func (r *eventRow) toEntity() (*domain.CalendarEvent, error) {
	e := &domain.CalendarEvent{
		ID:         r.ID,
		AccountID:  r.AccountID,
		CalendarID: r.CalendarID,
		UserID:     r.UserID,
		Start:      r.Start.UTC(),
		Duration:   time.Duration(r.DurationSeconds) * time.Second,
		Busy:       r.Busy,
		Status:     domain.CalendarEventStatus(r.Status),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.ExternalID.Valid {
		e.ExternalID = &r.ExternalID.String
	}
	if r.Title.Valid {
		e.Title = &r.Title.String
	}
	if len(r.RecurrenceRule) > 0 {
		var opts recurrence.Options
		if err := json.Unmarshal(r.RecurrenceRule, &opts); err != nil {
			return nil, err
		}
		e.RecurrenceRule = &opts
	}
	for _, raw := range r.Exdates {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, err
		}
		e.Exdates = append(e.Exdates, t.UTC())
	}
	if r.RecurringEventID.Valid {
		id := r.RecurringEventID.UUID
		e.RecurringEventID = &id
	}
	if r.OriginalStartTime.Valid {
		t := r.OriginalStartTime.Time.UTC()
		e.OriginalStartTime = &t
	}
	if len(r.Reminders) > 0 {
		if err := json.Unmarshal(r.Reminders, &e.Reminders); err != nil {
			return nil, err
		}
	}
	if r.ServiceID.Valid {
		id := r.ServiceID.UUID
		e.ServiceID = &id
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &e.Metadata); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func exdatesToArray(exdates []time.Time) pq.StringArray {
	arr := make(pq.StringArray, len(exdates))
	for i, t := range exdates {
		arr[i] = t.UTC().Format(time.RFC3339Nano)
	}
	return arr
}

// GetEvent fetches an event by id.
func (a *EventAdapter) GetEvent(ctx context.Context, id uuid.UUID) (*domain.CalendarEvent, error) {
	var row eventRow
	if err := a.db.GetContext(ctx, &row, `SELECT * FROM calendar_events WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return row.toEntity()
}

// GetEventByExternalID fetches an event by the external_id an account's own
// system addresses it with.
func (a *EventAdapter) GetEventByExternalID(ctx context.Context, accountID uuid.UUID, externalID string) (*domain.CalendarEvent, error) {
	var row eventRow
	query := `SELECT * FROM calendar_events WHERE account_id = $1 AND external_id = $2`
	if err := a.db.GetContext(ctx, &row, query, accountID, externalID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return row.toEntity()
}

func (a *EventAdapter) scanMany(ctx context.Context, query string, args ...any) ([]*domain.CalendarEvent, error) {
	rows, err := a.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.CalendarEvent
	for rows.Next() {
		var row eventRow
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		e, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

// EventsForCalendar implements the window-overlap predicate documented on
// out.EventRepository: singles/overrides whose own span overlaps window,
// plus recurring masters that haven't necessarily ended before window.Start
// and haven't necessarily started after window.End. The exact per-occurrence
// filtering happens in internal/engine/expand.
func (a *EventAdapter) EventsForCalendar(ctx context.Context, calendarID uuid.UUID, window domain.TimeSpan) ([]*domain.CalendarEvent, error) {
	query := `
		SELECT * FROM calendar_events
		WHERE calendar_id = $1
		AND (
			(recurrence_rule IS NULL AND start_time < $3 AND (start_time + (duration_seconds || ' seconds')::interval) > $2)
			OR
			(recurrence_rule IS NOT NULL AND start_time <= $3 AND (recurrence_until IS NULL OR recurrence_until >= $2))
		)
		ORDER BY start_time
	`
	return a.scanMany(ctx, query, calendarID, window.Start, window.End)
}

// EventsForUsers returns the union of EventsForCalendar across every
// calendar owned by userIDs.
func (a *EventAdapter) EventsForUsers(ctx context.Context, userIDs []uuid.UUID, window domain.TimeSpan) ([]*domain.CalendarEvent, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT * FROM calendar_events
		WHERE user_id = ANY($1)
		AND (
			(recurrence_rule IS NULL AND start_time < $3 AND (start_time + (duration_seconds || ' seconds')::interval) > $2)
			OR
			(recurrence_rule IS NOT NULL AND start_time <= $3 AND (recurrence_until IS NULL OR recurrence_until >= $2))
		)
		ORDER BY start_time
	`
	return a.scanMany(ctx, query, pq.Array(userIDs), window.Start, window.End)
}

// EventsByRecurringEventIDs returns the override events attached to any of
// the given recurring master ids.
func (a *EventAdapter) EventsByRecurringEventIDs(ctx context.Context, recurringEventIDs []uuid.UUID) ([]*domain.CalendarEvent, error) {
	if len(recurringEventIDs) == 0 {
		return nil, nil
	}
	query := `SELECT * FROM calendar_events WHERE recurring_event_id = ANY($1) ORDER BY start_time`
	return a.scanMany(ctx, query, pq.Array(recurringEventIDs))
}

// MostRecentServiceEventsPerUser returns, for each user, the single most
// recent event booked against serviceID.
func (a *EventAdapter) MostRecentServiceEventsPerUser(ctx context.Context, serviceID uuid.UUID, userIDs []uuid.UUID) (map[uuid.UUID]*domain.CalendarEvent, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT DISTINCT ON (user_id) *
		FROM calendar_events
		WHERE service_id = $1 AND user_id = ANY($2)
		ORDER BY user_id, start_time DESC
	`
	events, err := a.scanMany(ctx, query, serviceID, pq.Array(userIDs))
	if err != nil {
		return nil, err
	}
	result := make(map[uuid.UUID]*domain.CalendarEvent, len(events))
	for _, e := range events {
		result[e.UserID] = e
	}
	return result, nil
}

// Create inserts a single event.
func (a *EventAdapter) Create(ctx context.Context, event *domain.CalendarEvent) error {
	ruleJSON, until, err := encodeRule(event.RecurrenceRule)
	if err != nil {
		return err
	}
	reminders, err := json.Marshal(event.Reminders)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO calendar_events (
			id, account_id, calendar_id, user_id, external_id, title,
			start_time, duration_seconds, busy, status,
			recurrence_rule, recurrence_until, exdates,
			recurring_event_id, original_start_time, reminders, service_id, metadata
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13,
			$14, $15, $16, $17, $18
		)
		RETURNING created_at, updated_at
	`
	return a.db.QueryRowxContext(ctx, query,
		event.ID, event.AccountID, event.CalendarID, event.UserID, event.ExternalID, event.Title,
		event.Start.UTC(), int64(event.Duration/time.Second), event.Busy, string(event.Status),
		ruleJSON, until, exdatesToArray(event.Exdates),
		event.RecurringEventID, event.OriginalStartTime, reminders, event.ServiceID, metadata,
	).Scan(&event.CreatedAt, &event.UpdatedAt)
}

// CreateBatch inserts events atomically within a single transaction.
func (a *EventAdapter) CreateBatch(ctx context.Context, events []*domain.CalendarEvent) error {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO calendar_events (
			id, account_id, calendar_id, user_id, external_id, title,
			start_time, duration_seconds, busy, status,
			recurrence_rule, recurrence_until, exdates,
			recurring_event_id, original_start_time, reminders, service_id, metadata
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13,
			$14, $15, $16, $17, $18
		)
		RETURNING created_at, updated_at
	`
	for _, event := range events {
		ruleJSON, until, err := encodeRule(event.RecurrenceRule)
		if err != nil {
			return err
		}
		reminders, err := json.Marshal(event.Reminders)
		if err != nil {
			return err
		}
		metadata, err := json.Marshal(event.Metadata)
		if err != nil {
			return err
		}
		if err := tx.QueryRowxContext(ctx, query,
			event.ID, event.AccountID, event.CalendarID, event.UserID, event.ExternalID, event.Title,
			event.Start.UTC(), int64(event.Duration/time.Second), event.Busy, string(event.Status),
			ruleJSON, until, exdatesToArray(event.Exdates),
			event.RecurringEventID, event.OriginalStartTime, reminders, event.ServiceID, metadata,
		).Scan(&event.CreatedAt, &event.UpdatedAt); err != nil {
			return fmt.Errorf("create batch event %s: %w", event.ID, err)
		}
	}
	return tx.Commit()
}

// Update persists changes to an existing event.
func (a *EventAdapter) Update(ctx context.Context, event *domain.CalendarEvent) error {
	ruleJSON, until, err := encodeRule(event.RecurrenceRule)
	if err != nil {
		return err
	}
	reminders, err := json.Marshal(event.Reminders)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return err
	}
	query := `
		UPDATE calendar_events SET
			title = $1, start_time = $2, duration_seconds = $3, busy = $4, status = $5,
			recurrence_rule = $6, recurrence_until = $7, exdates = $8,
			reminders = $9, metadata = $10, external_id = $11, service_id = $12,
			updated_at = NOW()
		WHERE id = $13
		RETURNING updated_at
	`
	return a.db.QueryRowxContext(ctx, query,
		event.Title, event.Start.UTC(), int64(event.Duration/time.Second), event.Busy, string(event.Status),
		ruleJSON, until, exdatesToArray(event.Exdates),
		reminders, metadata, event.ExternalID, event.ServiceID, event.ID,
	).Scan(&event.UpdatedAt)
}

// Delete removes an event, cascading to any overrides attached to it via
// recurring_event_id (enforced by the calendar_events FK's ON DELETE CASCADE).
func (a *EventAdapter) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM calendar_events WHERE id = $1`, id)
	return err
}

// SearchForUser answers the §6 search grammar scoped to a single user's
// calendars.
func (a *EventAdapter) SearchForUser(ctx context.Context, userID uuid.UUID, filter out.EventSearchFilter) ([]*domain.CalendarEvent, error) {
	return a.search(ctx, "user_id = $1", userID, filter)
}

// SearchForAccount answers the §6 search grammar scoped to an entire
// account.
func (a *EventAdapter) SearchForAccount(ctx context.Context, accountID uuid.UUID, filter out.EventSearchFilter) ([]*domain.CalendarEvent, error) {
	return a.search(ctx, "account_id = $1", accountID, filter)
}

func (a *EventAdapter) search(ctx context.Context, scopeClause string, scopeArg uuid.UUID, filter out.EventSearchFilter) ([]*domain.CalendarEvent, error) {
	conditions := []string{scopeClause}
	args := []any{scopeArg}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Window != nil {
		conditions = append(conditions, fmt.Sprintf(
			"((recurrence_rule IS NULL AND start_time < %s AND (start_time + (duration_seconds || ' seconds')::interval) > %s) OR (recurrence_rule IS NOT NULL AND start_time <= %s AND (recurrence_until IS NULL OR recurrence_until >= %s)))",
			arg(filter.Window.End), arg(filter.Window.Start), arg(filter.Window.End), arg(filter.Window.Start),
		))
	}
	if len(filter.CalendarIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("calendar_id = ANY(%s)", arg(pq.Array(filter.CalendarIDs))))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		conditions = append(conditions, fmt.Sprintf("status = ANY(%s)", arg(pq.Array(statuses))))
	}
	if filter.MetadataIDs != nil {
		conditions = append(conditions, fmt.Sprintf("id = ANY(%s)", arg(pq.Array(filter.MetadataIDs))))
	}

	query := "SELECT * FROM calendar_events WHERE " + strings.Join(conditions, " AND ") + " ORDER BY start_time"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}
	return a.scanMany(ctx, query, args...)
}

func encodeRule(opts *recurrence.Options) (json.RawMessage, sql.NullTime, error) {
	if opts == nil {
		return nil, sql.NullTime{}, nil
	}
	raw, err := json.Marshal(opts)
	if err != nil {
		return nil, sql.NullTime{}, err
	}
	until := sql.NullTime{}
	if opts.Until != nil {
		until = sql.NullTime{Time: opts.Until.UTC(), Valid: true}
	}
	return raw, until, nil
}

var _ out.EventRepository = (*EventAdapter)(nil)
