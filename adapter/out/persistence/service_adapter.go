package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"nittei/core/domain"
	"nittei/core/port/out"
)

// ServiceAdapter implements out.ServiceRepository using PostgreSQL.
// Resources live in a child table (service_resources) rather than a JSONB
// column because AddResource/RemoveResource address a single resource row
// without rewriting the whole set.
type ServiceAdapter struct {
	db *sqlx.DB
}

// NewServiceAdapter creates a new ServiceAdapter.
func NewServiceAdapter(db *sqlx.DB) *ServiceAdapter {
	return &ServiceAdapter{db: db}
}

type serviceRow struct {
	ID              uuid.UUID       `db:"id"`
	AccountID       uuid.UUID       `db:"account_id"`
	DurationSeconds int64           `db:"duration_seconds"`
	IntervalMinutes int             `db:"interval_minutes"`
	MultiUserPolicy string          `db:"multi_user_policy"`
	GroupSize       int             `db:"group_size"`
	Metadata        json.RawMessage `db:"metadata"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

type serviceResourceRow struct {
	ID                         uuid.UUID     `db:"id"`
	ServiceID                  uuid.UUID     `db:"service_id"`
	UserID                     uuid.UUID     `db:"user_id"`
	CalendarIDs                pq.StringArray `db:"calendar_ids"`
	BufferBeforeSeconds        int64         `db:"buffer_before_seconds"`
	BufferAfterSeconds         int64         `db:"buffer_after_seconds"`
	ClosestBookingSeconds      int64         `db:"closest_booking_seconds"`
	FurthestBookingSeconds     sql.NullInt64 `db:"furthest_booking_seconds"`
	AvailabilityKind           string        `db:"availability_kind"`
	AvailabilityScheduleID     uuid.NullUUID `db:"availability_schedule_id"`
	AvailabilityCalendarID     uuid.NullUUID `db:"availability_calendar_id"`
}

func (r *serviceResourceRow) toEntity() (domain.ServiceResource, error) {
	res := domain.ServiceResource{
		ID:                 r.ID,
		ServiceID:          r.ServiceID,
		UserID:             r.UserID,
		BufferBefore:       time.Duration(r.BufferBeforeSeconds) * time.Second,
		BufferAfter:        time.Duration(r.BufferAfterSeconds) * time.Second,
		ClosestBookingTime: time.Duration(r.ClosestBookingSeconds) * time.Second,
		AvailabilityKind:   domain.ResourceAvailabilityKind(r.AvailabilityKind),
	}
	for _, raw := range r.CalendarIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return domain.ServiceResource{}, err
		}
		res.CalendarIDs = append(res.CalendarIDs, id)
	}
	if r.FurthestBookingSeconds.Valid {
		d := time.Duration(r.FurthestBookingSeconds.Int64) * time.Second
		res.FurthestBookingTime = &d
	}
	if r.AvailabilityScheduleID.Valid {
		id := r.AvailabilityScheduleID.UUID
		res.AvailabilityScheduleID = &id
	}
	if r.AvailabilityCalendarID.Valid {
		id := r.AvailabilityCalendarID.UUID
		res.AvailabilityCalendarID = &id
	}
	return res, nil
}

func (a *ServiceAdapter) loadResources(ctx context.Context, serviceID uuid.UUID) ([]domain.ServiceResource, error) {
	rows, err := a.db.QueryxContext(ctx, `SELECT * FROM service_resources WHERE service_id = $1 ORDER BY id`, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var resources []domain.ServiceResource
	for rows.Next() {
		var row serviceResourceRow
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		res, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		resources = append(resources, res)
	}
	return resources, nil
}

// GetByID fetches a service, including its resources, by id.
func (a *ServiceAdapter) GetByID(ctx context.Context, id uuid.UUID) (*domain.Service, error) {
	var row serviceRow
	if err := a.db.GetContext(ctx, &row, `SELECT * FROM services WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	svc := &domain.Service{
		ID:              row.ID,
		AccountID:       row.AccountID,
		Duration:        time.Duration(row.DurationSeconds) * time.Second,
		IntervalMinutes: row.IntervalMinutes,
		MultiUserPolicy: domain.MultiUserPolicy(row.MultiUserPolicy),
		GroupSize:       row.GroupSize,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &svc.Metadata); err != nil {
			return nil, err
		}
	}
	resources, err := a.loadResources(ctx, id)
	if err != nil {
		return nil, err
	}
	svc.Resources = resources
	return svc, nil
}

// Create inserts a new service (with no resources attached yet).
func (a *ServiceAdapter) Create(ctx context.Context, service *domain.Service) error {
	metadata, err := json.Marshal(service.Metadata)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO services (id, account_id, duration_seconds, interval_minutes, multi_user_policy, group_size, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	return a.db.QueryRowxContext(ctx, query,
		service.ID, service.AccountID, int64(service.Duration/time.Second), service.IntervalMinutes,
		string(service.MultiUserPolicy), service.GroupSize, metadata,
	).Scan(&service.CreatedAt, &service.UpdatedAt)
}

// Update persists changes to a service's own fields (not its resources).
func (a *ServiceAdapter) Update(ctx context.Context, service *domain.Service) error {
	metadata, err := json.Marshal(service.Metadata)
	if err != nil {
		return err
	}
	query := `
		UPDATE services SET
			duration_seconds = $1, interval_minutes = $2, multi_user_policy = $3,
			group_size = $4, metadata = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at
	`
	return a.db.QueryRowxContext(ctx, query,
		int64(service.Duration/time.Second), service.IntervalMinutes, string(service.MultiUserPolicy),
		service.GroupSize, metadata, service.ID,
	).Scan(&service.UpdatedAt)
}

// Delete removes a service and, via FK cascade, its resources.
func (a *ServiceAdapter) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM services WHERE id = $1`, id)
	return err
}

// AddResource attaches a resource row to a service.
func (a *ServiceAdapter) AddResource(ctx context.Context, serviceID uuid.UUID, resource *domain.ServiceResource) error {
	calendarIDs := make(pq.StringArray, len(resource.CalendarIDs))
	for i, id := range resource.CalendarIDs {
		calendarIDs[i] = id.String()
	}
	var furthest sql.NullInt64
	if resource.FurthestBookingTime != nil {
		furthest = sql.NullInt64{Int64: int64(*resource.FurthestBookingTime / time.Second), Valid: true}
	}
	query := `
		INSERT INTO service_resources (
			id, service_id, user_id, calendar_ids,
			buffer_before_seconds, buffer_after_seconds, closest_booking_seconds, furthest_booking_seconds,
			availability_kind, availability_schedule_id, availability_calendar_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (service_id, user_id) DO UPDATE SET
			calendar_ids = EXCLUDED.calendar_ids,
			buffer_before_seconds = EXCLUDED.buffer_before_seconds,
			buffer_after_seconds = EXCLUDED.buffer_after_seconds,
			closest_booking_seconds = EXCLUDED.closest_booking_seconds,
			furthest_booking_seconds = EXCLUDED.furthest_booking_seconds,
			availability_kind = EXCLUDED.availability_kind,
			availability_schedule_id = EXCLUDED.availability_schedule_id,
			availability_calendar_id = EXCLUDED.availability_calendar_id
	`
	_, err := a.db.ExecContext(ctx, query,
		resource.ID, serviceID, resource.UserID, calendarIDs,
		int64(resource.BufferBefore/time.Second), int64(resource.BufferAfter/time.Second),
		int64(resource.ClosestBookingTime/time.Second), furthest,
		string(resource.AvailabilityKind), resource.AvailabilityScheduleID, resource.AvailabilityCalendarID,
	)
	return err
}

// RemoveResource detaches a resource from a service.
func (a *ServiceAdapter) RemoveResource(ctx context.Context, serviceID, userID uuid.UUID) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM service_resources WHERE service_id = $1 AND user_id = $2`, serviceID, userID)
	return err
}

var _ out.ServiceRepository = (*ServiceAdapter)(nil)
