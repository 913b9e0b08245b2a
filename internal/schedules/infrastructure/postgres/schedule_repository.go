// Package postgres implements schedule storage on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	schedules "watering-cloud/internal/schedules/domain"
)

const defaultSchedulesTable = "schedules"

const scheduleColumns = "id, device_id, hour, minute, active, created_at, updated_at"

// ScheduleRepository stores schedules in PostgreSQL.
type ScheduleRepository struct {
	db    *sql.DB
	table string
}

// ScheduleRepositoryOption customizes a ScheduleRepository.
type ScheduleRepositoryOption func(*ScheduleRepository)

// WithScheduleTable overrides the backing table name, used by tests.
func WithScheduleTable(table string) ScheduleRepositoryOption {
	return func(r *ScheduleRepository) {
		r.table = table
	}
}

// NewScheduleRepository builds a ScheduleRepository over an open handle.
func NewScheduleRepository(db *sql.DB, opts ...ScheduleRepositoryOption) (*ScheduleRepository, error) {
	if db == nil {
		return nil, errors.New("postgres: db is required")
	}
	r := &ScheduleRepository{db: db, table: defaultSchedulesTable}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *ScheduleRepository) Create(ctx context.Context, schedule *schedules.Schedule) (*schedules.Schedule, error) {
	query := fmt.Sprintf(
		"INSERT INTO %s (device_id, hour, minute, active, created_at, updated_at) VALUES ($1, $2, $3, $4, NOW(), NOW()) RETURNING %s",
		r.table, scheduleColumns,
	)
	stored, err := scanSchedule(r.db.QueryRowContext(ctx, query, schedule.DeviceID, schedule.Hour, schedule.Minute, schedule.Active))
	if err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	return stored, nil
}

func (r *ScheduleRepository) Get(ctx context.Context, id int64) (*schedules.Schedule, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", scheduleColumns, r.table)
	schedule, err := scanSchedule(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, schedules.ErrNotFound
		}
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return schedule, nil
}

func (r *ScheduleRepository) List(ctx context.Context, filter schedules.ListFilter) ([]schedules.Schedule, error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.DeviceID > 0 {
		conditions = append(conditions, "device_id = "+arg(filter.DeviceID))
	}
	if filter.Active != nil {
		conditions = append(conditions, "active = "+arg(*filter.Active))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY hour ASC, minute ASC, id ASC", scheduleColumns, r.table, where)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var result []schedules.Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		result = append(result, *schedule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}
	return result, nil
}

func (r *ScheduleRepository) Update(ctx context.Context, id int64, update schedules.Update) (*schedules.Schedule, error) {
	var (
		assignments []string
		args        []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if update.Hour != nil {
		assignments = append(assignments, "hour = "+arg(*update.Hour))
	}
	if update.Minute != nil {
		assignments = append(assignments, "minute = "+arg(*update.Minute))
	}
	if update.Active != nil {
		assignments = append(assignments, "active = "+arg(*update.Active))
	}
	if len(assignments) == 0 {
		return r.Get(ctx, id)
	}
	assignments = append(assignments, "updated_at = NOW()")

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = %s RETURNING %s",
		r.table, strings.Join(assignments, ", "), arg(id), scheduleColumns,
	)
	schedule, err := scanSchedule(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, schedules.ErrNotFound
		}
		return nil, fmt.Errorf("update schedule: %w", err)
	}
	return schedule, nil
}

func (r *ScheduleRepository) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", r.table)
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if affected == 0 {
		return schedules.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*schedules.Schedule, error) {
	var (
		schedule schedules.Schedule
		created  time.Time
		updated  time.Time
	)
	if err := row.Scan(&schedule.ID, &schedule.DeviceID, &schedule.Hour, &schedule.Minute, &schedule.Active, &created, &updated); err != nil {
		return nil, err
	}
	schedule.CreatedAt = created.UTC()
	schedule.UpdatedAt = updated.UTC()
	return &schedule, nil
}
