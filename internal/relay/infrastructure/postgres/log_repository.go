// Package postgres implements relay log storage on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	relay "watering-cloud/internal/relay/domain"
)

const defaultLogsTable = "relay_logs"

const logColumns = "id, device_id, action, duration_seconds, created_at"

// LogRepository stores relay activity in PostgreSQL.
type LogRepository struct {
	db    *sql.DB
	table string
}

// LogRepositoryOption customizes a LogRepository.
type LogRepositoryOption func(*LogRepository)

// WithLogTable overrides the backing table name, used by tests.
func WithLogTable(table string) LogRepositoryOption {
	return func(r *LogRepository) {
		r.table = table
	}
}

// NewLogRepository builds a LogRepository over an open database handle.
func NewLogRepository(db *sql.DB, opts ...LogRepositoryOption) (*LogRepository, error) {
	if db == nil {
		return nil, errors.New("postgres: db is required")
	}
	r := &LogRepository{db: db, table: defaultLogsTable}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *LogRepository) Insert(ctx context.Context, log *relay.Log) (*relay.Log, error) {
	query := fmt.Sprintf(
		"INSERT INTO %s (device_id, action, duration_seconds, created_at) VALUES ($1, $2, $3, NOW()) RETURNING %s",
		r.table, logColumns,
	)

	var duration sql.NullInt64
	if log.DurationSeconds != nil {
		duration = sql.NullInt64{Int64: int64(*log.DurationSeconds), Valid: true}
	}

	row := r.db.QueryRowContext(ctx, query, log.DeviceID, log.Action, duration)
	stored, err := scanLog(row)
	if err != nil {
		return nil, fmt.Errorf("insert relay log: %w", err)
	}
	return stored, nil
}

func (r *LogRepository) List(ctx context.Context, filter relay.ListFilter) ([]relay.Log, error) {
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
	if filter.Action != "" {
		conditions = append(conditions, "action = "+arg(filter.Action))
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "created_at >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "created_at <= "+arg(filter.To))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s%s ORDER BY created_at DESC, id DESC LIMIT %s",
		logColumns, r.table, where, arg(limit),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list relay logs: %w", err)
	}
	defer rows.Close()

	var logs []relay.Log
	for rows.Next() {
		log, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan relay log: %w", err)
		}
		logs = append(logs, *log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relay logs: %w", err)
	}
	return logs, nil
}

func (r *LogRepository) Latest(ctx context.Context, deviceID int64) (*relay.Log, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE device_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1",
		logColumns, r.table,
	)
	log, err := scanLog(r.db.QueryRowContext(ctx, query, deviceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, relay.ErrNotFound
		}
		return nil, fmt.Errorf("latest relay log: %w", err)
	}
	return log, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLog(row rowScanner) (*relay.Log, error) {
	var (
		log      relay.Log
		duration sql.NullInt64
		created  time.Time
	)
	if err := row.Scan(&log.ID, &log.DeviceID, &log.Action, &duration, &created); err != nil {
		return nil, err
	}
	if duration.Valid {
		d := int(duration.Int64)
		log.DurationSeconds = &d
	}
	log.CreatedAt = created.UTC()
	return &log, nil
}
