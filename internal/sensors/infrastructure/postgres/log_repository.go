// Package postgres implements sensor log storage on PostgreSQL using
// database/sql with plain SQL statements.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sensors "watering-cloud/internal/sensors/domain"
)

const defaultLogsTable = "sensor_logs"

const logColumns = "id, device_id, sensor_number, status, created_at"

// LogRepository stores sensor readings in PostgreSQL.
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

// InsertLogs stores a batch of readings in a single statement.
func (r *LogRepository) InsertLogs(ctx context.Context, logs []sensors.Log) ([]sensors.Log, error) {
	if len(logs) == 0 {
		return nil, nil
	}

	var (
		placeholders []string
		args         []any
	)
	for i, l := range logs {
		base := i * 3
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, NOW())", base+1, base+2, base+3))
		args = append(args, l.DeviceID, l.SensorNumber, l.Status)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (device_id, sensor_number, status, created_at) VALUES %s RETURNING %s",
		r.table, strings.Join(placeholders, ", "), logColumns,
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert sensor logs: %w", err)
	}
	defer rows.Close()

	return scanLogs(rows)
}

// List returns readings newest first, honoring the filter.
func (r *LogRepository) List(ctx context.Context, filter sensors.ListFilter) ([]sensors.Log, error) {
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
	if filter.SensorNumber > 0 {
		conditions = append(conditions, "sensor_number = "+arg(filter.SensorNumber))
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
		return nil, fmt.Errorf("list sensor logs: %w", err)
	}
	defer rows.Close()

	return scanLogs(rows)
}

// LatestByDevice returns the newest reading per sensor number for one device.
func (r *LogRepository) LatestByDevice(ctx context.Context, deviceID int64) (map[int]sensors.Log, error) {
	query := fmt.Sprintf(
		"SELECT DISTINCT ON (sensor_number) %s FROM %s WHERE device_id = $1 ORDER BY sensor_number, created_at DESC, id DESC",
		logColumns, r.table,
	)

	rows, err := r.db.QueryContext(ctx, query, deviceID)
	if err != nil {
		return nil, fmt.Errorf("latest sensor logs: %w", err)
	}
	defer rows.Close()

	logs, err := scanLogs(rows)
	if err != nil {
		return nil, err
	}

	latest := make(map[int]sensors.Log, len(logs))
	for _, l := range logs {
		latest[l.SensorNumber] = l
	}
	return latest, nil
}

func scanLogs(rows *sql.Rows) ([]sensors.Log, error) {
	var logs []sensors.Log
	for rows.Next() {
		var (
			l       sensors.Log
			created time.Time
		)
		if err := rows.Scan(&l.ID, &l.DeviceID, &l.SensorNumber, &l.Status, &created); err != nil {
			return nil, fmt.Errorf("scan sensor log: %w", err)
		}
		l.CreatedAt = created.UTC()
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sensor logs: %w", err)
	}
	return logs, nil
}
