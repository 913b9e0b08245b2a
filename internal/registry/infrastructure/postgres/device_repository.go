package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	registry "watering-cloud/internal/registry/domain"
)

const defaultDevicesTable = "devices"

var sortColumns = map[string]string{
	"id":           "id",
	"name":         "name",
	"status":       "status",
	"last_seen_at": "last_seen_at",
	"created_at":   "created_at",
}

// DeviceRepository is a Postgres implementation for devices.
type DeviceRepository struct {
	db    *sql.DB
	table string
}

// NewDeviceRepository constructs a repository.
func NewDeviceRepository(db *sql.DB, opts ...DeviceOption) *DeviceRepository {
	repo := &DeviceRepository{db: db, table: defaultDevicesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// DeviceOption configures the repository.
type DeviceOption func(*DeviceRepository)

// WithDeviceTable overrides the default table name.
func WithDeviceTable(table string) DeviceOption {
	return func(repo *DeviceRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const deviceColumns = "id, name, ip_address, api_key, status, last_seen_at, created_at, updated_at"

// Get loads a device by id.
func (r *DeviceRepository) Get(ctx context.Context, id int64) (*registry.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
LIMIT 1`, deviceColumns, r.table)
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByAPIKey loads a device by its credential.
func (r *DeviceRepository) GetByAPIKey(ctx context.Context, apiKey string) (*registry.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	if apiKey == "" {
		return nil, registry.ErrNotFound
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE api_key = $1
LIMIT 1`, deviceColumns, r.table)
	return r.scanOne(r.db.QueryRowContext(ctx, query, apiKey))
}

// First loads the earliest registered device.
func (r *DeviceRepository) First(ctx context.Context) (*registry.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
ORDER BY id ASC
LIMIT 1`, deviceColumns, r.table)
	return r.scanOne(r.db.QueryRowContext(ctx, query))
}

// Register inserts a device keyed on ip_address. When the address is already
// registered the existing row is returned untouched, credential included.
func (r *DeviceRepository) Register(ctx context.Context, device *registry.Device) (*registry.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	if device == nil {
		return nil, errors.New("device repo: nil device")
	}
	if err := device.Validate(); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (name, ip_address, api_key, status)
VALUES ($1, $2, $3, $4)
ON CONFLICT (ip_address) DO NOTHING
RETURNING %s`, r.table, deviceColumns)

	created, err := r.scanOne(r.db.QueryRowContext(ctx, query, device.Name, device.IPAddress, device.APIKey, device.Status))
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, registry.ErrNotFound) {
		return nil, err
	}

	// Conflict: the address was registered before. Hand back that row.
	existing := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE ip_address = $1
LIMIT 1`, deviceColumns, r.table)
	return r.scanOne(r.db.QueryRowContext(ctx, existing, device.IPAddress))
}

// List returns a filter page and the total match count.
func (r *DeviceRepository) List(ctx context.Context, filter registry.ListFilter) ([]registry.Device, int, error) {
	if r == nil || r.db == nil {
		return nil, 0, errors.New("device repo: nil db")
	}

	var (
		conditions []string
		args       []any
	)
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != "" {
		conditions = append(conditions, "status = "+arg(string(filter.Status)))
	}
	if filter.NameLike != "" {
		conditions = append(conditions, "name ILIKE "+arg("%"+filter.NameLike+"%"))
	}
	if !filter.CreatedFrom.IsZero() {
		conditions = append(conditions, "created_at >= "+arg(filter.CreatedFrom.UTC()))
	}
	if !filter.CreatedTo.IsZero() {
		conditions = append(conditions, "created_at <= "+arg(filter.CreatedTo.UTC()))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s %s", r.table, where)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	column, ok := sortColumns[filter.SortKey]
	if !ok {
		column = "id"
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 10
	}
	limitArgs := append(args, pageSize, (page-1)*pageSize)

	query := fmt.Sprintf(`
SELECT %s
FROM %s
%s
ORDER BY %s %s, id ASC
LIMIT $%d OFFSET $%d`, deviceColumns, r.table, where, column, direction, len(args)+1, len(args)+2)

	rows, err := r.db.QueryContext(ctx, query, limitArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []registry.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// UpdateStatus applies a heartbeat write to one device row.
func (r *DeviceRepository) UpdateStatus(ctx context.Context, id int64, update registry.StatusUpdate) error {
	if r == nil || r.db == nil {
		return errors.New("device repo: nil db")
	}
	if !update.Status.Valid() {
		return errors.New("device repo: invalid status")
	}

	var (
		query string
		args  []any
	)
	if update.IPAddress != "" {
		query = fmt.Sprintf(`
UPDATE %s
SET status = $1, last_seen_at = $2, ip_address = $3, updated_at = $2
WHERE id = $4`, r.table)
		args = []any{string(update.Status), update.LastSeenAt.UTC(), update.IPAddress, id}
	} else {
		query = fmt.Sprintf(`
UPDATE %s
SET status = $1, last_seen_at = $2, updated_at = $2
WHERE id = $3`, r.table)
		args = []any{string(update.Status), update.LastSeenAt.UTC(), id}
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return registry.ErrNotFound
	}
	return nil
}

// MarkStale demotes every row whose heartbeat is strictly older than cutoff,
// or that never reported, in one statement. Returns the affected count.
func (r *DeviceRepository) MarkStale(ctx context.Context, cutoff time.Time, now time.Time) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("device repo: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET status = $1, updated_at = $2
WHERE status <> $1
  AND (last_seen_at < $3 OR last_seen_at IS NULL)`, r.table)

	result, err := r.db.ExecContext(ctx, query, string(registry.StatusInactive), now.UTC(), cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *DeviceRepository) scanOne(row *sql.Row) (*registry.Device, error) {
	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, registry.ErrNotFound
		}
		return nil, err
	}
	return device, nil
}

func scanDevice(row rowScanner) (*registry.Device, error) {
	var (
		device   registry.Device
		lastSeen sql.NullTime
	)
	if err := row.Scan(
		&device.ID,
		&device.Name,
		&device.IPAddress,
		&device.APIKey,
		&device.Status,
		&lastSeen,
		&device.CreatedAt,
		&device.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		seen := lastSeen.Time.UTC()
		device.LastSeenAt = &seen
	}
	device.CreatedAt = device.CreatedAt.UTC()
	device.UpdatedAt = device.UpdatedAt.UTC()
	return &device, nil
}
