package application

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	gonanoid "github.com/jaevor/go-nanoid"

	registry "watering-cloud/internal/registry/domain"
)

const (
	apiKeyLength     = 60
	nameSuffixLength = 4

	defaultPageSize = 10
	maxPageSize     = 100
)

var sortKeys = map[string]struct{}{
	"id":           {},
	"name":         {},
	"status":       {},
	"last_seen_at": {},
	"created_at":   {},
}

// ErrInvalidIP indicates a malformed IP literal.
var ErrInvalidIP = errors.New("registry: invalid ip address")

// ErrInvalidStatus indicates a status outside the allowed enum.
var ErrInvalidStatus = errors.New("registry: invalid status")

// ErrInvalidSortKey indicates a sort column outside the allow-list.
var ErrInvalidSortKey = errors.New("registry: invalid sort key")

// Clock supplies current time.
type Clock interface {
	Now() time.Time
}

// Service implements device registry use cases.
type Service struct {
	repo    registry.DeviceRepository
	clock   Clock
	newKey  func() string
	newName func() string
}

// NewService constructs a registry service.
func NewService(repo registry.DeviceRepository, clock Clock) (*Service, error) {
	if repo == nil {
		return nil, errors.New("registry service: nil repository")
	}
	if clock == nil {
		return nil, errors.New("registry service: nil clock")
	}
	keyGen, err := gonanoid.CustomASCII("0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ", apiKeyLength)
	if err != nil {
		return nil, err
	}
	suffixGen, err := gonanoid.CustomASCII("0123456789ABCDEFGHJKMNPQRSTVWXYZ", nameSuffixLength)
	if err != nil {
		return nil, err
	}
	return &Service{
		repo:    repo,
		clock:   clock,
		newKey:  keyGen,
		newName: func() string { return "Smart Watering Device - " + suffixGen() },
	}, nil
}

// Register creates a device for the given address, or returns the existing
// one when the address is already registered.
func (s *Service) Register(ctx context.Context, ipAddress string) (*registry.Device, error) {
	ipAddress = strings.TrimSpace(ipAddress)
	if net.ParseIP(ipAddress) == nil {
		return nil, ErrInvalidIP
	}
	device := &registry.Device{
		Name:      s.newName(),
		IPAddress: ipAddress,
		APIKey:    s.newKey(),
		Status:    registry.StatusInactive,
	}
	return s.repo.Register(ctx, device)
}

// Get loads a device by id.
func (s *Service) Get(ctx context.Context, id int64) (*registry.Device, error) {
	if id <= 0 {
		return nil, registry.ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// Authenticate resolves a device from its api key.
func (s *Service) Authenticate(ctx context.Context, apiKey string) (*registry.Device, error) {
	if apiKey == "" {
		return nil, registry.ErrNotFound
	}
	return s.repo.GetByAPIKey(ctx, apiKey)
}

// ReportStatus applies an authenticated self-report: the device declares its
// status and refreshes its heartbeat timestamp.
func (s *Service) ReportStatus(ctx context.Context, deviceID int64, status registry.Status, ipAddress string) (*registry.Device, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	if ipAddress != "" && net.ParseIP(ipAddress) == nil {
		return nil, ErrInvalidIP
	}
	update := registry.StatusUpdate{
		Status:     status,
		LastSeenAt: s.clock.Now().UTC(),
		IPAddress:  ipAddress,
	}
	if err := s.repo.UpdateStatus(ctx, deviceID, update); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, deviceID)
}

// List returns a filtered page of devices and the total match count.
func (s *Service) List(ctx context.Context, filter registry.ListFilter) ([]registry.Device, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	if filter.SortKey == "" {
		filter.SortKey = "id"
	}
	if _, ok := sortKeys[filter.SortKey]; !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrInvalidSortKey, filter.SortKey)
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}
	return s.repo.List(ctx, filter)
}

// First returns the earliest registered device, or ErrNotFound when the
// registry is empty. The dashboard falls back to it for single-device setups.
func (s *Service) First(ctx context.Context) (*registry.Device, error) {
	return s.repo.First(ctx)
}
