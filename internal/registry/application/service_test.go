package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	registry "watering-cloud/internal/registry/domain"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type stubRepo struct {
	registry.DeviceRepository

	registered *registry.Device
	updated    *registry.StatusUpdate
	device     *registry.Device
}

func (s *stubRepo) Register(_ context.Context, device *registry.Device) (*registry.Device, error) {
	s.registered = device
	copied := *device
	copied.ID = 1
	return &copied, nil
}

func (s *stubRepo) UpdateStatus(_ context.Context, _ int64, update registry.StatusUpdate) error {
	s.updated = &update
	return nil
}

func (s *stubRepo) Get(_ context.Context, _ int64) (*registry.Device, error) {
	if s.device != nil {
		copied := *s.device
		return &copied, nil
	}
	return nil, registry.ErrNotFound
}

func (s *stubRepo) List(_ context.Context, filter registry.ListFilter) ([]registry.Device, int, error) {
	return nil, 0, nil
}

func newService(t *testing.T, repo *stubRepo, now time.Time) *Service {
	t.Helper()
	service, err := NewService(repo, fixedClock{now: now})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func TestRegister_GeneratesCredentialAndName(t *testing.T) {
	repo := &stubRepo{}
	service := newService(t, repo, time.Now().UTC())

	device, err := service.Register(context.Background(), "192.168.1.4")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(device.APIKey) != 60 {
		t.Fatalf("expected 60-char credential, got %d", len(device.APIKey))
	}
	if !strings.HasPrefix(device.Name, "Smart Watering Device - ") {
		t.Fatalf("unexpected name %q", device.Name)
	}
	if device.Status != registry.StatusInactive {
		t.Fatalf("fresh device must start inactive, got %s", device.Status)
	}
}

func TestRegister_CredentialsAreUnique(t *testing.T) {
	repo := &stubRepo{}
	service := newService(t, repo, time.Now().UTC())

	first, err := service.Register(context.Background(), "192.168.1.4")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	second, err := service.Register(context.Background(), "192.168.1.5")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if first.APIKey == second.APIKey {
		t.Fatal("expected distinct credentials per registration")
	}
}

func TestRegister_RejectsMalformedAddress(t *testing.T) {
	service := newService(t, &stubRepo{}, time.Now().UTC())

	if _, err := service.Register(context.Background(), "999.999.1.1"); !errors.Is(err, ErrInvalidIP) {
		t.Fatalf("expected ErrInvalidIP, got %v", err)
	}
}

func TestReportStatus_UsesInjectedClock(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := &stubRepo{device: &registry.Device{ID: 1, Status: registry.StatusActive}}
	service := newService(t, repo, now)

	if _, err := service.ReportStatus(context.Background(), 1, registry.StatusActive, ""); err != nil {
		t.Fatalf("report: %v", err)
	}
	if repo.updated == nil || !repo.updated.LastSeenAt.Equal(now) {
		t.Fatalf("expected last_seen_at from injected clock, got %+v", repo.updated)
	}
}

func TestReportStatus_RejectsUnknownStatus(t *testing.T) {
	repo := &stubRepo{}
	service := newService(t, repo, time.Now().UTC())

	if _, err := service.ReportStatus(context.Background(), 1, registry.Status("flying"), ""); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if repo.updated != nil {
		t.Fatal("no update may be issued for an invalid status")
	}
}

func TestList_SortAllowList(t *testing.T) {
	service := newService(t, &stubRepo{}, time.Now().UTC())

	for _, key := range []string{"id", "name", "status", "last_seen_at", "created_at"} {
		if _, _, err := service.List(context.Background(), registry.ListFilter{SortKey: key}); err != nil {
			t.Fatalf("sort key %q should be allowed: %v", key, err)
		}
	}
	if _, _, err := service.List(context.Background(), registry.ListFilter{SortKey: "api_key"}); !errors.Is(err, ErrInvalidSortKey) {
		t.Fatalf("expected ErrInvalidSortKey, got %v", err)
	}
}
