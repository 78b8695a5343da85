package sloth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/slothspotter/internal/model"
	"github.com/hitoshi/slothspotter/internal/repository"
)

type mockSlothRepo struct {
	findByIDFn           func(ctx context.Context, id string) (*model.Sloth, error)
	listWithDiscovererFn func(ctx context.Context) ([]model.SlothWithDiscoverer, error)
}

func (m *mockSlothRepo) FindByID(ctx context.Context, id string) (*model.Sloth, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSlothRepo) CreateWithDiscovery(ctx context.Context, sloth *model.Sloth, discovery *model.Sighting) error {
	return nil
}

func (m *mockSlothRepo) ListWithDiscoverer(ctx context.Context) ([]model.SlothWithDiscoverer, error) {
	if m.listWithDiscovererFn != nil {
		return m.listWithDiscovererFn(ctx)
	}
	return nil, nil
}

func (m *mockSlothRepo) DeleteByID(ctx context.Context, id string) error {
	return nil
}

type mockSightingRepo struct {
	listBySlothIDFn func(ctx context.Context, slothID string) ([]model.SightingWithDetails, error)
}

func (m *mockSightingRepo) FindByID(ctx context.Context, id string) (*model.Sighting, error) {
	return nil, nil
}

func (m *mockSightingRepo) Create(ctx context.Context, sighting *model.Sighting) error {
	return nil
}

func (m *mockSightingRepo) ListBySlothID(ctx context.Context, slothID string) ([]model.SightingWithDetails, error) {
	if m.listBySlothIDFn != nil {
		return m.listBySlothIDFn(ctx, slothID)
	}
	return nil, nil
}

func (m *mockSightingRepo) CountBySlothID(ctx context.Context, slothID string) (int, error) {
	return 0, nil
}

func (m *mockSightingRepo) DeleteByID(ctx context.Context, id string) error {
	return nil
}

// compile-time interface checks
var (
	_ repository.SlothRepository    = (*mockSlothRepo)(nil)
	_ repository.SightingRepository = (*mockSightingRepo)(nil)
)

func TestListSloths_ReturnsAllSloths(t *testing.T) {
	want := []model.SlothWithDiscoverer{
		{
			Sloth:               model.Sloth{ID: "sloth-1", Latitude: 9.93, Longitude: -84.08},
			DiscovererName:      "Alice",
			PrimaryPhotoImageID: "img-1",
			SightingCount:       3,
		},
		{
			Sloth:          model.Sloth{ID: "sloth-2", Latitude: 10.0, Longitude: -83.5},
			DiscovererName: "Bob",
			SightingCount:  1,
		},
	}

	svc := NewService(&mockSlothRepo{
		listWithDiscovererFn: func(ctx context.Context) ([]model.SlothWithDiscoverer, error) {
			return want, nil
		},
	}, &mockSightingRepo{})

	got, err := svc.ListSloths(context.Background())
	if err != nil {
		t.Fatalf("ListSloths() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(sloths) = %d, want 2", len(got))
	}
	if got[0].ID != "sloth-1" || got[1].ID != "sloth-2" {
		t.Errorf("unexpected sloth order: %q, %q", got[0].ID, got[1].ID)
	}
}

func TestListSloths_RepositoryError(t *testing.T) {
	svc := NewService(&mockSlothRepo{
		listWithDiscovererFn: func(ctx context.Context) ([]model.SlothWithDiscoverer, error) {
			return nil, errors.New("db unavailable")
		},
	}, &mockSightingRepo{})

	if _, err := svc.ListSloths(context.Background()); err == nil {
		t.Fatal("ListSloths() error = nil, want error")
	}
}

func TestGetSloth_ReturnsDetailWithSightings(t *testing.T) {
	now := time.Now()

	slothRepo := &mockSlothRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Sloth, error) {
			if id != "sloth-1" {
				t.Errorf("FindByID id = %q, want %q", id, "sloth-1")
			}
			return &model.Sloth{ID: "sloth-1", Latitude: 9.93, Longitude: -84.08, DiscoveredAt: now}, nil
		},
	}
	sightingRepo := &mockSightingRepo{
		listBySlothIDFn: func(ctx context.Context, slothID string) ([]model.SightingWithDetails, error) {
			return []model.SightingWithDetails{
				{Sighting: model.Sighting{ID: "sighting-2", SlothID: slothID, Type: model.SightingTypeFollowup}},
				{Sighting: model.Sighting{ID: "sighting-1", SlothID: slothID, Type: model.SightingTypeDiscovery}},
			}, nil
		},
	}

	svc := NewService(slothRepo, sightingRepo)

	detail, err := svc.GetSloth(context.Background(), "sloth-1")
	if err != nil {
		t.Fatalf("GetSloth() error = %v", err)
	}
	if detail.Sloth.ID != "sloth-1" {
		t.Errorf("sloth ID = %q, want %q", detail.Sloth.ID, "sloth-1")
	}
	if len(detail.Sightings) != 2 {
		t.Fatalf("len(sightings) = %d, want 2", len(detail.Sightings))
	}
	// 新しい順に返ること（リポジトリの順序を保持）
	if detail.Sightings[0].ID != "sighting-2" {
		t.Errorf("first sighting = %q, want %q", detail.Sightings[0].ID, "sighting-2")
	}
}

func TestGetSloth_NotFound(t *testing.T) {
	svc := NewService(&mockSlothRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Sloth, error) {
			return nil, nil
		},
	}, &mockSightingRepo{})

	_, err := svc.GetSloth(context.Background(), "unknown-id")
	if err == nil {
		t.Fatal("GetSloth() error = nil, want not found error")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *model.APIError", err)
	}
	if apiErr.Code != "SLOTH_NOT_FOUND" {
		t.Errorf("error code = %q, want %q", apiErr.Code, "SLOTH_NOT_FOUND")
	}
}

func TestGetSloth_RepositoryError(t *testing.T) {
	svc := NewService(&mockSlothRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Sloth, error) {
			return nil, errors.New("db unavailable")
		},
	}, &mockSightingRepo{})

	if _, err := svc.GetSloth(context.Background(), "sloth-1"); err == nil {
		t.Fatal("GetSloth() error = nil, want error")
	}
}
