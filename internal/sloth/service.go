// Package sloth は個体の参照系ロジックを提供する。
package sloth

import (
	"context"
	"fmt"

	"github.com/hitoshi/slothspotter/internal/model"
	"github.com/hitoshi/slothspotter/internal/repository"
)

// Service は個体の参照に関するビジネスロジックを提供する。
type Service struct {
	slothRepo    repository.SlothRepository
	sightingRepo repository.SightingRepository
}

// NewService はServiceを生成する。
func NewService(slothRepo repository.SlothRepository, sightingRepo repository.SightingRepository) *Service {
	return &Service{slothRepo: slothRepo, sightingRepo: sightingRepo}
}

// ListSloths は地図表示用に全個体を発見者情報付きで返す。
func (s *Service) ListSloths(ctx context.Context) ([]model.SlothWithDiscoverer, error) {
	sloths, err := s.slothRepo.ListWithDiscoverer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sloths: %w", err)
	}
	return sloths, nil
}

// SlothDetail は個体詳細ページ用のデータ。
type SlothDetail struct {
	Sloth     *model.Sloth
	Sightings []model.SightingWithDetails
}

// GetSloth は個体の詳細を目撃報告一覧付きで返す。
func (s *Service) GetSloth(ctx context.Context, slothID string) (*SlothDetail, error) {
	sloth, err := s.slothRepo.FindByID(ctx, slothID)
	if err != nil {
		return nil, fmt.Errorf("failed to find sloth: %w", err)
	}
	if sloth == nil {
		return nil, model.NewSlothNotFoundError(slothID)
	}

	sightings, err := s.sightingRepo.ListBySlothID(ctx, slothID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sightings: %w", err)
	}

	return &SlothDetail{Sloth: sloth, Sightings: sightings}, nil
}
