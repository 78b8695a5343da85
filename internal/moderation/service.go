// Package moderation はコンテンツ通報の受付ロジックを提供する。
package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/slothspotter/internal/model"
	"github.com/hitoshi/slothspotter/internal/repository"
)

// maxCommentLength は通報コメントの最大文字数。
const maxCommentLength = 1000

// Service は通報に関するビジネスロジックを提供する。
type Service struct {
	reportRepo   repository.ModerationReportRepository
	slothRepo    repository.SlothRepository
	sightingRepo repository.SightingRepository

	now func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	reportRepo repository.ModerationReportRepository,
	slothRepo repository.SlothRepository,
	sightingRepo repository.SightingRepository,
) *Service {
	return &Service{
		reportRepo:   reportRepo,
		slothRepo:    slothRepo,
		sightingRepo: sightingRepo,
		now:          time.Now,
	}
}

// ReportInput はコンテンツ通報の入力。
type ReportInput struct {
	ContentType model.ContentType
	ContentID   string
	Reason      model.ReportReason
	Comment     string
	ReportedBy  string
}

// ReportContent はコンテンツ通報を受け付ける。
// 理由がotherの場合はコメントが必須。通報対象の存在は個体・報告については
// 検証するが、写真は行の特定コストに見合わないためIDのまま受け付ける。
func (s *Service) ReportContent(ctx context.Context, input ReportInput) (*model.ModerationReport, error) {
	if !model.ValidReportReason(input.Reason) {
		return nil, model.NewValidationFailedError("通報理由が不正です")
	}
	if input.Reason == model.ReportReasonOther && input.Comment == "" {
		return nil, model.NewValidationFailedError("理由がその他の場合はコメントが必須です")
	}
	if len([]rune(input.Comment)) > maxCommentLength {
		return nil, model.NewValidationFailedError(fmt.Sprintf("コメントは%d文字以内で入力してください", maxCommentLength))
	}

	switch input.ContentType {
	case model.ContentTypeSloth:
		sloth, err := s.slothRepo.FindByID(ctx, input.ContentID)
		if err != nil {
			return nil, fmt.Errorf("failed to find sloth: %w", err)
		}
		if sloth == nil {
			return nil, model.NewSlothNotFoundError(input.ContentID)
		}
	case model.ContentTypeSighting:
		sighting, err := s.sightingRepo.FindByID(ctx, input.ContentID)
		if err != nil {
			return nil, fmt.Errorf("failed to find sighting: %w", err)
		}
		if sighting == nil {
			return nil, model.NewSightingNotFoundError(input.ContentID)
		}
	case model.ContentTypePhoto:
		// 写真は外部画像IDで通報される
	default:
		return nil, model.NewValidationFailedError("通報対象の種別が不正です")
	}

	report := &model.ModerationReport{
		ID:          uuid.New().String(),
		ContentType: input.ContentType,
		ContentID:   input.ContentID,
		Reason:      input.Reason,
		Comment:     input.Comment,
		ReportedBy:  input.ReportedBy,
		CreatedAt:   s.now(),
	}
	if err := s.reportRepo.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to create moderation report: %w", err)
	}

	return report, nil
}
