// Package sighting は個体・目撃報告・写真をまたぐ複数リソース作成の
// コーディネーターを提供する。
//
// 作成手順は常に「リレーショナル行を先に、外部Blobを後に」の順で進み、
// 途中で失敗した場合は達成済みの副作用を逆順で巻き戻す補償処理を実行する。
// 補償処理はベストエフォートであり、個々の巻き戻し失敗で中断せず、
// 削除しきれなかった外部画像は孤児として記録し再試行キューに積む。
package sighting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/slothspotter/internal/images"
	"github.com/hitoshi/slothspotter/internal/model"
	"github.com/hitoshi/slothspotter/internal/repository"
)

// SagaMetrics は複数リソース作成のメトリクス記録インターフェース。
type SagaMetrics interface {
	RecordSubmissionSuccess(sightingType string)
	RecordSubmissionFailure(sightingType string)
	RecordCompensationFailure()
	ObserveUploadDuration(seconds float64)
}

// PhotoUpload は送信された写真1枚の入力を表す。
type PhotoUpload struct {
	Data    []byte
	Caption string
}

// Service は目撃報告の送信・削除ロジックを提供する。
type Service struct {
	slothRepo    repository.SlothRepository
	sightingRepo repository.SightingRepository
	photoRepo    repository.PhotoRepository
	orphanRepo   repository.OrphanBlobRepository
	uploader     images.Uploader
	metrics      SagaMetrics

	// now はテストで時刻を差し替えるためのフック。
	now func() time.Time
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	slothRepo repository.SlothRepository,
	sightingRepo repository.SightingRepository,
	photoRepo repository.PhotoRepository,
	orphanRepo repository.OrphanBlobRepository,
	uploader images.Uploader,
	metrics SagaMetrics,
) *Service {
	return &Service{
		slothRepo:    slothRepo,
		sightingRepo: sightingRepo,
		photoRepo:    photoRepo,
		orphanRepo:   orphanRepo,
		uploader:     uploader,
		metrics:      metrics,
		now:          time.Now,
	}
}

// DiscoveryInput は新規個体の発見報告の入力。
type DiscoveryInput struct {
	UserID    string
	Latitude  float64
	Longitude float64
	Notes     string
	Photos    []PhotoUpload
}

// DiscoveryResult は発見報告の作成結果。
type DiscoveryResult struct {
	Sloth    *model.Sloth
	Sighting *model.Sighting
	Photos   []model.Photo
}

// SubmitDiscovery は新規個体と発見報告を作成する。
//
// 手順:
//  1. 個体と発見Sightingを同一トランザクションで作成
//  2. 写真を入力順に1枚ずつアップロードし、成功ごとに写真行を作成
//
// 2.のいずれかで失敗した場合、アップロード済みBlobと作成済みの行を
// すべて巻き戻してからUPLOAD_FAILEDを返す。部分的な成功状態は残らない。
func (s *Service) SubmitDiscovery(ctx context.Context, input DiscoveryInput) (*DiscoveryResult, error) {
	now := s.now()

	sloth := &model.Sloth{
		ID:           uuid.New().String(),
		Latitude:     input.Latitude,
		Longitude:    input.Longitude,
		Status:       model.SlothStatusActive,
		DiscoveredBy: input.UserID,
		DiscoveredAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	discovery := &model.Sighting{
		ID:        uuid.New().String(),
		SlothID:   sloth.ID,
		UserID:    input.UserID,
		Type:      model.SightingTypeDiscovery,
		Notes:     input.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.slothRepo.CreateWithDiscovery(ctx, sloth, discovery); err != nil {
		s.recordFailure(model.SightingTypeDiscovery)
		return nil, fmt.Errorf("failed to create sloth with discovery: %w", err)
	}

	photos, err := s.uploadPhotos(ctx, discovery, input.Photos, true)
	if err != nil {
		s.compensate(ctx, compensation{
			uploadedImageIDs: imageIDsOf(photos),
			sightingID:       discovery.ID,
			slothID:          sloth.ID,
		})
		s.recordFailure(model.SightingTypeDiscovery)
		return nil, err
	}

	s.recordSuccess(model.SightingTypeDiscovery)
	slog.Info("discovery submitted",
		slog.String("sloth_id", sloth.ID),
		slog.String("sighting_id", discovery.ID),
		slog.Int("photo_count", len(photos)),
	)

	return &DiscoveryResult{Sloth: sloth, Sighting: discovery, Photos: photos}, nil
}

// FollowupInput は既存個体への目撃報告の入力。
type FollowupInput struct {
	SlothID string
	UserID  string
	Notes   string
	Photos  []PhotoUpload
}

// FollowupResult は目撃報告の作成結果。
type FollowupResult struct {
	Sighting *model.Sighting
	Photos   []model.Photo
}

// SubmitFollowup は既存個体への目撃報告を作成する。
// 補償処理が巻き戻すのはこの呼び出しで作成した報告と写真のみであり、
// 親となる個体には決して触れない。
func (s *Service) SubmitFollowup(ctx context.Context, input FollowupInput) (*FollowupResult, error) {
	sloth, err := s.slothRepo.FindByID(ctx, input.SlothID)
	if err != nil {
		s.recordFailure(model.SightingTypeFollowup)
		return nil, fmt.Errorf("failed to find sloth: %w", err)
	}
	if sloth == nil {
		return nil, model.NewSlothNotFoundError(input.SlothID)
	}

	now := s.now()
	followup := &model.Sighting{
		ID:        uuid.New().String(),
		SlothID:   sloth.ID,
		UserID:    input.UserID,
		Type:      model.SightingTypeFollowup,
		Notes:     input.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.sightingRepo.Create(ctx, followup); err != nil {
		s.recordFailure(model.SightingTypeFollowup)
		return nil, fmt.Errorf("failed to create sighting: %w", err)
	}

	photos, err := s.uploadPhotos(ctx, followup, input.Photos, false)
	if err != nil {
		s.compensate(ctx, compensation{
			uploadedImageIDs: imageIDsOf(photos),
			sightingID:       followup.ID,
		})
		s.recordFailure(model.SightingTypeFollowup)
		return nil, err
	}

	s.recordSuccess(model.SightingTypeFollowup)
	slog.Info("followup sighting submitted",
		slog.String("sloth_id", sloth.ID),
		slog.String("sighting_id", followup.ID),
		slog.Int("photo_count", len(photos)),
	)

	return &FollowupResult{Sighting: followup, Photos: photos}, nil
}

// uploadPhotos は写真を入力順に1枚ずつアップロードし、写真行を作成する。
// 並列化しない。途中で失敗した場合、それまでに成功した写真を返り値に含めて
// エラーを返し、呼び出し側が補償処理を駆動する。
func (s *Service) uploadPhotos(ctx context.Context, sighting *model.Sighting, uploads []PhotoUpload, firstIsPrimary bool) ([]model.Photo, error) {
	photos := make([]model.Photo, 0, len(uploads))

	for i, upload := range uploads {
		photoID := uuid.New().String()

		start := s.now()
		imageID, err := s.uploader.Upload(ctx, upload.Data, photoID, sighting.UserID)
		if s.metrics != nil {
			s.metrics.ObserveUploadDuration(time.Since(start).Seconds())
		}
		if err != nil {
			slog.Error("photo upload failed",
				slog.String("sighting_id", sighting.ID),
				slog.Int("photo_index", i),
				slog.String("error", err.Error()),
			)
			return photos, model.NewUploadFailedError()
		}

		photo := model.Photo{
			ID:         photoID,
			SightingID: sighting.ID,
			ImageID:    imageID,
			Caption:    upload.Caption,
			IsPrimary:  firstIsPrimary && i == 0,
			CreatedAt:  s.now(),
		}
		if err := s.photoRepo.Create(ctx, &photo); err != nil {
			slog.Error("failed to insert photo row",
				slog.String("sighting_id", sighting.ID),
				slog.String("image_id", imageID),
				slog.String("error", err.Error()),
			)
			// 行が作れなかったBlobも巻き戻し対象に含める
			photos = append(photos, photo)
			return photos, model.NewUploadFailedError()
		}

		photos = append(photos, photo)
	}

	return photos, nil
}

// compensation は巻き戻し対象の副作用を表す。
// slothIDが空の場合、親個体は巻き戻しの対象外（目撃報告の追加時）。
type compensation struct {
	uploadedImageIDs []string
	sightingID       string
	slothID          string
}

// compensate は達成済みの副作用を逆順で巻き戻す。
//
// 各ステップの失敗はログに記録して続行する。リクエストのキャンセルで
// 巻き戻しが中断されないよう、元のコンテキストから切り離して実行する。
// 削除できなかった外部画像は孤児として記録し、クリーンアップワーカーが
// 後で再試行する。
func (s *Service) compensate(ctx context.Context, c compensation) {
	ctx = context.WithoutCancel(ctx)
	failed := false

	// 1. 外部Blobを新しい順に削除
	for i := len(c.uploadedImageIDs) - 1; i >= 0; i-- {
		imageID := c.uploadedImageIDs[i]
		if err := s.uploader.Delete(ctx, imageID); err != nil {
			failed = true
			slog.Error("compensation: failed to delete uploaded image",
				slog.String("image_id", imageID),
				slog.String("error", err.Error()),
			)
			if recordErr := s.orphanRepo.Record(ctx, imageID, s.now()); recordErr != nil {
				slog.Error("compensation: failed to record orphan blob",
					slog.String("image_id", imageID),
					slog.String("error", recordErr.Error()),
				)
			}
			continue
		}
		if err := s.photoRepo.DeleteByImageID(ctx, imageID); err != nil {
			failed = true
			slog.Error("compensation: failed to delete photo row",
				slog.String("image_id", imageID),
				slog.String("error", err.Error()),
			)
		}
	}

	// 2. 目撃報告を削除（残存する写真行はCASCADEで消える）
	if err := s.sightingRepo.DeleteByID(ctx, c.sightingID); err != nil {
		failed = true
		slog.Error("compensation: failed to delete sighting",
			slog.String("sighting_id", c.sightingID),
			slog.String("error", err.Error()),
		)
	}

	// 3. 発見報告の場合のみ、親個体も削除
	if c.slothID != "" {
		if err := s.slothRepo.DeleteByID(ctx, c.slothID); err != nil {
			failed = true
			slog.Error("compensation: failed to delete sloth",
				slog.String("sloth_id", c.slothID),
				slog.String("error", err.Error()),
			)
		}
	}

	if failed && s.metrics != nil {
		s.metrics.RecordCompensationFailure()
	}
}

// DeleteSighting は自分の目撃報告を削除する。
//
// 発見報告を削除する場合、その個体に残る報告が他にあれば報告のみ削除し、
// 残らなければ個体ごと削除する。写真のBlobは行の削除後にベストエフォートで
// 消し、失敗分は孤児として記録する。
func (s *Service) DeleteSighting(ctx context.Context, sightingID, userID string) error {
	sighting, err := s.sightingRepo.FindByID(ctx, sightingID)
	if err != nil {
		return fmt.Errorf("failed to find sighting: %w", err)
	}
	if sighting == nil {
		return model.NewSightingNotFoundError(sightingID)
	}
	if sighting.UserID != userID {
		// 他人の報告は存在を明かさない
		return model.NewSightingNotFoundError(sightingID)
	}

	photos, err := s.photoRepo.ListBySightingID(ctx, sighting.ID)
	if err != nil {
		return fmt.Errorf("failed to list photos: %w", err)
	}

	count, err := s.sightingRepo.CountBySlothID(ctx, sighting.SlothID)
	if err != nil {
		return fmt.Errorf("failed to count sightings: %w", err)
	}

	if count <= 1 {
		// 最後の報告。個体ごと削除する（報告・写真はCASCADE）。
		if err := s.slothRepo.DeleteByID(ctx, sighting.SlothID); err != nil {
			return fmt.Errorf("failed to delete sloth: %w", err)
		}
		slog.Info("last sighting removed, sloth deleted",
			slog.String("sloth_id", sighting.SlothID),
			slog.String("sighting_id", sighting.ID),
		)
	} else {
		if err := s.sightingRepo.DeleteByID(ctx, sighting.ID); err != nil {
			return fmt.Errorf("failed to delete sighting: %w", err)
		}
		slog.Info("sighting deleted",
			slog.String("sloth_id", sighting.SlothID),
			slog.String("sighting_id", sighting.ID),
		)
	}

	// 行の削除が確定してからBlobを消す。失敗分は孤児記録に回す。
	cleanupCtx := context.WithoutCancel(ctx)
	for _, photo := range photos {
		if err := s.uploader.Delete(cleanupCtx, photo.ImageID); err != nil {
			slog.Warn("failed to delete image for removed sighting",
				slog.String("image_id", photo.ImageID),
				slog.String("error", err.Error()),
			)
			if recordErr := s.orphanRepo.Record(cleanupCtx, photo.ImageID, s.now()); recordErr != nil {
				slog.Error("failed to record orphan blob",
					slog.String("image_id", photo.ImageID),
					slog.String("error", recordErr.Error()),
				)
			}
		}
	}

	return nil
}

func (s *Service) recordSuccess(t model.SightingType) {
	if s.metrics != nil {
		s.metrics.RecordSubmissionSuccess(string(t))
	}
}

func (s *Service) recordFailure(t model.SightingType) {
	if s.metrics != nil {
		s.metrics.RecordSubmissionFailure(string(t))
	}
}

func imageIDsOf(photos []model.Photo) []string {
	ids := make([]string, 0, len(photos))
	for _, p := range photos {
		ids = append(ids, p.ImageID)
	}
	return ids
}
