// Package cleanup は孤児になった外部画像の削除再試行ジョブを提供する。
// 補償処理や報告削除で消しきれなかった画像はorphan_blobsに記録されており、
// このジョブが定期的に外部画像サービスへの削除を再試行する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/slothspotter/internal/images"
	"github.com/hitoshi/slothspotter/internal/repository"
)

// CleanupJob は孤児画像の削除再試行ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	orphanRepo repository.OrphanBlobRepository
	uploader   images.Uploader
	logger     *slog.Logger
	BatchSize  int // 1回の実行で処理する最大件数（デフォルト: 50）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(orphanRepo repository.OrphanBlobRepository, uploader images.Uploader, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		orphanRepo: orphanRepo,
		uploader:   uploader,
		logger:     logger,
		BatchSize:  50,
	}
}

// Run は記録済みの孤児画像に対して削除を再試行する。
// 削除に成功した画像は記録から取り除き、失敗した画像は次回に持ち越す。
// 個々の失敗でジョブ全体は中断しない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	imageIDs, err := j.orphanRepo.List(ctx, j.BatchSize)
	if err != nil {
		j.logger.Error("孤児画像の一覧取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("孤児画像の一覧取得に失敗: %w", err)
	}

	deleted := 0
	remaining := 0
	for _, imageID := range imageIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := j.uploader.Delete(ctx, imageID); err != nil {
			remaining++
			j.logger.Warn("孤児画像の削除再試行に失敗しました",
				slog.String("image_id", imageID),
				slog.String("error", err.Error()),
			)
			continue
		}

		if err := j.orphanRepo.Remove(ctx, imageID); err != nil {
			remaining++
			j.logger.Error("孤児画像の記録削除に失敗しました",
				slog.String("image_id", imageID),
				slog.String("error", err.Error()),
			)
			continue
		}
		deleted++
	}

	duration := time.Since(start)
	j.logger.Info("孤児画像クリーンアップジョブが完了しました",
		slog.Int("deleted_count", deleted),
		slog.Int("remaining_count", remaining),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
