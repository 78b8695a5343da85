package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/slothspotter/internal/model"
)

// PostgresPhotoRepo はPostgreSQLを使用した写真リポジトリ。
type PostgresPhotoRepo struct {
	db *sql.DB
}

// NewPostgresPhotoRepo はPostgresPhotoRepoを生成する。
func NewPostgresPhotoRepo(db *sql.DB) *PostgresPhotoRepo {
	return &PostgresPhotoRepo{db: db}
}

// Create は写真レコードを作成する。
func (r *PostgresPhotoRepo) Create(ctx context.Context, photo *model.Photo) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO photos (id, sighting_id, image_id, caption, is_primary, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		photo.ID, photo.SightingID, photo.ImageID, photo.Caption, photo.IsPrimary, photo.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert photo: %w", err)
	}
	return nil
}

// ListBySightingID は目撃報告に紐づく写真を作成順に返す。
func (r *PostgresPhotoRepo) ListBySightingID(ctx context.Context, sightingID string) ([]model.Photo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, sighting_id, image_id, caption, is_primary, created_at
		 FROM photos
		 WHERE sighting_id = $1
		 ORDER BY created_at ASC`,
		sightingID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query photos: %w", err)
	}
	defer rows.Close()

	var photos []model.Photo
	for rows.Next() {
		var p model.Photo
		if err := rows.Scan(&p.ID, &p.SightingID, &p.ImageID, &p.Caption, &p.IsPrimary, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan photo row: %w", err)
		}
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate photo rows: %w", err)
	}

	return photos, nil
}

// DeleteByImageID は外部画像IDで写真レコードを削除する。
// 補償処理から呼ばれるため、存在しないIDの削除はエラーにならない。
func (r *PostgresPhotoRepo) DeleteByImageID(ctx context.Context, imageID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM photos WHERE image_id = $1`,
		imageID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	return nil
}

// compile-time interface check
var _ PhotoRepository = (*PostgresPhotoRepo)(nil)

// PostgresModerationReportRepo はPostgreSQLを使用した通報リポジトリ。
type PostgresModerationReportRepo struct {
	db *sql.DB
}

// NewPostgresModerationReportRepo はPostgresModerationReportRepoを生成する。
func NewPostgresModerationReportRepo(db *sql.DB) *PostgresModerationReportRepo {
	return &PostgresModerationReportRepo{db: db}
}

// Create は通報を作成する。
func (r *PostgresModerationReportRepo) Create(ctx context.Context, report *model.ModerationReport) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO moderation_reports (id, content_type, content_id, reason, comment, reported_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		report.ID, report.ContentType, report.ContentID, report.Reason, report.Comment, report.ReportedBy, report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert moderation report: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ModerationReportRepository = (*PostgresModerationReportRepo)(nil)

// PostgresOrphanBlobRepo は補償処理で削除しきれなかった外部画像の記録リポジトリ。
type PostgresOrphanBlobRepo struct {
	db *sql.DB
}

// NewPostgresOrphanBlobRepo はPostgresOrphanBlobRepoを生成する。
func NewPostgresOrphanBlobRepo(db *sql.DB) *PostgresOrphanBlobRepo {
	return &PostgresOrphanBlobRepo{db: db}
}

// Record は削除に失敗した外部画像IDを記録する。重複記録は無視される。
func (r *PostgresOrphanBlobRepo) Record(ctx context.Context, imageID string, failedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO orphan_blobs (image_id, failed_at)
		 VALUES ($1, $2)
		 ON CONFLICT (image_id) DO NOTHING`,
		imageID, failedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record orphan blob: %w", err)
	}
	return nil
}

// List は再試行対象の外部画像IDを古い順に最大limit件返す。
func (r *PostgresOrphanBlobRepo) List(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT image_id FROM orphan_blobs ORDER BY failed_at ASC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list orphan blobs: %w", err)
	}
	defer rows.Close()

	var imageIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan orphan blob row: %w", err)
		}
		imageIDs = append(imageIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orphan blob rows: %w", err)
	}

	return imageIDs, nil
}

// Remove は削除に成功した外部画像IDの記録を消す。冪等。
func (r *PostgresOrphanBlobRepo) Remove(ctx context.Context, imageID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM orphan_blobs WHERE image_id = $1`,
		imageID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove orphan blob: %w", err)
	}
	return nil
}

// compile-time interface check
var _ OrphanBlobRepository = (*PostgresOrphanBlobRepo)(nil)
