package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/slothspotter/internal/model"
)

// PostgresSightingRepo はPostgreSQLを使用した目撃報告リポジトリ。
type PostgresSightingRepo struct {
	db *sql.DB
}

// NewPostgresSightingRepo はPostgresSightingRepoを生成する。
func NewPostgresSightingRepo(db *sql.DB) *PostgresSightingRepo {
	return &PostgresSightingRepo{db: db}
}

// FindByID は指定IDの目撃報告を取得する。見つからない場合はnilを返す。
func (r *PostgresSightingRepo) FindByID(ctx context.Context, id string) (*model.Sighting, error) {
	sighting := &model.Sighting{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, sloth_id, user_id, sighting_type, notes, created_at, updated_at
		 FROM sightings WHERE id = $1`,
		id,
	).Scan(&sighting.ID, &sighting.SlothID, &sighting.UserID, &sighting.Type, &sighting.Notes, &sighting.CreatedAt, &sighting.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find sighting: %w", err)
	}

	return sighting, nil
}

// Create は目撃報告を作成する。
func (r *PostgresSightingRepo) Create(ctx context.Context, sighting *model.Sighting) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sightings (id, sloth_id, user_id, sighting_type, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sighting.ID, sighting.SlothID, sighting.UserID, sighting.Type, sighting.Notes, sighting.CreatedAt, sighting.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sighting: %w", err)
	}
	return nil
}

// ListBySlothID は個体の目撃報告一覧を報告者情報・写真付きで新しい順に返す。
func (r *PostgresSightingRepo) ListBySlothID(ctx context.Context, slothID string) ([]model.SightingWithDetails, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT sg.id, sg.sloth_id, sg.user_id, sg.sighting_type, sg.notes, sg.created_at, sg.updated_at,
		        u.display_name, u.avatar_url
		 FROM sightings sg
		 JOIN users u ON u.id = sg.user_id
		 WHERE sg.sloth_id = $1
		 ORDER BY sg.created_at DESC`,
		slothID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sightings: %w", err)
	}
	defer rows.Close()

	var sightings []model.SightingWithDetails
	for rows.Next() {
		var s model.SightingWithDetails
		if err := rows.Scan(
			&s.ID, &s.SlothID, &s.UserID, &s.Type, &s.Notes, &s.CreatedAt, &s.UpdatedAt,
			&s.ReporterName, &s.ReporterAvatarURL,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sighting row: %w", err)
		}
		sightings = append(sightings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sighting rows: %w", err)
	}

	// 写真はN+1を避けるため一括取得して報告ごとに振り分ける
	if len(sightings) == 0 {
		return sightings, nil
	}

	photoRows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.sighting_id, p.image_id, p.caption, p.is_primary, p.created_at
		 FROM photos p
		 JOIN sightings sg ON sg.id = p.sighting_id
		 WHERE sg.sloth_id = $1
		 ORDER BY p.created_at ASC`,
		slothID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sighting photos: %w", err)
	}
	defer photoRows.Close()

	photosBySighting := make(map[string][]model.Photo)
	for photoRows.Next() {
		var p model.Photo
		if err := photoRows.Scan(&p.ID, &p.SightingID, &p.ImageID, &p.Caption, &p.IsPrimary, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan photo row: %w", err)
		}
		photosBySighting[p.SightingID] = append(photosBySighting[p.SightingID], p)
	}
	if err := photoRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate photo rows: %w", err)
	}

	for i := range sightings {
		sightings[i].Photos = photosBySighting[sightings[i].ID]
	}

	return sightings, nil
}

// CountBySlothID は個体の目撃報告数を返す。
func (r *PostgresSightingRepo) CountBySlothID(ctx context.Context, slothID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sightings WHERE sloth_id = $1`,
		slothID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sightings: %w", err)
	}
	return count, nil
}

// DeleteByID は指定IDの目撃報告を削除する。冪等。
func (r *PostgresSightingRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sightings WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete sighting: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SightingRepository = (*PostgresSightingRepo)(nil)
