package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/slothspotter/internal/model"
)

// PostgresSlothRepo はPostgreSQLを使用した個体リポジトリ。
type PostgresSlothRepo struct {
	db *sql.DB
}

// NewPostgresSlothRepo はPostgresSlothRepoを生成する。
func NewPostgresSlothRepo(db *sql.DB) *PostgresSlothRepo {
	return &PostgresSlothRepo{db: db}
}

// FindByID は指定IDの個体を取得する。見つからない場合はnilを返す。
func (r *PostgresSlothRepo) FindByID(ctx context.Context, id string) (*model.Sloth, error) {
	sloth := &model.Sloth{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, latitude, longitude, status, discovered_by, discovered_at, created_at, updated_at
		 FROM sloths WHERE id = $1`,
		id,
	).Scan(&sloth.ID, &sloth.Latitude, &sloth.Longitude, &sloth.Status, &sloth.DiscoveredBy, &sloth.DiscoveredAt, &sloth.CreatedAt, &sloth.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find sloth: %w", err)
	}

	return sloth, nil
}

// CreateWithDiscovery は個体と発見Sightingを同一トランザクションで作成する。
// 両方成功するか両方失敗するかのいずれか。
func (r *PostgresSlothRepo) CreateWithDiscovery(ctx context.Context, sloth *model.Sloth, discovery *model.Sighting) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 個体を作成
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sloths (id, latitude, longitude, status, discovered_by, discovered_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sloth.ID, sloth.Latitude, sloth.Longitude, sloth.Status, sloth.DiscoveredBy, sloth.DiscoveredAt, sloth.CreatedAt, sloth.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sloth: %w", err)
	}

	// 発見Sightingを作成
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sightings (id, sloth_id, user_id, sighting_type, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		discovery.ID, discovery.SlothID, discovery.UserID, discovery.Type, discovery.Notes, discovery.CreatedAt, discovery.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert discovery sighting: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListWithDiscoverer は地図表示用に全個体を発見者情報・プライマリ写真付きで返す。
func (r *PostgresSlothRepo) ListWithDiscoverer(ctx context.Context) ([]model.SlothWithDiscoverer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.id, s.latitude, s.longitude, s.status, s.discovered_by, s.discovered_at,
		        s.created_at, s.updated_at,
		        u.display_name, u.avatar_url,
		        COALESCE((
		            SELECT p.image_id FROM photos p
		            JOIN sightings sg ON sg.id = p.sighting_id
		            WHERE sg.sloth_id = s.id AND sg.sighting_type = 'discovery'
		            ORDER BY p.is_primary DESC, p.created_at ASC
		            LIMIT 1
		        ), ''),
		        (SELECT count(*) FROM sightings sg WHERE sg.sloth_id = s.id)
		 FROM sloths s
		 JOIN users u ON u.id = s.discovered_by
		 ORDER BY s.created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sloths: %w", err)
	}
	defer rows.Close()

	var result []model.SlothWithDiscoverer
	for rows.Next() {
		var s model.SlothWithDiscoverer
		if err := rows.Scan(
			&s.ID, &s.Latitude, &s.Longitude, &s.Status, &s.DiscoveredBy, &s.DiscoveredAt,
			&s.CreatedAt, &s.UpdatedAt,
			&s.DiscovererName, &s.DiscovererAvatarURL,
			&s.PrimaryPhotoImageID, &s.SightingCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sloth row: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sloth rows: %w", err)
	}

	return result, nil
}

// DeleteByID は指定IDの個体を削除する。
// 関連するsightings、photosはCASCADE削除される。冪等。
func (r *PostgresSlothRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sloths WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete sloth: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SlothRepository = (*PostgresSlothRepo)(nil)
