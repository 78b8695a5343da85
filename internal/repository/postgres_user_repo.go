package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/slothspotter/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, display_name, avatar_url, provider, provider_user_id, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.DisplayName, &user.AvatarURL, &user.Provider, &user.ProviderUserID, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// FindByProviderAndProviderUserID はproviderとprovider_user_idでユーザーを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByProviderAndProviderUserID(ctx context.Context, provider model.AuthProvider, providerUserID string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, display_name, avatar_url, provider, provider_user_id, created_at, updated_at
		 FROM users WHERE provider = $1 AND provider_user_id = $2`,
		provider, providerUserID,
	).Scan(&user.ID, &user.DisplayName, &user.AvatarURL, &user.Provider, &user.ProviderUserID, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by provider identity: %w", err)
	}

	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, display_name, avatar_url, provider, provider_user_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.DisplayName, user.AvatarURL, user.Provider, user.ProviderUserID, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateProfile は表示名とアバターURLを更新する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, id, displayName, avatarURL string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`UPDATE users SET display_name = $2, avatar_url = $3, updated_at = $4
		 WHERE id = $1
		 RETURNING id, display_name, avatar_url, provider, provider_user_id, created_at, updated_at`,
		id, displayName, avatarURL, time.Now(),
	).Scan(&user.ID, &user.DisplayName, &user.AvatarURL, &user.Provider, &user.ProviderUserID, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user profile: %w", err)
	}

	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
