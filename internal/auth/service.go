// Package auth はOAuth認証フロー、トークン生成、セッション検証を提供する。
//
// セッションはベアラートークンのSHA-256ハッシュをキーとしてKVストアに保存され、
// ユーザーレコードを保持するリレーショナルストアからは分離されている。
// トークンの有効期間は30日で、半分（15日）を経過した利用時にのみ
// スライディング更新される。頻繁に利用されるセッションでも書き込みは
// しきい値ウィンドウごとに1回に抑えられ、放置されたセッションはTTLで自然失効する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/slothspotter/internal/model"
	"github.com/hitoshi/slothspotter/internal/repository"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	DisplayName    string
	AvatarURL      string
	Provider       model.AuthProvider
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// 将来的に複数IdP（Google, GitHub等）に対応するための抽象化。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。verifierはPKCEのコード検証値。
	GetLoginURL(state, verifier string) string
	// GenerateVerifier はPKCEのコード検証値を生成する。
	GenerateVerifier() string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code, verifier string) (*OAuthUserInfo, error)
}

// SessionMetrics はセッションライフサイクルのメトリクス記録インターフェース。
type SessionMetrics interface {
	RecordSessionCreated()
	RecordSessionRenewed()
	RecordSessionInvalidated()
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionTTL     time.Duration // セッション有効期間（デフォルト30日）
	RenewThreshold time.Duration // スライディング更新のしきい値（TTLの半分）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	metrics     SessionMetrics
	config      ServiceConfig

	// now はテストで時刻を差し替えるためのフック。
	now func() time.Time
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	metrics SessionMetrics,
	config ServiceConfig,
) *Service {
	if config.RenewThreshold == 0 {
		config.RenewThreshold = config.SessionTTL / 2
	}
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		metrics:     metrics,
		config:      config,
		now:         time.Now,
	}
}

// SessionTTL はセッションの有効期間を返す。Cookieのexpires算出に使う。
func (s *Service) SessionTTL() time.Duration {
	return s.config.SessionTTL
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state, verifier string) string {
	return s.oauth.GetLoginURL(state, verifier)
}

// GenerateVerifier はPKCEのコード検証値を生成する。
func (s *Service) GenerateVerifier() string {
	return s.oauth.GenerateVerifier()
}

// LoginResult はOAuthコールバック処理の結果。
// Tokenはこの場でCookieに書くためだけに存在し、サーバー側には保存されない。
type LoginResult struct {
	Token   string
	Session *model.Session
	User    *model.User
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 未登録の外部IDの場合はユーザーを自動作成する。
// 登録済みの場合は表示名とアバターをIdPの最新値で更新してログインする。
func (s *Service) HandleCallback(ctx context.Context, code, verifier string) (*LoginResult, error) {
	// 1. 認可コードをトークンに交換し、ユーザー情報を取得
	userInfo, err := s.oauth.ExchangeCode(ctx, code, verifier)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	// 2. (provider, provider_user_id) で既存ユーザーを検索
	user, err := s.userRepo.FindByProviderAndProviderUserID(ctx, userInfo.Provider, userInfo.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by provider identity: %w", err)
	}

	if user != nil {
		// 3a. 既存ユーザー: プロフィールを最新化
		updated, err := s.userRepo.UpdateProfile(ctx, user.ID, userInfo.DisplayName, userInfo.AvatarURL)
		if err != nil {
			return nil, fmt.Errorf("failed to update user profile: %w", err)
		}
		if updated != nil {
			user = updated
		}
		slog.Info("existing user logged in",
			slog.String("user_id", user.ID),
			slog.String("provider", string(userInfo.Provider)),
		)
	} else {
		// 3b. 新規ユーザーを作成
		now := s.now()
		user = &model.User{
			ID:             uuid.New().String(),
			DisplayName:    userInfo.DisplayName,
			AvatarURL:      userInfo.AvatarURL,
			Provider:       userInfo.Provider,
			ProviderUserID: userInfo.ProviderUserID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		slog.Info("new user created",
			slog.String("user_id", user.ID),
			slog.String("provider", string(userInfo.Provider)),
		)
	}

	// 4. トークンを生成しセッションを発行
	token, err := GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	session, err := s.sessionRepo.Create(ctx, DeriveLookupKey(token), user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordSessionCreated()
	}

	return &LoginResult{Token: token, Session: session, User: user}, nil
}

// ValidateToken はベアラートークンを検証し、セッションとユーザーを解決する。
//
// 返り値の組み合わせ:
//   - (nil, nil, nil): セッションが存在しない（期限切れ・未登録・紐付くユーザーの消失）
//   - (session, user, nil): 認証成功。しきい値を超えていればセッションは更新済み
//   - (nil, nil, err): ストア障害。呼び出し側はリクエストを失敗させる必要がある
//
// セッションは有効だが参照先ユーザーが消えている場合、宙吊りのセッションを
// 削除して完全な未認証として扱う（リビジョン間で挙動が揺れていた箇所の確定）。
func (s *Service) ValidateToken(ctx context.Context, token string) (*model.Session, *model.User, error) {
	lookupKey := DeriveLookupKey(token)

	session, err := s.sessionRepo.FindByID(ctx, lookupKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil, nil
	}

	// スライディング更新: 経過時間がしきい値以上なら同一キーでTTLを張り直す。
	// 更新失敗はストア障害であり、古い認証状態で処理を続けてはならない。
	if session.Age(s.now()) >= s.config.RenewThreshold {
		renewed, err := s.sessionRepo.Renew(ctx, lookupKey, session.UserID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to renew session: %w", err)
		}
		session = renewed
		if s.metrics != nil {
			s.metrics.RecordSessionRenewed()
		}
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		// 参照先ユーザーが帯域外で削除されている。セッションを無効化して未認証扱い。
		if err := s.sessionRepo.DeleteByID(ctx, lookupKey); err != nil {
			slog.Warn("failed to invalidate dangling session",
				slog.String("error", err.Error()),
			)
		}
		if s.metrics != nil {
			s.metrics.RecordSessionInvalidated()
		}
		slog.Info("invalidated session referencing missing user",
			slog.String("user_id", session.UserID),
		)
		return nil, nil, nil
	}

	return session, user, nil
}

// Logout はトークンに対応するセッションを破棄する。
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("session token is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, DeriveLookupKey(token)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordSessionInvalidated()
	}
	slog.Info("user logged out")
	return nil
}
