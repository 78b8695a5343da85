package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/slothspotter/internal/model"
)

// SessionCookieName はベアラートークンを保持するCookieの名前。
const SessionCookieName = "auth_session"

// TokenValidator はトークン検証に必要なインターフェース。
// auth.Serviceの部分集合として定義する。
type TokenValidator interface {
	// ValidateToken はトークンを検証し、セッションとユーザーを解決する。
	// セッションが無効な場合は(nil, nil, nil)、ストア障害の場合はエラーを返す。
	ValidateToken(ctx context.Context, token string) (*model.Session, *model.User, error)
	// SessionTTL はセッションの有効期間を返す。
	SessionTTL() time.Duration
}

// CookieConfig はセッションCookieの属性設定。
type CookieConfig struct {
	Domain string
	Secure bool
}

// NewAuthMiddleware は全リクエストの認証状態を解決するミドルウェアを返す。
//
// リクエストごとの状態遷移:
//   - Cookieなし → 未認証のまま次へ（Cookie操作なし）
//   - トークンあり・セッション不在（期限切れ含む） → Cookieを削除して未認証で次へ
//   - トークンあり・セッション有効 → 必要ならスライディング更新の上、
//     現在の実効期限にあわせてCookieを再設定し、認証状態をコンテキストへ注入
//   - ストア障害 → 503を返してリクエストを打ち切る。誤った認証状態で
//     ページを返すよりリクエストを失敗させるほうが安全なため、握りつぶさない
//
// Cookieの書き換えはこのミドルウェアだけが行う。
// 認証を必須にするのは後段のRequireAuthの責務であり、ここでは拒否しない。
func NewAuthMiddleware(validator TokenValidator, config CookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r.WithContext(ContextWithAuth(r.Context(), AuthContext{})))
				return
			}

			session, user, err := validator.ValidateToken(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("session validation failed",
					slog.String("error", err.Error()),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewStoreUnavailableError())
				return
			}

			if session == nil {
				clearSessionCookie(w, config)
				next.ServeHTTP(w, r.WithContext(ContextWithAuth(r.Context(), AuthContext{})))
				return
			}

			// 有効なセッション: 現在の実効期限（更新済みならその時点起点）に
			// あわせてCookieを張り直す
			setSessionCookie(w, config, cookie.Value, session.ExpiresAt(validator.SessionTTL()))

			ctx := ContextWithAuth(r.Context(), AuthContext{Session: session, User: user})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewRequireAuthMiddleware は認証済みユーザーのみを通す二値ゲートを返す。
// 未認証リクエストには401を返す。ロール等の追加の認可判定は行わない。
func NewRequireAuthMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !AuthFromContext(r.Context()).Authenticated() {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// setSessionCookie はセッションCookieを実効期限付きで設定する。
func setSessionCookie(w http.ResponseWriter, config CookieConfig, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.Domain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie はクライアントにセッションCookieの削除を指示する。
func clearSessionCookie(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie はハンドラー（ログアウト等）からCookie削除を指示するための公開関数。
func ClearSessionCookie(w http.ResponseWriter, config CookieConfig) {
	clearSessionCookie(w, config)
}

// SetSessionCookie はハンドラー（ログイン等）からCookie設定を行うための公開関数。
func SetSessionCookie(w http.ResponseWriter, config CookieConfig, token string, expires time.Time) {
	setSessionCookie(w, config, token, expires)
}
