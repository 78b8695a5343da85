package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/slothspotter/internal/metrics"
	"github.com/hitoshi/slothspotter/internal/middleware"
	"github.com/hitoshi/slothspotter/internal/security"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenValidator    middleware.TokenValidator
	CookieConfig      middleware.CookieConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 個体・目撃報告
	SlothService    SlothServiceInterface
	SightingService SightingServiceInterface

	// 通報
	ModerationService ModerationServiceInterface

	// 入力防御
	Sanitizer security.TextSanitizerService
	Turnstile security.TurnstileVerifier

	// メトリクス公開用
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → Recovery → Logging → Auth（全ルート）
//	→ RequireAuth → RateLimit（変更系ルートのみ）
//
// Authミドルウェアはリクエストを拒絶せず、認証状態の解決とCookieの
// 更新・削除だけを行う。401を返すのはRequireAuthの責務。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewAuthMiddleware(deps.TokenValidator, deps.CookieConfig))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	slothHandler := NewSlothHandler(deps.SlothService, deps.SightingService, deps.Sanitizer, deps.Turnstile)
	reportHandler := NewReportHandler(deps.ModerationService, deps.Sanitizer, deps.Turnstile)

	// --- 運用系ルート ---

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 認証ルート（OAuthフロー） ---

	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 公開の参照系ルート ---

	r.Get("/api/sloths", slothHandler.ListSloths)
	r.Get("/api/sloths/{id}", slothHandler.GetSloth)

	// --- 認証が必要な変更系ルート ---
	// ミドルウェアスタック: RequireAuth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRequireAuthMiddleware())
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 報告送信には送信専用レート制限を追加
		r.With(deps.RateLimiter.SubmissionMiddleware()).Post("/api/sloths", slothHandler.SubmitDiscovery)
		r.With(deps.RateLimiter.SubmissionMiddleware()).Post("/api/sloths/{id}/sightings", slothHandler.SubmitFollowup)

		r.Delete("/api/sightings/{id}", slothHandler.DeleteSighting)
		r.Post("/api/reports", reportHandler.ReportContent)
	})

	return r
}
