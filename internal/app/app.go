// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/slothspotter/internal/auth"
	"github.com/hitoshi/slothspotter/internal/config"
	"github.com/hitoshi/slothspotter/internal/database"
	"github.com/hitoshi/slothspotter/internal/handler"
	"github.com/hitoshi/slothspotter/internal/images"
	"github.com/hitoshi/slothspotter/internal/logger"
	"github.com/hitoshi/slothspotter/internal/metrics"
	"github.com/hitoshi/slothspotter/internal/middleware"
	"github.com/hitoshi/slothspotter/internal/moderation"
	"github.com/hitoshi/slothspotter/internal/repository"
	"github.com/hitoshi/slothspotter/internal/security"
	"github.com/hitoshi/slothspotter/internal/sighting"
	"github.com/hitoshi/slothspotter/internal/sloth"
	"github.com/hitoshi/slothspotter/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// PostgreSQLとRedisへの接続を開き、全依存関係をワイヤリングし、
// HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. ストア接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	redisClient, err := database.OpenRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to open redis: %w", err)
	}
	defer redisClient.Close()

	slog.Info("store connections established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewRedisSessionRepo(redisClient, cfg.SessionTTL)
	slothRepo := repository.NewPostgresSlothRepo(db)
	sightingRepo := repository.NewPostgresSightingRepo(db)
	photoRepo := repository.NewPostgresPhotoRepo(db)
	reportRepo := repository.NewPostgresModerationReportRepo(db)
	orphanRepo := repository.NewPostgresOrphanBlobRepo(db)

	// 3. メトリクスと外部サービスクライアントの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	imagesClient := images.NewClient(images.Config{
		AccountID:   cfg.CloudflareAccountID,
		APIToken:    cfg.CloudflareImagesToken,
		AccountHash: cfg.CloudflareAccountHash,
	})
	turnstile := security.NewTurnstileClient(security.TurnstileConfig{
		SecretKey: cfg.TurnstileSecretKey,
	})
	sanitizer := security.NewTextSanitizer()

	// 4. ドメインサービスの初期化
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, userRepo, sessionRepo, collector,
		auth.ServiceConfig{SessionTTL: cfg.SessionTTL},
	)

	sightingService := sighting.NewService(
		slothRepo, sightingRepo, photoRepo, orphanRepo, imagesClient, collector,
	)
	slothService := sloth.NewService(slothRepo, sightingRepo)
	moderationService := moderation.NewService(reportRepo, slothRepo, sightingRepo)

	// 5. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.SubmissionRate = rate.Limit(float64(cfg.RateLimitSubmission) / 60.0)
	rateLimiterCfg.SubmissionBurst = cfg.RateLimitSubmission
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	cookieConfig := middleware.CookieConfig{
		Domain: cfg.CookieDomain,
		Secure: cfg.CookieSecure,
	}

	deps := &handler.RouterDeps{
		TokenValidator:    authService,
		CookieConfig:      cookieConfig,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL: cfg.BaseURL,
			Cookie:  cookieConfig,
		},

		SlothService:      slothService,
		SightingService:   sightingService,
		ModerationService: moderationService,

		Sanitizer: sanitizer,
		Turnstile: turnstile,

		Gatherer: registry,
	}

	router := handler.NewRouter(deps)

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  60 * time.Second, // 画像アップロードを含むため長め
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 孤児画像クリーンアップジョブを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	orphanRepo := repository.NewPostgresOrphanBlobRepo(db)
	imagesClient := images.NewClient(images.Config{
		AccountID:   cfg.CloudflareAccountID,
		APIToken:    cfg.CloudflareImagesToken,
		AccountHash: cfg.CloudflareAccountHash,
	})

	cleanupJob := cleanup.NewCleanupJob(orphanRepo, imagesClient, slog.Default())
	cleanupJob.BatchSize = cfg.CleanupBatchSize

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Int("batch_size", cfg.CleanupBatchSize),
	)

	// 起動直後に1回実行し、以後は定期実行
	if err := cleanupJob.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped gracefully")
			return nil
		case <-ticker.C:
			if err := cleanupJob.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
