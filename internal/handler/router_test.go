package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/slothspotter/internal/middleware"
	"github.com/hitoshi/slothspotter/internal/model"
)

// routerTokenValidator はルーターテスト用のTokenValidator実装。
type routerTokenValidator struct {
	validateFn func(ctx context.Context, token string) (*model.Session, *model.User, error)
}

func (v *routerTokenValidator) ValidateToken(ctx context.Context, token string) (*model.Session, *model.User, error) {
	if v.validateFn != nil {
		return v.validateFn(ctx, token)
	}
	return nil, nil, nil
}

func (v *routerTokenValidator) SessionTTL() time.Duration {
	return testSessionTTL
}

var _ middleware.TokenValidator = (*routerTokenValidator)(nil)

func newTestRouter(t *testing.T, validator *routerTokenValidator) http.Handler {
	t.Helper()

	if validator == nil {
		validator = &routerTokenValidator{}
	}

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		TokenValidator:    validator,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		Logger:            slog.New(slog.NewJSONHandler(io.Discard, nil)),
		AuthService:       &mockAuthService{},
		AuthConfig: AuthHandlerConfig{
			BaseURL: "http://localhost:3000",
		},
		SlothService:      &mockSlothService{},
		SightingService:   &mockSightingService{},
		ModerationService: &mockModerationService{},
		Sanitizer:         &mockSanitizer{},
		Turnstile:         &mockTurnstile{},
		Gatherer:          prometheus.NewRegistry(),
	})
}

func TestRouter_HealthCheck(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if w.Body.String() != "ok" {
		t.Errorf("body = %q, want %q", w.Body.String(), "ok")
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestRouter_PublicRoutes_NoAuthRequired(t *testing.T) {
	router := newTestRouter(t, nil)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/sloths"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Result().StatusCode == http.StatusUnauthorized {
			t.Errorf("%s %s: got 401, public route should not require auth", tt.method, tt.path)
		}
	}
}

func TestRouter_ProtectedRoutes_RequireAuth(t *testing.T) {
	router := newTestRouter(t, nil)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/sloths"},
		{http.MethodPost, "/api/sloths/sloth-1/sightings"},
		{http.MethodDelete, "/api/sightings/sighting-1"},
		{http.MethodPost, "/api/reports"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want %d", tt.method, tt.path, w.Result().StatusCode, http.StatusUnauthorized)
		}
	}
}

func TestRouter_AuthenticatedRequest_PassesThroughChain(t *testing.T) {
	validator := &routerTokenValidator{
		validateFn: func(ctx context.Context, token string) (*model.Session, *model.User, error) {
			if token == "valid-token" {
				return &model.Session{ID: "sess-1", UserID: "user-1", CreatedAt: time.Now()},
					&model.User{ID: "user-1"}, nil
			}
			return nil, nil, nil
		},
	}

	router := newTestRouter(t, validator)

	req := httptest.NewRequest(http.MethodDelete, "/api/sightings/sighting-1", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "valid-token"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	// モックサービスは成功するので204
	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
}

func TestRouter_OptionsPreflightBypassesAuth(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/sloths", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
	if got := w.Result().Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "http://localhost:3000")
	}
}
