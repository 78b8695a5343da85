package security

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTurnstileVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// TurnstileVerifier はボット検証のインターフェース。
// 検証ロジック自体は外部サービスの責務であり、ここではその呼び出し面だけを扱う。
type TurnstileVerifier interface {
	// Verify はクライアントが取得した検証トークンを確認する。
	// 検証失敗・通信失敗のいずれもfalseを返す（fail-closed）。
	// エラーの詳細はログのみに記録される。
	Verify(ctx context.Context, token, remoteIP string) bool
}

// TurnstileConfig はTurnstileクライアントの設定。
type TurnstileConfig struct {
	SecretKey string

	// テスト用にオーバーライド可能なURL
	VerifyURL string
}

// TurnstileClient はCloudflare Turnstileのsiteverifyエンドポイントを呼び出す。
type TurnstileClient struct {
	config TurnstileConfig
	client *http.Client
}

// NewTurnstileClient はTurnstileClientを生成する。
func NewTurnstileClient(config TurnstileConfig) *TurnstileClient {
	if config.VerifyURL == "" {
		config.VerifyURL = defaultTurnstileVerifyURL
	}
	return &TurnstileClient{
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// turnstileResponse はsiteverifyエンドポイントのレスポンス。
type turnstileResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify はクライアントが取得した検証トークンを確認する。
func (c *TurnstileClient) Verify(ctx context.Context, token, remoteIP string) bool {
	data := url.Values{
		"secret":   {c.config.SecretKey},
		"response": {token},
		"remoteip": {remoteIP},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.VerifyURL, strings.NewReader(data.Encode()))
	if err != nil {
		slog.Error("failed to create turnstile request", slog.String("error", err.Error()))
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		slog.Error("turnstile verification request failed", slog.String("error", err.Error()))
		return false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("failed to read turnstile response", slog.String("error", err.Error()))
		return false
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("turnstile verification returned non-200",
			slog.Int("status", resp.StatusCode),
		)
		return false
	}

	var result turnstileResponse
	if err := json.Unmarshal(body, &result); err != nil {
		slog.Error("failed to parse turnstile response", slog.String("error", err.Error()))
		return false
	}

	if !result.Success && len(result.ErrorCodes) > 0 {
		slog.Warn("turnstile verification rejected",
			slog.Any("error_codes", result.ErrorCodes),
		)
	}

	return result.Success
}

// compile-time interface check
var _ TurnstileVerifier = (*TurnstileClient)(nil)
