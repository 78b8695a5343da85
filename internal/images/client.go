// Package images はCloudflare Imagesへの画像アップロード・削除クライアントを提供する。
//
// アップロードと削除はどちらも一時的エラーと恒久的エラーを区別できないため、
// 失敗はその呼び出しについて常に最終的なものとして扱う。
// 呼び出し側（報告送信のコーディネーター）が補償処理やリトライを駆動する。
package images

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const defaultAPIBaseURL = "https://api.cloudflare.com/client/v4"

// Uploader は画像サービスへのアップロード・削除インターフェース。
type Uploader interface {
	// Upload は画像データをアップロードし、外部画像IDを返す。
	// clientImageIDとuploaderIDはメタデータとして画像に紐付けられる。
	Upload(ctx context.Context, data []byte, clientImageID, uploaderID string) (string, error)

	// Delete は外部画像IDの画像を削除する。
	Delete(ctx context.Context, imageID string) error
}

// Config はCloudflare Imagesクライアントの設定。
type Config struct {
	AccountID   string
	APIToken    string
	AccountHash string // 配信URL生成用

	// テスト用にオーバーライド可能なURL
	APIBaseURL string
}

// Client はCloudflare Images APIのHTTPクライアント。
type Client struct {
	config Config
	client *http.Client
}

// NewClient はClientを生成する。
func NewClient(config Config) *Client {
	if config.APIBaseURL == "" {
		config.APIBaseURL = defaultAPIBaseURL
	}
	return &Client{
		config: config,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// apiResponse はCloudflare Images APIの共通レスポンス。
type apiResponse struct {
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
	Result struct {
		ID string `json:"id"`
	} `json:"result"`
}

// Upload は画像データをアップロードし、外部画像IDを返す。
func (c *Client) Upload(ctx context.Context, data []byte, clientImageID, uploaderID string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", clientImageID)
	if err != nil {
		return "", fmt.Errorf("failed to create multipart file field: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return "", fmt.Errorf("failed to write image data: %w", err)
	}

	metadata, err := json.Marshal(map[string]string{
		"imageId":    clientImageID,
		"uploaderId": uploaderID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal image metadata: %w", err)
	}
	if err := mw.WriteField("metadata", string(metadata)); err != nil {
		return "", fmt.Errorf("failed to write metadata field: %w", err)
	}

	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	url := fmt.Sprintf("%s/accounts/%s/images/v1", c.config.APIBaseURL, c.config.AccountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIToken)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	result, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("image upload failed: %w", err)
	}
	if result.Result.ID == "" {
		return "", fmt.Errorf("empty image ID in upload response")
	}

	return result.Result.ID, nil
}

// Delete は外部画像IDの画像を削除する。
func (c *Client) Delete(ctx context.Context, imageID string) error {
	url := fmt.Sprintf("%s/accounts/%s/images/v1/%s", c.config.APIBaseURL, c.config.AccountID, imageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIToken)

	if _, err := c.do(req); err != nil {
		return fmt.Errorf("image deletion failed: %w", err)
	}

	return nil
}

// DeliveryURL は画像の配信URLを生成する。
func (c *Client) DeliveryURL(imageID, variant string) string {
	if variant == "" {
		variant = "public"
	}
	return fmt.Sprintf("https://imagedelivery.net/%s/%s/%s", c.config.AccountHash, imageID, variant)
}

// do はAPIリクエストを実行し、成功レスポンスを返す。
func (c *Client) do(req *http.Request) (*apiResponse, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("api returned status %d: %s", resp.StatusCode, string(body))
	}

	var result apiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if !result.Success {
		var messages []string
		for _, e := range result.Errors {
			messages = append(messages, e.Message)
		}
		if len(messages) == 0 {
			messages = append(messages, "unknown error")
		}
		return nil, fmt.Errorf("api reported failure: %s", strings.Join(messages, ", "))
	}

	return &result, nil
}

// compile-time interface check
var _ Uploader = (*Client)(nil)
