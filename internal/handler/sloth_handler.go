package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/slothspotter/internal/middleware"
	"github.com/hitoshi/slothspotter/internal/model"
	"github.com/hitoshi/slothspotter/internal/security"
	"github.com/hitoshi/slothspotter/internal/sighting"
	"github.com/hitoshi/slothspotter/internal/sloth"
)

const (
	maxNotesLength   = 500             // 文字数（超過で拒否）
	maxCaptionLength = 200             // 文字数（超過で拒否）
	maxPhotoCount    = 3               // 1報告あたりの写真上限
	maxPhotoBytes    = 10 << 20        // 1枚あたり10MB
	maxFormMemory    = 4 * maxPhotoBytes
)

// SlothServiceInterface は個体参照ハンドラーが必要とするサービスインターフェース。
type SlothServiceInterface interface {
	ListSloths(ctx context.Context) ([]model.SlothWithDiscoverer, error)
	GetSloth(ctx context.Context, slothID string) (*sloth.SlothDetail, error)
}

// SightingServiceInterface は報告送信ハンドラーが必要とするサービスインターフェース。
type SightingServiceInterface interface {
	SubmitDiscovery(ctx context.Context, input sighting.DiscoveryInput) (*sighting.DiscoveryResult, error)
	SubmitFollowup(ctx context.Context, input sighting.FollowupInput) (*sighting.FollowupResult, error)
	DeleteSighting(ctx context.Context, sightingID, userID string) error
}

// SlothHandler は個体・目撃報告のHTTPハンドラー。
type SlothHandler struct {
	slothService    SlothServiceInterface
	sightingService SightingServiceInterface
	sanitizer       security.TextSanitizerService
	turnstile       security.TurnstileVerifier
}

// NewSlothHandler はSlothHandlerを生成する。
func NewSlothHandler(
	slothService SlothServiceInterface,
	sightingService SightingServiceInterface,
	sanitizer security.TextSanitizerService,
	turnstile security.TurnstileVerifier,
) *SlothHandler {
	return &SlothHandler{
		slothService:    slothService,
		sightingService: sightingService,
		sanitizer:       sanitizer,
		turnstile:       turnstile,
	}
}

// photoResponse は写真のAPIレスポンス。
type photoResponse struct {
	ID        string `json:"id"`
	ImageID   string `json:"image_id"`
	Caption   string `json:"caption"`
	IsPrimary bool   `json:"is_primary"`
}

// slothListItemResponse は地図表示用の個体APIレスポンス。
type slothListItemResponse struct {
	ID                  string    `json:"id"`
	Latitude            float64   `json:"latitude"`
	Longitude           float64   `json:"longitude"`
	Status              string    `json:"status"`
	DiscoveredAt        time.Time `json:"discovered_at"`
	DiscovererName      string    `json:"discoverer_name"`
	DiscovererAvatarURL string    `json:"discoverer_avatar_url"`
	PrimaryPhotoImageID string    `json:"primary_photo_image_id"`
	SightingCount       int       `json:"sighting_count"`
}

// sightingResponse は目撃報告のAPIレスポンス。
type sightingResponse struct {
	ID                string          `json:"id"`
	SlothID           string          `json:"sloth_id"`
	Type              string          `json:"type"`
	Notes             string          `json:"notes"`
	CreatedAt         time.Time       `json:"created_at"`
	ReporterName      string          `json:"reporter_name,omitempty"`
	ReporterAvatarURL string          `json:"reporter_avatar_url,omitempty"`
	Photos            []photoResponse `json:"photos"`
}

// slothDetailResponse は個体詳細のAPIレスポンス。
type slothDetailResponse struct {
	ID           string             `json:"id"`
	Latitude     float64            `json:"latitude"`
	Longitude    float64            `json:"longitude"`
	Status       string             `json:"status"`
	DiscoveredAt time.Time          `json:"discovered_at"`
	Sightings    []sightingResponse `json:"sightings"`
}

// ListSloths は地図表示用の個体一覧を返す。
// GET /api/sloths
func (h *SlothHandler) ListSloths(w http.ResponseWriter, r *http.Request) {
	sloths, err := h.slothService.ListSloths(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]slothListItemResponse, 0, len(sloths))
	for _, s := range sloths {
		items = append(items, slothListItemResponse{
			ID:                  s.ID,
			Latitude:            s.Latitude,
			Longitude:           s.Longitude,
			Status:              string(s.Status),
			DiscoveredAt:        s.DiscoveredAt,
			DiscovererName:      s.DiscovererName,
			DiscovererAvatarURL: s.DiscovererAvatarURL,
			PrimaryPhotoImageID: s.PrimaryPhotoImageID,
			SightingCount:       s.SightingCount,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"sloths": items})
}

// GetSloth は個体詳細を目撃報告一覧付きで返す。
// GET /api/sloths/:id
func (h *SlothHandler) GetSloth(w http.ResponseWriter, r *http.Request) {
	slothID := chi.URLParam(r, "id")

	detail, err := h.slothService.GetSloth(r.Context(), slothID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := slothDetailResponse{
		ID:           detail.Sloth.ID,
		Latitude:     detail.Sloth.Latitude,
		Longitude:    detail.Sloth.Longitude,
		Status:       string(detail.Sloth.Status),
		DiscoveredAt: detail.Sloth.DiscoveredAt,
		Sightings:    make([]sightingResponse, 0, len(detail.Sightings)),
	}
	for _, s := range detail.Sightings {
		resp.Sightings = append(resp.Sightings, toSightingResponse(s.Sighting, s.Photos, s.ReporterName, s.ReporterAvatarURL))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// SubmitDiscovery は新規個体の発見報告を処理する。
// POST /api/sloths (multipart/form-data)
func (h *SlothHandler) SubmitDiscovery(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	if !h.verifyTurnstile(r) {
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewTurnstileFailedError())
		return
	}

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationFailedError("リクエストボディの解析に失敗しました"))
		return
	}

	lat, lng, apiErr := parseCoordinates(r.FormValue("latitude"), r.FormValue("longitude"))
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	notes, apiErr := h.sanitizeNotes(r.FormValue("notes"))
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	// 発見報告は写真が1枚以上必須
	photos, apiErr := h.parsePhotos(r, 1)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	result, err := h.sightingService.SubmitDiscovery(r.Context(), sighting.DiscoveryInput{
		UserID:    userID,
		Latitude:  lat,
		Longitude: lng,
		Notes:     notes,
		Photos:    photos,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"sloth_id": result.Sloth.ID,
		"sighting": toSightingResponse(*result.Sighting, result.Photos, "", ""),
	})
}

// SubmitFollowup は既存個体への目撃報告を処理する。
// POST /api/sloths/:id/sightings (multipart/form-data)
func (h *SlothHandler) SubmitFollowup(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	if !h.verifyTurnstile(r) {
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewTurnstileFailedError())
		return
	}

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationFailedError("リクエストボディの解析に失敗しました"))
		return
	}

	notes, apiErr := h.sanitizeNotes(r.FormValue("notes"))
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	// 目撃報告は写真なしでもよい
	photos, apiErr := h.parsePhotos(r, 0)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	result, err := h.sightingService.SubmitFollowup(r.Context(), sighting.FollowupInput{
		SlothID: chi.URLParam(r, "id"),
		UserID:  userID,
		Notes:   notes,
		Photos:  photos,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"sighting": toSightingResponse(*result.Sighting, result.Photos, "", ""),
	})
}

// DeleteSighting は自分の目撃報告を削除する。
// DELETE /api/sightings/:id
func (h *SlothHandler) DeleteSighting(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	if err := h.sightingService.DeleteSighting(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

// verifyTurnstile はボット検証トークンを確認する。検証不能時は拒否する。
func (h *SlothHandler) verifyTurnstile(r *http.Request) bool {
	token := r.FormValue("turnstile_token")
	if token == "" {
		token = r.Header.Get("X-Turnstile-Token")
	}
	return h.turnstile.Verify(r.Context(), token, remoteIPOf(r))
}

// remoteIPOf はリモートアドレスからIP部分を取り出す。
func remoteIPOf(r *http.Request) string {
	remoteIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return remoteIP
}

// sanitizeNotes はノートをサニタイズし文字数を検証する。
func (h *SlothHandler) sanitizeNotes(raw string) (string, *model.APIError) {
	notes := h.sanitizer.Sanitize(raw)
	if len([]rune(notes)) > maxNotesLength {
		return "", model.NewValidationFailedError(strconv.Itoa(maxNotesLength) + "文字以内で入力してください")
	}
	return notes, nil
}

// parsePhotos はmultipartフォームから写真とキャプションを入力順に読み出す。
// 枚数・サイズ・MIMEタイプを検証する。
func (h *SlothHandler) parsePhotos(r *http.Request, minCount int) ([]sighting.PhotoUpload, *model.APIError) {
	files := r.MultipartForm.File["photos"]
	captions := r.MultipartForm.Value["captions"]

	if len(files) < minCount {
		return nil, model.NewValidationFailedError("写真を添付してください")
	}
	if len(files) > maxPhotoCount {
		return nil, model.NewValidationFailedError("写真は" + strconv.Itoa(maxPhotoCount) + "枚までです")
	}

	photos := make([]sighting.PhotoUpload, 0, len(files))
	for i, fh := range files {
		if fh.Size > maxPhotoBytes {
			return nil, model.NewValidationFailedError("写真1枚のサイズは10MBまでです")
		}

		f, err := fh.Open()
		if err != nil {
			slog.Error("failed to open uploaded photo", slog.String("error", err.Error()))
			return nil, model.NewValidationFailedError("写真の読み込みに失敗しました")
		}
		data, err := io.ReadAll(io.LimitReader(f, maxPhotoBytes+1))
		f.Close()
		if err != nil {
			slog.Error("failed to read uploaded photo", slog.String("error", err.Error()))
			return nil, model.NewValidationFailedError("写真の読み込みに失敗しました")
		}
		if len(data) > maxPhotoBytes {
			return nil, model.NewValidationFailedError("写真1枚のサイズは10MBまでです")
		}

		// ファイル名やヘッダーではなく内容でMIMEを判定する
		if !isImageContent(data) {
			return nil, model.NewValidationFailedError("画像ファイルのみアップロードできます")
		}

		caption := ""
		if i < len(captions) {
			caption = h.sanitizer.Sanitize(captions[i])
			if len([]rune(caption)) > maxCaptionLength {
				return nil, model.NewValidationFailedError("キャプションは" + strconv.Itoa(maxCaptionLength) + "文字以内で入力してください")
			}
		}

		photos = append(photos, sighting.PhotoUpload{Data: data, Caption: caption})
	}

	return photos, nil
}

// isImageContent はデータの先頭バイトからimage/*かどうかを判定する。
func isImageContent(data []byte) bool {
	contentType := http.DetectContentType(data)
	return len(contentType) > 6 && contentType[:6] == "image/"
}

func toSightingResponse(s model.Sighting, photos []model.Photo, reporterName, reporterAvatarURL string) sightingResponse {
	resp := sightingResponse{
		ID:                s.ID,
		SlothID:           s.SlothID,
		Type:              string(s.Type),
		Notes:             s.Notes,
		CreatedAt:         s.CreatedAt,
		ReporterName:      reporterName,
		ReporterAvatarURL: reporterAvatarURL,
		Photos:            make([]photoResponse, 0, len(photos)),
	}
	for _, p := range photos {
		resp.Photos = append(resp.Photos, photoResponse{
			ID:        p.ID,
			ImageID:   p.ImageID,
			Caption:   p.Caption,
			IsPrimary: p.IsPrimary,
		})
	}
	return resp
}

// parseCoordinates は緯度経度を解析し、範囲を検証する。
func parseCoordinates(latStr, lngStr string) (float64, float64, *model.APIError) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return 0, 0, model.NewValidationFailedError("緯度の形式が不正です")
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return 0, 0, model.NewValidationFailedError("経度の形式が不正です")
	}
	if lat < -90 || lat > 90 {
		return 0, 0, model.NewValidationFailedError("緯度は-90から90の範囲で指定してください")
	}
	if lng < -180 || lng > 180 {
		return 0, 0, model.NewValidationFailedError("経度は-180から180の範囲で指定してください")
	}
	return lat, lng, nil
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"code":     apiErr.Code,
		"message":  apiErr.Message,
		"category": apiErr.Category,
		"action":   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeAuthRequired:
		return http.StatusUnauthorized
	case model.ErrCodeValidationFailed:
		return http.StatusBadRequest
	case model.ErrCodeTurnstileFailed:
		return http.StatusForbidden
	case model.ErrCodeSlothNotFound, model.ErrCodeSightingNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeUploadFailed:
		return http.StatusBadGateway
	case model.ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
