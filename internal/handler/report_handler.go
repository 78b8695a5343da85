package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/slothspotter/internal/middleware"
	"github.com/hitoshi/slothspotter/internal/model"
	"github.com/hitoshi/slothspotter/internal/moderation"
	"github.com/hitoshi/slothspotter/internal/security"
)

// ModerationServiceInterface は通報ハンドラーが必要とするサービスインターフェース。
type ModerationServiceInterface interface {
	ReportContent(ctx context.Context, input moderation.ReportInput) (*model.ModerationReport, error)
}

// ReportHandler はコンテンツ通報のHTTPハンドラー。
type ReportHandler struct {
	service   ModerationServiceInterface
	sanitizer security.TextSanitizerService
	turnstile security.TurnstileVerifier
}

// NewReportHandler はReportHandlerを生成する。
func NewReportHandler(service ModerationServiceInterface, sanitizer security.TextSanitizerService, turnstile security.TurnstileVerifier) *ReportHandler {
	return &ReportHandler{service: service, sanitizer: sanitizer, turnstile: turnstile}
}

// reportRequest は通報リクエストのボディ。
type reportRequest struct {
	ContentType    string `json:"content_type"`
	ContentID      string `json:"content_id"`
	Reason         string `json:"reason"`
	Comment        string `json:"comment"`
	TurnstileToken string `json:"turnstile_token"`
}

// ReportContent はコンテンツ通報を処理する。
// POST /api/reports
func (h *ReportHandler) ReportContent(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationFailedError("リクエストボディの解析に失敗しました"))
		return
	}

	if !h.turnstile.Verify(r.Context(), req.TurnstileToken, remoteIPOf(r)) {
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewTurnstileFailedError())
		return
	}

	report, err := h.service.ReportContent(r.Context(), moderation.ReportInput{
		ContentType: model.ContentType(req.ContentType),
		ContentID:   req.ContentID,
		Reason:      model.ReportReason(req.Reason),
		Comment:     h.sanitizer.Sanitize(req.Comment),
		ReportedBy:  userID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"id": report.ID})
}
