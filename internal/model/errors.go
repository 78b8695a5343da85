// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, submission, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthRequired     = "AUTH_REQUIRED"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
	ErrCodeUploadFailed     = "UPLOAD_FAILED"
	ErrCodeSlothNotFound    = "SLOTH_NOT_FOUND"
	ErrCodeSightingNotFound = "SIGHTING_NOT_FOUND"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
	ErrCodeTurnstileFailed  = "TURNSTILE_FAILED"
)

// NewAuthRequiredError は未認証エラーを生成する。
func NewAuthRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthRequired,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewValidationFailedError は入力検証エラーを生成する。
// 不正な入力はストアへの書き込みが一切発生する前に拒否される。
func NewValidationFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewStoreUnavailableError はストア接続不能エラーを生成する。
func NewStoreUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeStoreUnavailable,
		Message:  "データストアに接続できませんでした。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUploadFailedError は写真アップロード失敗エラーを生成する。
// 原因の詳細はログのみに記録し、ユーザーにはストア内部を漏らさない
// 一般的なメッセージを返す。
func NewUploadFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeUploadFailed,
		Message:  "報告の送信に失敗しました。",
		Category: "submission",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewSlothNotFoundError は個体未検出エラーを生成する。
func NewSlothNotFoundError(slothID string) *APIError {
	return &APIError{
		Code:     ErrCodeSlothNotFound,
		Message:  fmt.Sprintf("指定されたナマケモノが見つかりません: %s", slothID),
		Category: "submission",
		Action:   "地図を更新して再度お試しください。",
	}
}

// NewSightingNotFoundError は目撃報告未検出エラーを生成する。
func NewSightingNotFoundError(sightingID string) *APIError {
	return &APIError{
		Code:     ErrCodeSightingNotFound,
		Message:  fmt.Sprintf("指定された目撃報告が見つかりません: %s", sightingID),
		Category: "submission",
		Action:   "報告IDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewTurnstileFailedError はボット検証失敗エラーを生成する。
func NewTurnstileFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeTurnstileFailed,
		Message:  "ボット検証に失敗しました。",
		Category: "validation",
		Action:   "ページを再読み込みして再度お試しください。",
	}
}
