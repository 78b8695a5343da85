// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService は目撃報告の備考や写真キャプションなど、
// ユーザー入力のプレーンテキストからHTMLを除去し、
// XSS攻撃などのセキュリティリスクから閲覧者を保護する。
// bluemondayライブラリの厳格ポリシーを使用し、タグを一切通過させない。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はテキストサニタイズ機能のインターフェースを定義する。
// 目撃報告・通報コメントの保存前に使用される。
type TextSanitizerService interface {
	// Sanitize は入力からHTMLタグを全て除去したプレーンテキストを返す。
	// 前後の空白もあわせて除去する。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayの厳格ポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは許可タグを持たず、全てのHTML要素と属性を除去する。
// 備考やキャプションはプレーンテキストとして扱うため、許可リストは不要。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からHTMLタグを全て除去したプレーンテキストを返す。
func (s *textSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
