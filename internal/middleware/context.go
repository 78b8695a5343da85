// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"

	"github.com/hitoshi/slothspotter/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// authContextKey はリクエストコンテキストに認証状態を格納するためのキー。
var authContextKey = contextKey("auth_context")

// AuthContext は認証ミドルウェアが解決した認証状態を表すイミュータブルな値。
// ハンドラーへはリクエストコンテキスト経由で受け渡され、途中で書き換えられない。
// 未認証リクエストではゼロ値（両フィールドnil）になる。
type AuthContext struct {
	Session *model.Session
	User    *model.User
}

// Authenticated は認証済みかどうかを返す。
func (a AuthContext) Authenticated() bool {
	return a.User != nil
}

// ContextWithAuth はコンテキストに認証状態を注入する。
func ContextWithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, ac)
}

// AuthFromContext はリクエストコンテキストから認証状態を取得する。
// 認証ミドルウェアを通過していないコンテキストではゼロ値を返す。
func AuthFromContext(ctx context.Context) AuthContext {
	ac, ok := ctx.Value(authContextKey).(AuthContext)
	if !ok {
		return AuthContext{}
	}
	return ac
}

// UserIDFromContext はリクエストコンテキストから認証済みユーザーIDを取得する。
// 未認証の場合はエラーを返す。
func UserIDFromContext(ctx context.Context) (string, error) {
	ac := AuthFromContext(ctx)
	if !ac.Authenticated() {
		return "", fmt.Errorf("user ID not found in context")
	}
	return ac.User.ID, nil
}
