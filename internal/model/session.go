// Package model はドメインモデルを定義する。
package model

import "time"

// Session はユーザーのログインセッションを表す。
// IDはベアラートークンのSHA-256ハッシュ（ルックアップキー）であり、
// 生トークンはサーバー側に一切保存されない。
// レコード本体はRedis（キー session:<ID>）にTTL付きで保存され、
// 期限切れはストア側のTTLで自然に破棄される。
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
}

// ExpiresAt はセッションの実効期限を返す。
// CreatedAt + ttl がCookieのexpiresと一致する。
func (s *Session) ExpiresAt(ttl time.Duration) time.Time {
	return s.CreatedAt.Add(ttl)
}

// Age は基準時刻におけるセッションの経過時間を返す。
func (s *Session) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}
