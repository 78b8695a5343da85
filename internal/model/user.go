// Package model はドメインモデルを定義する。
package model

import "time"

// AuthProvider は外部IdPの種別を表す。
type AuthProvider string

const (
	// AuthProviderGoogle はGoogle OAuthによる認証を示す。
	AuthProviderGoogle AuthProvider = "google"
)

// User はサービス利用ユーザーを表す。
// (Provider, ProviderUserID) の組で一意となり、初回ログイン時に自動作成される。
// DisplayNameとAvatarURLはログインのたびにIdPの最新値で更新される。
type User struct {
	ID             string
	DisplayName    string
	AvatarURL      string
	Provider       AuthProvider
	ProviderUserID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
