// Package model はドメインモデルを定義する。
package model

import "time"

// SightingType は目撃報告の種別を表す。
type SightingType string

const (
	// SightingTypeDiscovery は個体の初回発見報告。Slothと同時に作成される。
	SightingTypeDiscovery SightingType = "discovery"
	// SightingTypeFollowup は既存個体への追加の目撃報告。
	SightingTypeFollowup SightingType = "followup"
)

// Sighting は1件の目撃報告を表す。
// 必ず1つのSlothと1人のUserを参照する。
type Sighting struct {
	ID        string
	SlothID   string
	UserID    string
	Type      SightingType
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SightingWithDetails は個体詳細画面用にSightingと報告者情報、
// 写真一覧を結合したモデル。
type SightingWithDetails struct {
	Sighting
	ReporterName      string
	ReporterAvatarURL string
	Photos            []Photo
}
