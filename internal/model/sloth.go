// Package model はドメインモデルを定義する。
package model

import "time"

// SlothStatus はナマケモノの生息状態を表す。
type SlothStatus string

const (
	// SlothStatusActive は現在も目撃が続いている状態。
	SlothStatusActive SlothStatus = "active"
	// SlothStatusRemoved はその場所から居なくなった状態。
	SlothStatusRemoved SlothStatus = "removed"
)

// Sloth は報告されたナマケモノ個体を表す。
// 作成時には必ず1件の発見Sighting（SightingTypeDiscovery）が同時に存在し、
// Sightingが0件のSlothが読み手から見える状態になってはならない。
type Sloth struct {
	ID           string
	Latitude     float64
	Longitude    float64
	Status       SlothStatus
	DiscoveredBy string
	DiscoveredAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SlothWithDiscoverer は地図表示用にSlothと発見者情報、
// 発見時のプライマリ写真を結合したモデル。
type SlothWithDiscoverer struct {
	Sloth
	DiscovererName      string
	DiscovererAvatarURL string
	PrimaryPhotoImageID string
	SightingCount       int
}
