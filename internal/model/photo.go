// Package model はドメインモデルを定義する。
package model

import "time"

// Photo は目撃報告に添付された写真を表す。
// ImageIDは外部画像サービス（Cloudflare Images）側のIDであり、
// リレーショナルストアの外部に実体が存在する。
// アップロードが完了していない写真レコードが読み手から見えることはない。
type Photo struct {
	ID         string
	SightingID string
	ImageID    string
	Caption    string
	IsPrimary  bool
	CreatedAt  time.Time
}
