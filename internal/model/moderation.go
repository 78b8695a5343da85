// Package model はドメインモデルを定義する。
package model

import "time"

// ContentType は通報対象コンテンツの種別を表す。
type ContentType string

const (
	// ContentTypeSloth は個体レコードへの通報。
	ContentTypeSloth ContentType = "sloth"
	// ContentTypeSighting は目撃報告への通報。
	ContentTypeSighting ContentType = "sighting"
	// ContentTypePhoto は写真への通報。
	ContentTypePhoto ContentType = "photo"
)

// ReportReason は通報理由を表す。
type ReportReason string

const (
	ReportReasonInappropriate      ReportReason = "inappropriate"
	ReportReasonSpam               ReportReason = "spam"
	ReportReasonFakeLocation       ReportReason = "fake_location"
	ReportReasonNotASloth          ReportReason = "not_a_sloth"
	ReportReasonDuplicate          ReportReason = "duplicate"
	ReportReasonInappropriateImage ReportReason = "inappropriate_image"
	ReportReasonOffensiveContent   ReportReason = "offensive_content"
	ReportReasonOther              ReportReason = "other"
)

// ValidReportReason は通報理由が定義済みの値かどうかを判定する。
func ValidReportReason(r ReportReason) bool {
	switch r {
	case ReportReasonInappropriate, ReportReasonSpam, ReportReasonFakeLocation,
		ReportReasonNotASloth, ReportReasonDuplicate, ReportReasonInappropriateImage,
		ReportReasonOffensiveContent, ReportReasonOther:
		return true
	}
	return false
}

// ModerationReport はユーザーからのコンテンツ通報を表す。
// モデレーションダッシュボード側で消費される。
type ModerationReport struct {
	ID          string
	ContentType ContentType
	ContentID   string
	Reason      ReportReason
	Comment     string
	ReportedBy  string
	CreatedAt   time.Time
}
