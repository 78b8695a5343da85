// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/slothspotter/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByProviderAndProviderUserID はproviderとprovider_user_idでユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider model.AuthProvider, providerUserID string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// UpdateProfile は表示名とアバターURLを更新する。見つからない場合はnilを返す。
	UpdateProfile(ctx context.Context, id, displayName, avatarURL string) (*model.User, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
// 実装はKVストア（Redis）を使用し、リレーショナルストアからは分離されている。
type SessionRepository interface {
	// Create はルックアップキーにセッションを作成する。
	// 同一キーの既存レコードは上書きされる。TTL満了でストア側が自動削除する。
	Create(ctx context.Context, lookupKey, userID string) (*model.Session, error)

	// Renew は既存の有効なセッションをCreatedAtとTTLを新しくして書き直す。
	// ストレージ効果はCreateと同一だが、呼び出し側の意図を区別するために分ける。
	Renew(ctx context.Context, lookupKey, userID string) (*model.Session, error)

	// FindByID は指定ルックアップキーのセッションを取得する。
	// 期限切れと未登録は区別できず、どちらもnilを返す。
	FindByID(ctx context.Context, lookupKey string) (*model.Session, error)

	// DeleteByID は指定ルックアップキーのセッションを削除する。
	// 冪等であり、存在しないキーの削除はエラーにならない。
	DeleteByID(ctx context.Context, lookupKey string) error
}

// SlothRepository は個体データの永続化インターフェース。
type SlothRepository interface {
	// FindByID は指定IDの個体を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Sloth, error)

	// CreateWithDiscovery は個体と発見Sightingを同一トランザクションで作成する。
	// 両方成功するか両方失敗するかのいずれかであり、
	// Sightingを持たない個体が観測されることはない。
	CreateWithDiscovery(ctx context.Context, sloth *model.Sloth, discovery *model.Sighting) error

	// ListWithDiscoverer は地図表示用に全個体を発見者情報付きで返す。
	ListWithDiscoverer(ctx context.Context) ([]model.SlothWithDiscoverer, error)

	// DeleteByID は指定IDの個体を削除する。
	// 関連するsightings、photosはCASCADE削除される。冪等。
	DeleteByID(ctx context.Context, id string) error
}

// SightingRepository は目撃報告データの永続化インターフェース。
type SightingRepository interface {
	// FindByID は指定IDの目撃報告を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Sighting, error)

	// Create は目撃報告を作成する。
	Create(ctx context.Context, sighting *model.Sighting) error

	// ListBySlothID は個体の目撃報告一覧を報告者情報・写真付きで新しい順に返す。
	ListBySlothID(ctx context.Context, slothID string) ([]model.SightingWithDetails, error)

	// CountBySlothID は個体の目撃報告数を返す。
	CountBySlothID(ctx context.Context, slothID string) (int, error)

	// DeleteByID は指定IDの目撃報告を削除する。
	// 関連するphotosはCASCADE削除される。冪等。
	DeleteByID(ctx context.Context, id string) error
}

// PhotoRepository は写真データの永続化インターフェース。
type PhotoRepository interface {
	// Create は写真レコードを作成する。
	Create(ctx context.Context, photo *model.Photo) error

	// ListBySightingID は目撃報告に紐づく写真を作成順に返す。
	ListBySightingID(ctx context.Context, sightingID string) ([]model.Photo, error)

	// DeleteByImageID は外部画像IDで写真レコードを削除する。冪等。
	DeleteByImageID(ctx context.Context, imageID string) error
}

// ModerationReportRepository は通報データの永続化インターフェース。
type ModerationReportRepository interface {
	// Create は通報を作成する。
	Create(ctx context.Context, report *model.ModerationReport) error
}

// OrphanBlobRepository は補償処理で削除しきれなかった外部画像の
// 記録と再試行キューの永続化インターフェース。
type OrphanBlobRepository interface {
	// Record は削除に失敗した外部画像IDを記録する。重複記録は無視される。
	Record(ctx context.Context, imageID string, failedAt time.Time) error

	// List は再試行対象の外部画像IDを古い順に最大limit件返す。
	List(ctx context.Context, limit int) ([]string, error)

	// Remove は削除に成功した外部画像IDの記録を消す。冪等。
	Remove(ctx context.Context, imageID string) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
