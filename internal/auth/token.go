package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// tokenByteLength はベアラートークンのエントロピー長（バイト）。
// 128ビット以上を確保する。
const tokenByteLength = 18

// GenerateToken は暗号的に安全なベアラートークンを生成する。
// URLセーフなbase64（パディングなし）でエンコードされ、
// クライアントとの間でのみ受け渡される。サーバー側には生のまま保存されない。
func GenerateToken() (string, error) {
	b := make([]byte, tokenByteLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DeriveLookupKey はトークンからセッションのルックアップキーを導出する。
// SHA-256の一方向ハッシュのため、ストアが漏洩してもトークンは復元できない。
// 同一トークンは常に同一キーになるため、O(1)でのストア検索が可能。
func DeriveLookupKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
