package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/telegram-auth-service/internal/domain"
)

// DataCheckString builds the message Telegram signs for the login widget:
// every field except hash, sorted by name, rendered as key=value and joined
// with '\n'.
func DataCheckString(claim domain.IdentityClaim) string {
	fields := claim.DataFields()

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(fields[key])
	}
	return b.String()
}

// SignTelegramClaim computes the hex HMAC-SHA256 tag of the claim using
// SHA256(botToken) as the key.
func SignTelegramClaim(claim domain.IdentityClaim, botToken string) string {
	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(DataCheckString(claim)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyTelegramClaim reports whether the claim hash was produced by Telegram
// for the given bot token. An empty token never verifies.
func VerifyTelegramClaim(claim domain.IdentityClaim, botToken string) bool {
	if botToken == "" {
		return false
	}
	expected := SignTelegramClaim(claim, botToken)
	return hmac.Equal([]byte(expected), []byte(claim.Hash))
}

// IsTelegramClaimFresh reports whether the claim was issued at most maxAge
// seconds before now. A missing auth_date counts as issued at the epoch.
func IsTelegramClaimFresh(claim domain.IdentityClaim, maxAge int64, now time.Time) bool {
	return now.Unix()-claim.AuthDate <= maxAge
}
