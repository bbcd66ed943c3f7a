package redact

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint computes a hex HMAC-SHA256 of value under key. It lets logs
// correlate secrets without printing them.
func Fingerprint(value string, key []byte) string {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil))
}
