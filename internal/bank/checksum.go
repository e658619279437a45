package bank

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// Checksum computes the 4-hex-char trailing checksum for a payload prefix.
// The two scanners disagree on every detail here: DemirBank hashes the raw
// payload and wants lowercase, Bakai percent-decodes first and wants
// uppercase. Both are hard protocol requirements.
func Checksum(payload string, kind Kind) string {
	switch kind {
	case Bakai:
		decoded, err := url.PathUnescape(payload)
		if err != nil {
			// Decoding problems must not abort generation; hash the raw
			// payload instead.
			decoded = payload
		}
		digest := hexDigest(decoded)
		// Defensive strip, normally a no-op.
		digest = strings.ReplaceAll(digest, "-", "")
		return strings.ToUpper(digest[len(digest)-4:])
	default:
		digest := hexDigest(payload)
		return digest[len(digest)-4:]
	}
}

func hexDigest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
