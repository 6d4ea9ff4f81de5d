// Package fingerprint produces stable hashes of prompt components so
// calls can be correlated and deduplicated in telemetry without ever
// storing raw prompt text.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Metadata carries the hashes recorded for one prompt pair.
type Metadata struct {
	SystemHash string
	UserHash   string
	PromptHash string
}

// Hash returns the lowercase hex SHA-256 digest of text.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// PromptMetadata hashes the system and user prompts independently and
// combines them into a single prompt hash. The combined hash is taken
// over the two digests, not the raw text, so it is stable even if the
// raw prompts are never retained.
func PromptMetadata(system, user string) Metadata {
	systemHash := Hash(system)
	userHash := Hash(user)
	return Metadata{
		SystemHash: systemHash,
		UserHash:   userHash,
		PromptHash: Hash(systemHash + ":" + userHash),
	}
}
