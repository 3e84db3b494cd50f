// Package changes computes content fingerprints and decides what a fresh
// extraction means for the stored copy of an item.
package changes

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

// recordFingerprint is the canonical form hashed for records. Field order is
// fixed by the struct; encoding/json sorts map keys, so attribute insertion
// order never affects the digest.
type recordFingerprint struct {
	Attributes  map[string]string `json:"attributes"`
	Description string            `json:"description"`
	Images      []string          `json:"images"`
}

// RecordHash fingerprints the semantically relevant fields of a record.
// Image order is significant.
func RecordHash(attrs domain.Attributes, description string, images []string) string {
	fp := recordFingerprint{
		Attributes:  normalizeAttributes(attrs),
		Description: strings.TrimSpace(description),
		Images:      images,
	}
	if fp.Images == nil {
		fp.Images = []string{}
	}

	// Marshal cannot fail for maps of strings and string slices.
	data, _ := json.Marshal(fp)
	return digest(data)
}

// ContentHash fingerprints normalized page text.
func ContentHash(normalizedText string) string {
	return digest([]byte(strings.TrimSpace(normalizedText)))
}

// Decide applies the change table: no stored row creates, an equal hash is a
// no-op and a different hash updates.
func Decide(existingHash *string, newHash string) domain.ChangeAction {
	switch {
	case existingHash == nil:
		return domain.ChangeCreated
	case *existingHash == newHash:
		return domain.ChangeUnchanged
	default:
		return domain.ChangeUpdated
	}
}

// normalizeAttributes drops empty values so a missing row and an empty cell
// fingerprint the same.
func normalizeAttributes(attrs domain.Attributes) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
