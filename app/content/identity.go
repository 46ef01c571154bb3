package content

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// IdentityKey derives the deduplication key for an entry: the upstream id,
// else the canonical URL, else a hash of source id and title. The publish
// timestamp joins the hash for sources whose titles repeat.
func IdentityKey(sourceID string, entry RawEntry, withTimestamp bool) string {
	if id := strings.TrimSpace(entry.ExternalID); id != "" {
		return id
	}

	if canonical := CanonicalURL(entry.Link); canonical != "" {
		return canonical
	}

	parts := []string{sourceID, normalizeTitle(entry.Title)}
	if withTimestamp {
		stamp := strings.TrimSpace(entry.Published)
		if stamp == "" && entry.PublishedAt != nil {
			stamp = entry.PublishedAt.UTC().Format(time.RFC3339)
		}
		parts = append(parts, stamp)
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return sourceID + ":" + hex.EncodeToString(hash[:])
}

func normalizeTitle(title string) string {
	title = norm.NFC.String(strings.ToLower(title))
	return strings.Join(strings.Fields(title), " ")
}
