// Package dedupe implements the duplicate-detection and filtering core:
// stable per-item fingerprints, allow/deny keyword rules, and a pure
// single-pass engine combining them with recency and per-feed caps.
package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/feedrelay/feedrelay/pkg/domain"
)

// Fingerprint derives a stable identity string for an item. It is a total
// function and falls back through tiers: feed-supplied GUID, then normalized
// link, then a content hash of title and link. The same logical item always
// maps to the same fingerprint across runs.
func Fingerprint(item domain.FeedItem) string {
	if guid := strings.TrimSpace(item.GUID); guid != "" {
		return guid
	}
	if link := strings.TrimSpace(item.Link); link != "" {
		return normalizeLink(link)
	}
	sum := sha256.Sum256([]byte(item.Title + "|" + item.Link))
	return hex.EncodeToString(sum[:])
}

// normalizeLink canonicalizes a URL so trivially different spellings of the
// same link never produce distinct fingerprints: scheme and host are
// lowercased, the trailing slash is stripped. Unparseable links are used
// as-is after trimming, still deterministic.
func normalizeLink(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Scheme == "" {
		return strings.TrimSuffix(link, "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}
