package dedupe

import (
	"strings"

	"github.com/feedrelay/feedrelay/pkg/domain"
)

// Match evaluates allow/deny keyword rules against an item. The corpus is the
// case-insensitive concatenation of title and summary. Deny keywords win over
// allow keywords; an empty allow list means no allow-based restriction.
// Matching is pure substring comparison and never fails.
func Match(item domain.FeedItem, rules domain.RuleSet) bool {
	corpus := strings.ToLower(item.Title + " " + item.Summary)

	for _, kw := range rules.Deny {
		if kw != "" && strings.Contains(corpus, strings.ToLower(kw)) {
			return false
		}
	}

	if len(rules.Allow) == 0 {
		return true
	}

	for _, kw := range rules.Allow {
		if kw != "" && strings.Contains(corpus, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
