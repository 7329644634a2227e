package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/feedrelay/feedrelay/pkg/domain"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name  string
		item  domain.FeedItem
		rules domain.RuleSet
		want  bool
	}{
		{
			name: "empty rules pass everything",
			item: domain.FeedItem{Title: "anything"},
			want: true,
		},
		{
			name:  "deny wins over allow",
			item:  domain.FeedItem{Title: "Windows update for iOS"},
			rules: domain.RuleSet{Allow: []string{"ios"}, Deny: []string{"windows"}},
			want:  false,
		},
		{
			name:  "allow matches case-insensitive",
			item:  domain.FeedItem{Title: "Go 1.25 Released"},
			rules: domain.RuleSet{Allow: []string{"go 1.25"}},
			want:  true,
		},
		{
			name:  "non-empty allow rejects non-matching",
			item:  domain.FeedItem{Title: "Rust release"},
			rules: domain.RuleSet{Allow: []string{"go", "python"}},
			want:  false,
		},
		{
			name:  "summary is part of the corpus",
			item:  domain.FeedItem{Title: "Weekly digest", Summary: "covers Kubernetes and more"},
			rules: domain.RuleSet{Allow: []string{"kubernetes"}},
			want:  true,
		},
		{
			name:  "deny matches in summary",
			item:  domain.FeedItem{Title: "News", Summary: "Sponsored content inside"},
			rules: domain.RuleSet{Deny: []string{"sponsored"}},
			want:  false,
		},
		{
			name:  "deny only, no hit",
			item:  domain.FeedItem{Title: "plain article"},
			rules: domain.RuleSet{Deny: []string{"casino"}},
			want:  true,
		},
		{
			name:  "empty text with allow rules",
			item:  domain.FeedItem{},
			rules: domain.RuleSet{Allow: []string{"go"}},
			want:  false,
		},
		{
			name:  "blank keywords ignored",
			item:  domain.FeedItem{Title: "anything"},
			rules: domain.RuleSet{Deny: []string{""}},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.item, tt.rules))
		})
	}
}
