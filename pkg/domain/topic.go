package domain

// RuleSet holds per-feed keyword filters. Deny wins over allow; an empty
// allow list places no restriction.
type RuleSet struct {
	Allow []string
	Deny  []string
}

// Empty reports whether the rule set has no keywords configured.
func (r RuleSet) Empty() bool { return len(r.Allow) == 0 && len(r.Deny) == 0 }

// FeedEntry is a single feed subscription within a topic.
type FeedEntry struct {
	URL   string
	Rules RuleSet
}

// Topic is a named group of feeds routed to one destination channel.
// ChannelEnv names the environment variable holding the chat id; the id
// itself never appears in configuration.
type Topic struct {
	Name       string
	ChannelEnv string
	Feeds      []FeedEntry
}
