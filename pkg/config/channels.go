package config

// Channels holds the destination ids resolved from the environment once at
// process start. Nothing below main reads the environment directly.
type Channels struct {
	Token        string
	AdminChannel string
	ByTopic      map[string]string // topic name -> chat id
}

// Enabled reports whether delivery is configured; without a token the run is
// a dry run (items logged, nothing sent, nothing marked seen).
func (c Channels) Enabled() bool { return c.Token != "" }

// ResolveChannels looks up the env-indirected token and channel ids. The
// lookup function is injectable for tests; production passes os.Getenv.
// Missing variables resolve to empty strings; topics without a channel are
// skipped at run time and reported.
func (c *Config) ResolveChannels(lookup func(string) string) Channels {
	ch := Channels{
		Token:        lookup(c.Telegram.TokenEnv),
		AdminChannel: lookup(c.Telegram.AdminChannelEnv),
		ByTopic:      make(map[string]string, len(c.Topics)),
	}
	for _, t := range c.Topics {
		ch.ByTopic[t.Name] = lookup(t.ChannelEnv)
	}
	return ch
}
