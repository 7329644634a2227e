// Package config loads and validates the YAML configuration. Channel ids are
// env-var indirected: the file names the variables, the ids are resolved once
// at startup and passed down explicitly.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/feedrelay/feedrelay/pkg/domain"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Telegram TelegramConfig `yaml:"telegram" json:"telegram" jsonschema:"description=Telegram delivery configuration"`
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule" jsonschema:"description=Run scheduling and filtering configuration"`
	State    StateConfig    `yaml:"state" json:"state" jsonschema:"description=Seen-state storage configuration"`
	Server   ServerConfig   `yaml:"server" json:"server" jsonschema:"description=Status server configuration"`
	Topics   []TopicConfig  `yaml:"feeds" json:"feeds" jsonschema:"required,description=Topics with their feeds and destination channels"`
}

// TelegramConfig holds delivery settings. TokenEnv and channel references
// name environment variables, never the secrets themselves.
type TelegramConfig struct {
	TokenEnv        string `yaml:"token_env" json:"token_env" jsonschema:"default=TELEGRAM_BOT_TOKEN,description=Env var holding the bot token"`
	AdminChannelEnv string `yaml:"admin_channel_env" json:"admin_channel_env" jsonschema:"default=TELEGRAM_ADMIN_CHANNEL_ID,description=Env var holding the admin chat id"`
	Timeout         int    `yaml:"timeout" json:"timeout" jsonschema:"default=10,description=API request timeout in seconds"`
}

// ScheduleConfig holds run scheduling and per-feed filtering settings
type ScheduleConfig struct {
	UpdateInterval int `yaml:"update_interval" json:"update_interval" jsonschema:"description=Minutes between runs; 0 (the default) runs once and exits"`
	MaxAgeHours    int `yaml:"max_age_hours" json:"max_age_hours" jsonschema:"default=24,description=Drop items older than this; 0 disables age filtering"`
	MaxItems       int `yaml:"max_items" json:"max_items" jsonschema:"default=10,description=Per-feed per-run delivery cap; -1 removes the cap"`
	SendPauseMs    int `yaml:"send_pause_ms" json:"send_pause_ms" jsonschema:"default=300,description=Global minimum milliseconds between sends"`
	Concurrency    int `yaml:"concurrency" json:"concurrency" jsonschema:"default=4,description=Feeds fetched in parallel"`
	RetentionDays  int `yaml:"retention_days" json:"retention_days" jsonschema:"default=30,description=Seen-state retention window"`
	FetchTimeout   int `yaml:"fetch_timeout" json:"fetch_timeout" jsonschema:"default=10,description=Per-feed fetch timeout in seconds"`
}

// StateConfig holds seen-state storage settings
type StateConfig struct {
	DSN string `yaml:"dsn" json:"dsn" jsonschema:"default=file:feedrelay.db?cache=shared&mode=rwc,description=SQLite connection string"`
}

// ServerConfig holds status server settings; empty listen disables the server
type ServerConfig struct {
	Listen  string `yaml:"listen" json:"listen" jsonschema:"description=Listen address for the status server; empty disables"`
	Timeout int    `yaml:"timeout" json:"timeout" jsonschema:"default=30,description=HTTP timeout in seconds"`
}

// TopicConfig is a named feed group routed to one channel
type TopicConfig struct {
	Name       string         `yaml:"name" json:"name" jsonschema:"required,description=Topic name"`
	ChannelEnv string         `yaml:"channel_env" json:"channel_env" jsonschema:"required,description=Env var holding the destination chat id"`
	Sources    []SourceConfig `yaml:"sources" json:"sources" jsonschema:"required,description=Feed entries; bare URL or url with allow/deny keyword lists"`
}

// SourceConfig is a single feed entry. In YAML it is either a bare URL scalar
// or a mapping with url/allow/deny; both normalize to the same shape here so
// nothing downstream branches on input form.
type SourceConfig struct {
	URL   string   `yaml:"url" json:"url" jsonschema:"required,description=Feed URL"`
	Allow []string `yaml:"allow" json:"allow,omitempty" jsonschema:"description=Item passes if any keyword matches; empty list passes all"`
	Deny  []string `yaml:"deny" json:"deny,omitempty" jsonschema:"description=Item rejected if any keyword matches; wins over allow"`
}

// UnmarshalYAML accepts both the bare-URL and the mapping form
func (s *SourceConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&s.URL)
	}
	type plain SourceConfig // drop methods to avoid recursion
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*s = SourceConfig(p)
	return nil
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema, supplementary only
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Telegram.TokenEnv == "" {
		c.Telegram.TokenEnv = "TELEGRAM_BOT_TOKEN"
	}
	if c.Telegram.AdminChannelEnv == "" {
		c.Telegram.AdminChannelEnv = "TELEGRAM_ADMIN_CHANNEL_ID"
	}
	if c.Telegram.Timeout == 0 {
		c.Telegram.Timeout = 10
	}

	if c.Schedule.MaxAgeHours == 0 {
		c.Schedule.MaxAgeHours = 24
	}
	if c.Schedule.MaxItems == 0 {
		c.Schedule.MaxItems = 10
	}
	if c.Schedule.SendPauseMs == 0 {
		c.Schedule.SendPauseMs = 300
	}
	if c.Schedule.Concurrency == 0 {
		c.Schedule.Concurrency = 4
	}
	if c.Schedule.RetentionDays == 0 {
		c.Schedule.RetentionDays = 30
	}
	if c.Schedule.FetchTimeout == 0 {
		c.Schedule.FetchTimeout = 10
	}

	if c.State.DSN == "" {
		c.State.DSN = "file:feedrelay.db?cache=shared&mode=rwc"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if len(cfg.Topics) == 0 {
		return fmt.Errorf("at least one topic is required")
	}

	names := make(map[string]bool)
	for i, topic := range cfg.Topics {
		if topic.Name == "" {
			return fmt.Errorf("topic %d: name is required", i)
		}
		if names[topic.Name] {
			return fmt.Errorf("topic %q: duplicate name", topic.Name)
		}
		names[topic.Name] = true

		if topic.ChannelEnv == "" {
			return fmt.Errorf("topic %q: channel_env is required", topic.Name)
		}
		if len(topic.Sources) == 0 {
			return fmt.Errorf("topic %q: at least one source is required", topic.Name)
		}
		for _, src := range topic.Sources {
			if src.URL == "" {
				return fmt.Errorf("topic %q: source url is required", topic.Name)
			}
			if u, err := url.Parse(src.URL); err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("topic %q: invalid source url %q", topic.Name, src.URL)
			}
		}
	}

	if cfg.Schedule.MaxAgeHours < 0 {
		return fmt.Errorf("schedule.max_age_hours must be non-negative")
	}
	if cfg.Schedule.RetentionDays*24 < cfg.Schedule.MaxAgeHours {
		return fmt.Errorf("schedule.retention_days must cover max_age_hours or pruned items may repeat")
	}

	return nil
}

// DomainTopics converts the topic configuration to domain types
func (c *Config) DomainTopics() []domain.Topic {
	topics := make([]domain.Topic, 0, len(c.Topics))
	for _, t := range c.Topics {
		feeds := make([]domain.FeedEntry, 0, len(t.Sources))
		for _, s := range t.Sources {
			feeds = append(feeds, domain.FeedEntry{
				URL:   s.URL,
				Rules: domain.RuleSet{Allow: s.Allow, Deny: s.Deny},
			})
		}
		topics = append(topics, domain.Topic{Name: t.Name, ChannelEnv: t.ChannelEnv, Feeds: feeds})
	}
	return topics
}

// GetUpdateInterval returns the run interval; zero means a single run
func (c *ScheduleConfig) GetUpdateInterval() time.Duration {
	return time.Duration(c.UpdateInterval) * time.Minute
}

// GetMaxAge returns the recency cutoff; zero disables age filtering
func (c *ScheduleConfig) GetMaxAge() time.Duration {
	return time.Duration(c.MaxAgeHours) * time.Hour
}

// GetSendPause returns the global minimum spacing between sends
func (c *ScheduleConfig) GetSendPause() time.Duration {
	return time.Duration(c.SendPauseMs) * time.Millisecond
}

// GetRetention returns the seen-state retention window
func (c *ScheduleConfig) GetRetention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// GetFetchTimeout returns the per-feed fetch timeout
func (c *ScheduleConfig) GetFetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeout) * time.Second
}

// GetTimeout returns the Telegram API request timeout
func (c *TelegramConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// GetTimeout returns the status server timeout
func (c *ServerConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}
