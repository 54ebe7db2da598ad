package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"MemeCurator/internal/domain"
)

const (
	configPathEnv     = "MEME_CURATOR_CONFIG"
	geminiAPIKeyEnv   = "GEMINI_API_KEY"
	openAIAPIKeyEnv   = "OPENAI_API_KEY"
	discordTokenEnv   = "DISCORD_TOKEN"
	discordChannelEnv = "DISCORD_CHANNEL_ID"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	subredditsEnv     = "SUBREDDITS"
	historyPathEnv    = "HISTORY_PATH"
	portEnv           = "PORT"
	logLevelEnv       = "LOG_LEVEL"

	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	PublisherDiscord  = "discord"
	PublisherTelegram = "telegram"

	PolicyEvaluated = "evaluated"
	PolicyTopRanked = "top"

	BackendJSON   = "json"
	BackendSQLite = "sqlite"

	ScannerReddit = "reddit"
	ScannerRSS    = "rss"
)

var defaultSubreddits = []string{"memes", "wholesomememes", "me_irl", "196", "ProgrammerHumor", "BlackPeopleTwitter"}

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Sources   SourcesConfig   `yaml:"sources"`
	Evaluator EvaluatorConfig `yaml:"evaluator"`
	Publisher PublisherConfig `yaml:"publisher"`
	Selection SelectionConfig `yaml:"selection"`
	History   HistoryConfig   `yaml:"history"`
	Cycle     CycleConfig     `yaml:"cycle"`
	Server    ServerConfig    `yaml:"server"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	ActivitySize int    `yaml:"activitySize"`
}

// SchedulerConfig defines how often the curation cycle runs.
type SchedulerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	RunOnStart *bool         `yaml:"runOnStart"`
}

// ShouldRunOnStart reports whether a cycle fires immediately on start.
func (s SchedulerConfig) ShouldRunOnStart() bool {
	return s.RunOnStart == nil || *s.RunOnStart
}

// SourcesConfig groups candidate feeds and pool shaping.
type SourcesConfig struct {
	PoolSize int          `yaml:"poolSize"`
	Filter   string       `yaml:"filter"`
	Feeds    []FeedConfig `yaml:"feeds"`
}

// FeedConfig describes a single feed with its scanner strategy.
type FeedConfig struct {
	Name    string `yaml:"name"`
	Scanner string `yaml:"scanner"`
	Target  string `yaml:"target"`
}

// EvaluatorConfig defines how to contact the evaluation model.
type EvaluatorConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
	Endpoint string `yaml:"endpoint"`
	// BaseURL overrides the Gemini API host.
	BaseURL string `yaml:"baseUrl"`
}

// PublisherConfig wires the destination channel.
type PublisherConfig struct {
	Kind      string `yaml:"kind"`
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channelId"`
}

// SelectionConfig picks and tunes the winner selection policy.
type SelectionConfig struct {
	Policy       string        `yaml:"policy"`
	BatchSize    int           `yaml:"batchSize"`
	Threshold    float64       `yaml:"threshold"`
	PaceInterval time.Duration `yaml:"paceInterval"`
	PaceFirst    *bool         `yaml:"paceFirst"`
}

// ShouldPaceFirst reports whether the first evaluation of each batch also waits.
func (s SelectionConfig) ShouldPaceFirst() bool {
	return s.PaceFirst == nil || *s.PaceFirst
}

// HistoryConfig locates persisted state.
type HistoryConfig struct {
	Backend        string `yaml:"backend"`
	Path           string `yaml:"path"`
	ExclusionCap   int    `yaml:"exclusionCap"`
	RecordRejected bool   `yaml:"recordRejected"`
}

// CycleConfig bounds external calls made during a cycle.
type CycleConfig struct {
	CallTimeout time.Duration `yaml:"callTimeout"`
}

// ServerConfig configures the status endpoint.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Sources.Feeds) == 0 {
		cfg.Sources.Feeds = defaultConfig().Sources.Feeds
	}

	return cfg
}

// Validate reports missing credentials as domain.ErrMissingConfig.
func (c Config) Validate() error {
	var missing []string

	if c.Publisher.Token == "" {
		missing = append(missing, "publisher token")
	}
	if c.Publisher.ChannelID == "" {
		missing = append(missing, "publisher channel id")
	}
	if c.Selection.Policy != PolicyTopRanked && c.Evaluator.APIKey == "" {
		missing = append(missing, "evaluator api key")
	}
	if len(c.Sources.Feeds) == 0 {
		missing = append(missing, "source feeds")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

// Check validates enumerated fields that cannot be defaulted safely.
func (c Config) Check() error {
	var errs []error
	switch c.Evaluator.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("unknown evaluator provider %q", c.Evaluator.Provider))
	}
	switch c.Publisher.Kind {
	case PublisherDiscord, PublisherTelegram:
	default:
		errs = append(errs, fmt.Errorf("unknown publisher kind %q", c.Publisher.Kind))
	}
	switch c.Selection.Policy {
	case PolicyEvaluated, PolicyTopRanked:
	default:
		errs = append(errs, fmt.Errorf("unknown selection policy %q", c.Selection.Policy))
	}
	switch c.History.Backend {
	case BackendJSON, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown history backend %q", c.History.Backend))
	}
	for _, feed := range c.Sources.Feeds {
		if feed.Scanner != ScannerReddit && feed.Scanner != ScannerRSS {
			errs = append(errs, fmt.Errorf("feed %s: unknown scanner %q", feed.Name, feed.Scanner))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(geminiAPIKeyEnv); v != "" && c.Evaluator.Provider == ProviderGemini {
		c.Evaluator.APIKey = v
	}

	if v := os.Getenv(openAIAPIKeyEnv); v != "" && c.Evaluator.Provider == ProviderOpenAI {
		c.Evaluator.APIKey = v
	}

	switch c.Publisher.Kind {
	case PublisherDiscord:
		if v := os.Getenv(discordTokenEnv); v != "" {
			c.Publisher.Token = v
		}
		if v := os.Getenv(discordChannelEnv); v != "" {
			c.Publisher.ChannelID = v
		}
	case PublisherTelegram:
		if v := os.Getenv(telegramTokenEnv); v != "" {
			c.Publisher.Token = v
		}
		if v := os.Getenv(telegramChatIDEnv); v != "" {
			c.Publisher.ChannelID = v
		}
	}

	if v := os.Getenv(subredditsEnv); v != "" {
		c.Sources.Feeds = redditFeeds(strings.Split(v, ","))
	}

	if v := os.Getenv(historyPathEnv); v != "" {
		c.History.Path = v
	}

	if v := os.Getenv(portEnv); v != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(v, ":")
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}
	if override.Logging.ActivitySize > 0 {
		base.Logging.ActivitySize = override.Logging.ActivitySize
	}

	if override.Scheduler.Interval > 0 {
		base.Scheduler.Interval = override.Scheduler.Interval
	}
	if override.Scheduler.RunOnStart != nil {
		base.Scheduler.RunOnStart = override.Scheduler.RunOnStart
	}

	if override.Sources.PoolSize > 0 {
		base.Sources.PoolSize = override.Sources.PoolSize
	}
	if override.Sources.Filter != "" {
		base.Sources.Filter = override.Sources.Filter
	}
	if len(override.Sources.Feeds) > 0 {
		base.Sources.Feeds = override.Sources.Feeds
	}

	if override.Evaluator.Provider != "" {
		base.Evaluator.Provider = override.Evaluator.Provider
		if override.Evaluator.Model == "" {
			base.Evaluator.Model = defaultModel(override.Evaluator.Provider)
		}
	}
	if override.Evaluator.Model != "" {
		base.Evaluator.Model = override.Evaluator.Model
	}
	if override.Evaluator.APIKey != "" {
		base.Evaluator.APIKey = override.Evaluator.APIKey
	}
	if override.Evaluator.Endpoint != "" {
		base.Evaluator.Endpoint = override.Evaluator.Endpoint
	}
	if override.Evaluator.BaseURL != "" {
		base.Evaluator.BaseURL = override.Evaluator.BaseURL
	}

	if override.Publisher.Kind != "" {
		base.Publisher.Kind = override.Publisher.Kind
	}
	if override.Publisher.Token != "" {
		base.Publisher.Token = override.Publisher.Token
	}
	if override.Publisher.ChannelID != "" {
		base.Publisher.ChannelID = override.Publisher.ChannelID
	}

	if override.Selection.Policy != "" {
		base.Selection.Policy = override.Selection.Policy
	}
	if override.Selection.BatchSize > 0 {
		base.Selection.BatchSize = override.Selection.BatchSize
	}
	if override.Selection.Threshold > 0 {
		base.Selection.Threshold = override.Selection.Threshold
	}
	if override.Selection.PaceInterval > 0 {
		base.Selection.PaceInterval = override.Selection.PaceInterval
	}
	if override.Selection.PaceFirst != nil {
		base.Selection.PaceFirst = override.Selection.PaceFirst
	}

	if override.History.Backend != "" {
		base.History.Backend = override.History.Backend
	}
	if override.History.Path != "" {
		base.History.Path = override.History.Path
	}
	if override.History.ExclusionCap > 0 {
		base.History.ExclusionCap = override.History.ExclusionCap
	}
	if override.History.RecordRejected {
		base.History.RecordRejected = true
	}

	if override.Cycle.CallTimeout > 0 {
		base.Cycle.CallTimeout = override.Cycle.CallTimeout
	}

	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}

	return base
}

func defaultModel(provider string) string {
	if provider == ProviderOpenAI {
		return "gpt-4o-mini"
	}
	return "gemini-2.5-flash"
}

func redditFeeds(subs []string) []FeedConfig {
	feeds := make([]FeedConfig, 0, len(subs))
	for _, sub := range subs {
		sub = strings.TrimSpace(sub)
		if sub == "" {
			continue
		}
		feeds = append(feeds, FeedConfig{Name: sub, Scanner: ScannerReddit, Target: sub})
	}
	return feeds
}

func defaultConfig() Config {
	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text", ActivitySize: 50},
		Scheduler: SchedulerConfig{Interval: time.Hour},
		Sources: SourcesConfig{
			PoolSize: 20,
			Feeds:    redditFeeds(defaultSubreddits),
		},
		Evaluator: EvaluatorConfig{
			Provider: ProviderGemini,
			Model:    defaultModel(ProviderGemini),
			Endpoint: "https://api.openai.com/v1/chat/completions",
		},
		Publisher: PublisherConfig{Kind: PublisherDiscord},
		Selection: SelectionConfig{
			Policy:       PolicyEvaluated,
			BatchSize:    5,
			Threshold:    7,
			PaceInterval: 10 * time.Second,
		},
		History: HistoryConfig{
			Backend:      BackendJSON,
			Path:         "data/history.json",
			ExclusionCap: domain.DefaultExclusionCap,
		},
		Cycle:  CycleConfig{CallTimeout: time.Minute},
		Server: ServerConfig{Addr: ":3000"},
	}
}
