package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"RSSDigest/internal/domain"
)

const (
	defaultTimezone    = "UTC"
	defaultOverlapDays = 1

	// PathEnv names the variable consulted when no --config flag is given.
	PathEnv           = "RSSDIGEST_CONFIG"
	logLevelEnv       = "RSSDIGEST_LOG_LEVEL"
	telegramTokenEnv  = "RSSDIGEST_TELEGRAM_TOKEN"
	telegramChatIDEnv = "RSSDIGEST_TELEGRAM_CHAT_ID"

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.36"
)

// ErrInvalid wraps every configuration problem. Configuration errors are fatal.
var ErrInvalid = errors.New("invalid configuration")

// Config holds every setting read once at startup.
type Config struct {
	Feeds          []string             `yaml:"feeds"`
	Topics         []string             `yaml:"topics"`
	LookbackDays   int                  `yaml:"lookback_days"`
	OverlapDays    *int                 `yaml:"overlap_days"`
	Timezone       string               `yaml:"timezone"`
	State          StateConfig          `yaml:"state"`
	Output         OutputConfig         `yaml:"output"`
	Endpoints      []EndpointConfig     `yaml:"endpoints"`
	Classification ClassificationConfig `yaml:"classification"`
	Fetch          FetchConfig          `yaml:"fetch"`
	Logging        LoggingConfig        `yaml:"logging"`
	Notifications  NotificationConfig   `yaml:"notifications"`

	location *time.Location
}

// StateConfig selects the checkpoint backend.
type StateConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
	Prefix  string `yaml:"prefix"`
	DSN     string `yaml:"dsn"`
}

// OutputConfig controls where and how the report is written.
type OutputConfig struct {
	Dir   string `yaml:"dir"`
	Title string `yaml:"title"`
}

// EndpointConfig describes one OpenAI-compatible text-generation target.
type EndpointConfig struct {
	Name              string        `yaml:"name"`
	APIBase           string        `yaml:"api_base"`
	APIKey            string        `yaml:"api_key"`
	Model             string        `yaml:"model"`
	VerifySSL         *bool         `yaml:"verify_ssl"`
	MaxRetries        int           `yaml:"max_retries"`
	Timeout           time.Duration `yaml:"timeout"`
	Temperature       *float64      `yaml:"temperature"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

// ClassificationConfig tunes the classification dispatcher.
type ClassificationConfig struct {
	UnmatchedToken string        `yaml:"unmatched_token"`
	StrictLabels   bool          `yaml:"strict_labels"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
}

// FetchConfig tunes feed and article downloads.
type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// LoggingConfig selects slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// Enabled reports whether both credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// Location resolves the configured timezone.
func (c Config) Location() *time.Location {
	if c.location != nil {
		return c.location
	}
	return time.UTC
}

// Overlap is the lookback margin in days; an explicit 0 disables it.
func (c Config) Overlap() int {
	if c.OverlapDays == nil {
		return defaultOverlapDays
	}
	return *c.OverlapDays
}

// Vocabulary returns the ordered topic set with the configured sentinel.
func (c Config) Vocabulary() domain.Vocabulary {
	return domain.NewVocabulary(c.Topics, c.Classification.UnmatchedToken)
}

// Pool converts endpoint settings into immutable descriptors.
func (c Config) Pool() domain.Pool {
	pool := make(domain.Pool, 0, len(c.Endpoints))
	for _, e := range c.Endpoints {
		verify := true
		if e.VerifySSL != nil {
			verify = *e.VerifySSL
		}
		temperature := 0.7
		if e.Temperature != nil {
			temperature = *e.Temperature
		}
		pool = append(pool, domain.Endpoint{
			Name:              e.Name,
			BaseURL:           strings.TrimRight(e.APIBase, "/"),
			APIKey:            e.APIKey,
			Model:             e.Model,
			VerifyTLS:         verify,
			MaxRetries:        e.MaxRetries,
			Timeout:           e.Timeout,
			Temperature:       temperature,
			RequestsPerMinute: e.RequestsPerMinute,
		})
	}
	return pool
}

// Load reads the YAML file at path, merges it over defaults, applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path == "" {
		return Config{}, fmt.Errorf("%w: no config file given (use --config or %s)", ErrInvalid, PathEnv)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: read %s: %v", ErrInvalid, path, err)
	}
	return Parse(raw)
}

// Parse builds a Config from YAML bytes.
func Parse(raw []byte) (Config, error) {
	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse yaml: %v", ErrInvalid, err)
	}

	cfg := mergeConfig(defaultConfig(), fileCfg)
	cfg.applyEnvOverrides()
	cfg.expandSecrets()
	cfg.applyEndpointDefaults()

	if err := cfg.bindTimezone(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first problem that would make a run meaningless.
func (c Config) Validate() error {
	var problems []string
	if len(c.Feeds) == 0 {
		problems = append(problems, "no feeds configured")
	}
	if len(c.Topics) == 0 {
		problems = append(problems, "no topics configured")
	}
	seen := map[string]bool{}
	for _, t := range c.Topics {
		if strings.TrimSpace(t) == "" {
			problems = append(problems, "empty topic name")
			continue
		}
		if seen[t] {
			problems = append(problems, fmt.Sprintf("duplicate topic %q", t))
		}
		seen[t] = true
		if t == c.Classification.UnmatchedToken {
			problems = append(problems, fmt.Sprintf("topic %q collides with the unmatched token", t))
		}
	}
	if len(c.Endpoints) == 0 {
		problems = append(problems, "no endpoints configured")
	}
	for i, e := range c.Endpoints {
		if e.APIBase == "" {
			problems = append(problems, fmt.Sprintf("endpoint %d: api_base is required", i))
		}
		if e.Model == "" {
			problems = append(problems, fmt.Sprintf("endpoint %d: model is required", i))
		}
	}
	if c.LookbackDays <= 0 {
		problems = append(problems, "lookback_days must be positive")
	}
	if c.Overlap() < 0 {
		problems = append(problems, "overlap_days must not be negative")
	}
	switch c.State.Backend {
	case "file":
	case "sqlite", "postgres":
		if c.State.DSN == "" {
			problems = append(problems, fmt.Sprintf("state.dsn is required for backend %s", c.State.Backend))
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown state backend %q", c.State.Backend))
	}
	if c.State.Prefix == "" {
		problems = append(problems, "state.prefix is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

// expandSecrets resolves ${VAR} references so keys stay out of the file.
func (c *Config) expandSecrets() {
	for i := range c.Endpoints {
		c.Endpoints[i].APIKey = os.ExpandEnv(c.Endpoints[i].APIKey)
	}
	c.Notifications.Telegram.BotToken = os.ExpandEnv(c.Notifications.Telegram.BotToken)
	c.State.DSN = os.ExpandEnv(c.State.DSN)
}

func (c *Config) applyEndpointDefaults() {
	for i := range c.Endpoints {
		e := &c.Endpoints[i]
		if e.Name == "" {
			e.Name = fmt.Sprintf("endpoint-%d", i)
		}
		if e.MaxRetries <= 0 {
			e.MaxRetries = 3
		}
		if e.Timeout <= 0 {
			e.Timeout = 120 * time.Second
		}
	}
}

func (c *Config) bindTimezone() error {
	tz := c.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("%w: unknown timezone %s: %v", ErrInvalid, tz, err)
	}
	c.location = loc
	return nil
}

func mergeConfig(base, override Config) Config {
	if len(override.Feeds) > 0 {
		base.Feeds = override.Feeds
	}
	if len(override.Topics) > 0 {
		base.Topics = override.Topics
	}
	if override.LookbackDays != 0 {
		base.LookbackDays = override.LookbackDays
	}
	if override.OverlapDays != nil {
		base.OverlapDays = override.OverlapDays
	}
	if override.Timezone != "" {
		base.Timezone = override.Timezone
	}

	if override.State.Backend != "" {
		base.State.Backend = override.State.Backend
	}
	if override.State.Dir != "" {
		base.State.Dir = override.State.Dir
	}
	if override.State.Prefix != "" {
		base.State.Prefix = override.State.Prefix
	}
	if override.State.DSN != "" {
		base.State.DSN = override.State.DSN
	}

	if override.Output.Dir != "" {
		base.Output.Dir = override.Output.Dir
	}
	if override.Output.Title != "" {
		base.Output.Title = override.Output.Title
	}

	if len(override.Endpoints) > 0 {
		base.Endpoints = override.Endpoints
	}

	if override.Classification.UnmatchedToken != "" {
		base.Classification.UnmatchedToken = override.Classification.UnmatchedToken
	}
	base.Classification.StrictLabels = override.Classification.StrictLabels
	if override.Classification.RetryDelay > 0 {
		base.Classification.RetryDelay = override.Classification.RetryDelay
	}

	if override.Fetch.Timeout > 0 {
		base.Fetch.Timeout = override.Fetch.Timeout
	}
	if override.Fetch.UserAgent != "" {
		base.Fetch.UserAgent = override.Fetch.UserAgent
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	return base
}

func defaultConfig() Config {
	return Config{
		LookbackDays: 7,
		Timezone:     defaultTimezone,
		State:        StateConfig{Backend: "file", Dir: ".", Prefix: "rss_cache"},
		Output:       OutputConfig{Dir: ".", Title: "Weekly RSS Digest"},
		Classification: ClassificationConfig{
			UnmatchedToken: domain.DefaultUnmatched,
			RetryDelay:     2 * time.Second,
		},
		Fetch:   FetchConfig{Timeout: 10 * time.Second, UserAgent: defaultUserAgent},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}
