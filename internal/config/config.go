package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all aura configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Reasoning model (intent classification, summaries, generation)
	Reasoning ReasoningConfig `yaml:"reasoning"`

	// Vision model (screenshot grounding for the slow path)
	Vision VisionConfig `yaml:"vision"`

	// Intent recognition
	Intent IntentConfig `yaml:"intent"`

	// Execution lock
	Lock LockConfig `yaml:"lock"`

	// Deferred actions
	Deferred DeferredConfig `yaml:"deferred"`

	// GUI interaction handler
	GUI GUIConfig `yaml:"gui"`

	// Question answering handler
	QA QAConfig `yaml:"qa"`

	// Conversation handler
	Conversation ConversationConfig `yaml:"conversation"`

	// Audio feedback
	Audio AudioConfig `yaml:"audio"`

	// Browser content extraction
	Browse BrowseConfig `yaml:"browse"`

	// Command journal
	Journal JournalConfig `yaml:"journal"`

	// Metrics endpoint
	Metrics MetricsConfig `yaml:"metrics"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ReasoningConfig configures the text reasoning client.
type ReasoningConfig struct {
	Provider string `yaml:"provider"` // gemini, openai
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// VisionConfig configures the multimodal vision client.
type VisionConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// IntentConfig configures intent recognition.
type IntentConfig struct {
	// Minimum classifier confidence before falling back to GUI interaction.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// Recent exchanges included in the classification prompt.
	HistoryWindow int `yaml:"history_window"`

	Timeout string `yaml:"timeout"`

	// LockTimeout bounds how long a classification waits for its turn.
	LockTimeout string `yaml:"lock_timeout"`
}

// LockConfig configures the global execution lock.
type LockConfig struct {
	AcquireTimeout   string `yaml:"acquire_timeout"`
	ReacquireTimeout string `yaml:"reacquire_timeout"`
}

// DeferredConfig configures deferred (click-to-place) actions.
type DeferredConfig struct {
	// WaitTimeout is how long an armed action waits for the user click.
	// Values are clamped to [MinWait, MaxWait] at load time.
	WaitTimeout string `yaml:"wait_timeout"`
	MinWait     string `yaml:"min_wait"`
	MaxWait     string `yaml:"max_wait"`
}

// GUIConfig configures the GUI interaction handler.
type GUIConfig struct {
	MaxRetries     int    `yaml:"max_retries"`
	RetryBaseDelay string `yaml:"retry_base_delay"`

	// FuzzyMatchThreshold is the 0-100 similarity score a label must reach
	// to count as a match. 0 disables fuzzy matching.
	FuzzyMatchThreshold int `yaml:"fuzzy_match_threshold"`

	// Text at or under this many characters is typed key-by-key;
	// longer text goes through the clipboard.
	TypeDirectMaxChars int `yaml:"type_direct_max_chars"`

	// Roles treated as clickable in addition to the built-in set.
	ExtraClickableRoles []string `yaml:"extra_clickable_roles"`
}

// QAConfig configures the question answering handler.
type QAConfig struct {
	ExtractionBudget string `yaml:"extraction_budget"`
	SummarizeBudget  string `yaml:"summarize_budget"`
	TotalBudget      string `yaml:"total_budget"`
	MaxContentBytes  int    `yaml:"max_content_bytes"`
}

// ConversationConfig configures the conversational chat handler.
type ConversationConfig struct {
	MaxHistory int    `yaml:"max_history"`
	Persona    string `yaml:"persona"`
}

// AudioConfig configures spoken and tonal feedback.
type AudioConfig struct {
	Enabled   bool   `yaml:"enabled"`
	QueueSize int    `yaml:"queue_size"`
	Voice     string `yaml:"voice"`
}

// BrowseConfig configures browser text extraction over CDP.
type BrowseConfig struct {
	// ControlURL is the DevTools websocket of a running browser.
	// Empty means extraction falls back to accessibility text.
	ControlURL  string `yaml:"control_url"`
	PageTimeout string `yaml:"page_timeout"`
}

// JournalConfig configures the SQLite command journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	File   string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "aura",
		Version: "0.4.0",

		Reasoning: ReasoningConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
			Timeout:  "10s",
		},

		Vision: VisionConfig{
			Enabled: true,
			Model:   "gemini-2.5-flash",
			Timeout: "15s",
		},

		Intent: IntentConfig{
			ConfidenceThreshold: 0.7,
			HistoryWindow:       3,
			Timeout:             "5s",
			LockTimeout:         "10s",
		},

		Lock: LockConfig{
			AcquireTimeout:   "30s",
			ReacquireTimeout: "15s",
		},

		Deferred: DeferredConfig{
			WaitTimeout: "600s",
			MinWait:     "60s",
			MaxWait:     "900s",
		},

		GUI: GUIConfig{
			MaxRetries:          2,
			RetryBaseDelay:      "50ms",
			FuzzyMatchThreshold: 85,
			TypeDirectMaxChars:  120,
		},

		QA: QAConfig{
			ExtractionBudget: "2s",
			SummarizeBudget:  "3s",
			TotalBudget:      "5s",
			MaxContentBytes:  50 * 1024,
		},

		Conversation: ConversationConfig{
			MaxHistory: 10,
			Persona:    "a concise, friendly desktop voice assistant named Aura",
		},

		Audio: AudioConfig{
			Enabled:   true,
			QueueSize: 64,
		},

		Browse: BrowseConfig{
			PageTimeout: "2s",
		},

		Journal: JournalConfig{
			Enabled: true,
			Path:    "data/aura.db",
		},

		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "localhost:9134",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			cfg.normalize()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()
	cfg.normalize()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Reasoning API key from environment (check in priority order)
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Reasoning.APIKey = key
		if c.Reasoning.Provider == "" {
			c.Reasoning.Provider = "gemini"
		}
		if c.Vision.APIKey == "" {
			c.Vision.APIKey = key
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Reasoning.APIKey = key
		c.Reasoning.Provider = "openai"
	}
	if key := os.Getenv("AURA_API_KEY"); key != "" {
		c.Reasoning.APIKey = key
	}

	if url := os.Getenv("AURA_REASONING_URL"); url != "" {
		c.Reasoning.BaseURL = url
	}
	if url := os.Getenv("AURA_DEVTOOLS_URL"); url != "" {
		c.Browse.ControlURL = url
	}

	// Journal path from environment
	if path := os.Getenv("AURA_DB"); path != "" {
		c.Journal.Path = path
	}

	if level := os.Getenv("AURA_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if addr := os.Getenv("AURA_METRICS_ADDR"); addr != "" {
		c.Metrics.Addr = addr
		c.Metrics.Enabled = true
	}
	if v := os.Getenv("AURA_AUDIO"); v == "off" || v == "0" || v == "false" {
		c.Audio.Enabled = false
	}
}

// normalize pulls out-of-range values back to usable ones so a bad config
// file degrades rather than breaking the pipeline.
func (c *Config) normalize() {
	if c.Intent.ConfidenceThreshold <= 0 || c.Intent.ConfidenceThreshold > 1 {
		c.Intent.ConfidenceThreshold = 0.7
	}
	if c.Intent.HistoryWindow < 0 {
		c.Intent.HistoryWindow = 0
	}
	if c.GUI.MaxRetries < 0 {
		c.GUI.MaxRetries = 0
	}
	if c.GUI.FuzzyMatchThreshold < 0 || c.GUI.FuzzyMatchThreshold > 100 {
		c.GUI.FuzzyMatchThreshold = 85
	}
	if c.GUI.TypeDirectMaxChars <= 0 {
		c.GUI.TypeDirectMaxChars = 120
	}
	if c.QA.MaxContentBytes <= 0 {
		c.QA.MaxContentBytes = 50 * 1024
	}
	if c.Conversation.MaxHistory <= 0 {
		c.Conversation.MaxHistory = 10
	}
	if c.Audio.QueueSize <= 0 {
		c.Audio.QueueSize = 64
	}
}

// GetReasoningTimeout returns the reasoning request timeout as a duration.
func (c *Config) GetReasoningTimeout() time.Duration {
	d, err := time.ParseDuration(c.Reasoning.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetVisionTimeout returns the vision request timeout as a duration.
func (c *Config) GetVisionTimeout() time.Duration {
	d, err := time.ParseDuration(c.Vision.Timeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// GetIntentTimeout returns the intent classification timeout as a duration.
func (c *Config) GetIntentTimeout() time.Duration {
	d, err := time.ParseDuration(c.Intent.Timeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetIntentLockTimeout returns the intent lock acquisition timeout.
func (c *Config) GetIntentLockTimeout() time.Duration {
	d, err := time.ParseDuration(c.Intent.LockTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetLockAcquireTimeout returns the execution lock acquire timeout.
func (c *Config) GetLockAcquireTimeout() time.Duration {
	d, err := time.ParseDuration(c.Lock.AcquireTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetLockReacquireTimeout returns the post-wait lock re-acquire timeout.
func (c *Config) GetLockReacquireTimeout() time.Duration {
	d, err := time.ParseDuration(c.Lock.ReacquireTimeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// GetDeferredWaitBounds returns the clamp bounds for deferred waits.
func (c *Config) GetDeferredWaitBounds() (min, max time.Duration) {
	min, err := time.ParseDuration(c.Deferred.MinWait)
	if err != nil || min <= 0 {
		min = 60 * time.Second
	}
	max, err = time.ParseDuration(c.Deferred.MaxWait)
	if err != nil || max < min {
		max = 900 * time.Second
	}
	return min, max
}

// GetDeferredWaitTimeout returns the default deferred wait, clamped to the
// configured bounds.
func (c *Config) GetDeferredWaitTimeout() time.Duration {
	min, max := c.GetDeferredWaitBounds()
	d, err := time.ParseDuration(c.Deferred.WaitTimeout)
	if err != nil {
		return 600 * time.Second
	}
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}

// GetRetryBaseDelay returns the base delay for GUI retry backoff.
func (c *Config) GetRetryBaseDelay() time.Duration {
	d, err := time.ParseDuration(c.GUI.RetryBaseDelay)
	if err != nil {
		return 50 * time.Millisecond
	}
	return d
}

// GetExtractionBudget returns the QA content extraction budget.
func (c *Config) GetExtractionBudget() time.Duration {
	d, err := time.ParseDuration(c.QA.ExtractionBudget)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// GetSummarizeBudget returns the QA summarization budget.
func (c *Config) GetSummarizeBudget() time.Duration {
	d, err := time.ParseDuration(c.QA.SummarizeBudget)
	if err != nil {
		return 3 * time.Second
	}
	return d
}

// GetQATotalBudget returns the soft budget for the whole QA fast path.
func (c *Config) GetQATotalBudget() time.Duration {
	d, err := time.ParseDuration(c.QA.TotalBudget)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetPageTimeout returns the browser page extraction timeout.
func (c *Config) GetPageTimeout() time.Duration {
	d, err := time.ParseDuration(c.Browse.PageTimeout)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// ValidProviders lists all supported reasoning providers.
var ValidProviders = []string{"gemini", "openai"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Reasoning.APIKey == "" {
		return fmt.Errorf("reasoning API key not configured (set GEMINI_API_KEY or OPENAI_API_KEY)")
	}

	validProvider := false
	for _, p := range ValidProviders {
		if c.Reasoning.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid reasoning provider: %s (valid: %v)", c.Reasoning.Provider, ValidProviders)
	}

	return nil
}
