package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Intent.ConfidenceThreshold != 0.7 {
		t.Errorf("ConfidenceThreshold = %v, want 0.7", cfg.Intent.ConfidenceThreshold)
	}
	if cfg.GUI.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", cfg.GUI.MaxRetries)
	}
	if cfg.Conversation.MaxHistory != 10 {
		t.Errorf("MaxHistory = %d, want 10", cfg.Conversation.MaxHistory)
	}
}

func TestLoadParsesYAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aura.yaml")
	body := []byte(`
intent:
  confidence_threshold: 0.85
qa:
  max_content_bytes: 1024
audio:
  enabled: false
  queue_size: 8
`)
	if err := os.WriteFile(path, body, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Intent.ConfidenceThreshold != 0.85 {
		t.Errorf("ConfidenceThreshold = %v", cfg.Intent.ConfidenceThreshold)
	}
	if cfg.QA.MaxContentBytes != 1024 {
		t.Errorf("MaxContentBytes = %d", cfg.QA.MaxContentBytes)
	}
	if cfg.Audio.Enabled {
		t.Error("audio should be disabled")
	}
	if cfg.Audio.QueueSize != 8 {
		t.Errorf("QueueSize = %d", cfg.Audio.QueueSize)
	}
	// Untouched sections keep their defaults.
	if cfg.Lock.AcquireTimeout != "30s" {
		t.Errorf("AcquireTimeout = %q", cfg.Lock.AcquireTimeout)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("AURA_DB", "/tmp/override.db")
	t.Setenv("AURA_LOG_LEVEL", "debug")
	t.Setenv("AURA_AUDIO", "off")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Reasoning.APIKey != "g-key" {
		t.Errorf("APIKey = %q", cfg.Reasoning.APIKey)
	}
	if cfg.Vision.APIKey != "g-key" {
		t.Errorf("Vision.APIKey = %q, should inherit the Gemini key", cfg.Vision.APIKey)
	}
	if cfg.Journal.Path != "/tmp/override.db" {
		t.Errorf("Journal.Path = %q", cfg.Journal.Path)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
	if cfg.Audio.Enabled {
		t.Error("AURA_AUDIO=off should disable audio")
	}
}

func TestNormalizeRepairsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aura.yaml")
	body := []byte(`
intent:
  confidence_threshold: 3.5
gui:
  max_retries: -1
  type_direct_max_chars: 0
conversation:
  max_history: -5
audio:
  queue_size: 0
`)
	if err := os.WriteFile(path, body, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Intent.ConfidenceThreshold != 0.7 {
		t.Errorf("ConfidenceThreshold = %v, want repaired 0.7", cfg.Intent.ConfidenceThreshold)
	}
	if cfg.GUI.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0", cfg.GUI.MaxRetries)
	}
	if cfg.GUI.TypeDirectMaxChars != 120 {
		t.Errorf("TypeDirectMaxChars = %d", cfg.GUI.TypeDirectMaxChars)
	}
	if cfg.Conversation.MaxHistory != 10 {
		t.Errorf("MaxHistory = %d", cfg.Conversation.MaxHistory)
	}
	if cfg.Audio.QueueSize != 64 {
		t.Errorf("QueueSize = %d", cfg.Audio.QueueSize)
	}
}

func TestDurationGetters(t *testing.T) {
	cfg := DefaultConfig()

	if got := cfg.GetLockAcquireTimeout(); got != 30*time.Second {
		t.Errorf("GetLockAcquireTimeout = %v", got)
	}
	if got := cfg.GetLockReacquireTimeout(); got != 15*time.Second {
		t.Errorf("GetLockReacquireTimeout = %v", got)
	}
	if got := cfg.GetRetryBaseDelay(); got != 50*time.Millisecond {
		t.Errorf("GetRetryBaseDelay = %v", got)
	}
	if got := cfg.GetExtractionBudget(); got != 2*time.Second {
		t.Errorf("GetExtractionBudget = %v", got)
	}
	if got := cfg.GetSummarizeBudget(); got != 3*time.Second {
		t.Errorf("GetSummarizeBudget = %v", got)
	}

	cfg.Lock.AcquireTimeout = "garbage"
	if got := cfg.GetLockAcquireTimeout(); got != 30*time.Second {
		t.Errorf("unparseable timeout should fall back, got %v", got)
	}
}

func TestDeferredWaitClamping(t *testing.T) {
	tests := []struct {
		name string
		wait string
		want time.Duration
	}{
		{"default", "600s", 600 * time.Second},
		{"below_min", "5s", 60 * time.Second},
		{"above_max", "2h", 900 * time.Second},
		{"unparseable", "soon", 600 * time.Second},
		{"at_min", "60s", 60 * time.Second},
		{"at_max", "900s", 900 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Deferred.WaitTimeout = tt.wait
			if got := cfg.GetDeferredWaitTimeout(); got != tt.want {
				t.Errorf("GetDeferredWaitTimeout = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Error("missing API key should fail validation")
	}

	cfg.Reasoning.APIKey = "k"
	cfg.Reasoning.Provider = "carrier-pigeon"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown provider should fail validation")
	}

	cfg.Reasoning.Provider = "gemini"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
