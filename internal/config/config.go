// Package config holds the wavi configuration: one JSON file with
// defaults filled in code, saved atomically.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/roelfdiedericks/wavi/internal/paths"

	"github.com/roelfdiedericks/wavi/internal/logging"
)

// Config represents the merged wavi configuration
type Config struct {
	Phone string `json:"phone,omitempty"` // owner phone number, informational

	Core CoreConfig `json:"core"`
	AI   AIConfig   `json:"ai"`
}

// CoreConfig tunes the event core. Zero values are replaced by defaults
// at load time, so a hand-edited config may omit any of them.
type CoreConfig struct {
	UpdateBuffer   int `json:"updateBuffer"`   // bounded update channel capacity
	KeyBuffer      int `json:"keyBuffer"`      // bounded key channel capacity
	TickMs         int `json:"tickMs"`         // render clock interval
	FrameMinMs     int `json:"frameMinMs"`     // debounce floor between frames
	PendingKeyMs   int `json:"pendingKeyMs"`   // multi-key sequence timeout (gg)
	ShutdownGraceS int `json:"shutdownGraceS"` // max wait for adapter teardown
}

// AIConfig configures the optional reply-draft assistant.
type AIConfig struct {
	Enabled bool   `json:"enabled"`
	APIKey  string `json:"apiKey,omitempty"`
	Model   string `json:"model,omitempty"`
	Tone    string `json:"tone,omitempty"` // casual, formal or technical
}

// Defaults returns a config with every tunable at its default.
func Defaults() *Config {
	return &Config{
		Core: CoreConfig{
			UpdateBuffer:   256,
			KeyBuffer:      64,
			TickMs:         250,
			FrameMinMs:     33,
			PendingKeyMs:   500,
			ShutdownGraceS: 5,
		},
		AI: AIConfig{
			Model: "claude-haiku-4-5",
			Tone:  "casual",
		},
	}
}

// Load reads configuration from wavi.json, filling defaults for any
// field left at zero. A missing config file is not an error.
func Load() (*Config, error) {
	cfg := Defaults()

	path, err := paths.ConfigPath()
	if err != nil {
		return nil, err
	}
	if path == "" {
		logging.L_debug("config: no wavi.json found, using defaults")
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		cfg.fillDefaults()
		logging.L_debug("config: loaded", "path", path)
	}

	// WAVI_AI_KEY applies with or without a config file, so the key can
	// stay out of it entirely
	if key := os.Getenv("WAVI_AI_KEY"); key != "" {
		cfg.AI.APIKey = key
	}
	return cfg, nil
}

func (c *Config) fillDefaults() {
	d := Defaults()
	if c.Core.UpdateBuffer <= 0 {
		c.Core.UpdateBuffer = d.Core.UpdateBuffer
	}
	if c.Core.KeyBuffer <= 0 {
		c.Core.KeyBuffer = d.Core.KeyBuffer
	}
	if c.Core.TickMs <= 0 {
		c.Core.TickMs = d.Core.TickMs
	}
	if c.Core.FrameMinMs <= 0 {
		c.Core.FrameMinMs = d.Core.FrameMinMs
	}
	if c.Core.PendingKeyMs <= 0 {
		c.Core.PendingKeyMs = d.Core.PendingKeyMs
	}
	if c.Core.ShutdownGraceS <= 0 {
		c.Core.ShutdownGraceS = d.Core.ShutdownGraceS
	}
	if c.AI.Model == "" {
		c.AI.Model = d.AI.Model
	}
	if c.AI.Tone == "" {
		c.AI.Tone = d.AI.Tone
	}
}

// Save writes the config atomically to the default location.
func (c *Config) Save() error {
	path, err := paths.DefaultConfigPath()
	if err != nil {
		return err
	}
	return AtomicWriteJSON(path, c, 0600)
}

// TickInterval returns the render clock period.
func (c *CoreConfig) TickInterval() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

// FrameMinInterval returns the debounce floor between frames.
func (c *CoreConfig) FrameMinInterval() time.Duration {
	return time.Duration(c.FrameMinMs) * time.Millisecond
}

// PendingKeyTimeout returns the multi-key sequence timeout.
func (c *CoreConfig) PendingKeyTimeout() time.Duration {
	return time.Duration(c.PendingKeyMs) * time.Millisecond
}

// ShutdownGrace returns the adapter teardown budget.
func (c *CoreConfig) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceS) * time.Second
}
