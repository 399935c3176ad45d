package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries every tunable of the server. Values are loaded from an
// optional JSON file and can be overridden one by one through STTT_*
// environment variables.
type Config struct {
	Addr    string `json:"addr"`
	DataDir string `json:"data_dir"` // badger directory; empty selects the in-memory store

	// Fan-out layer.
	HeartbeatIntervalSec  int `json:"heartbeat_interval_sec"`
	ConnectionTimeoutSec  int `json:"connection_timeout_sec"`
	MaxConnectionsPerGame int `json:"max_connections_per_game"`
	SendQueueSize         int `json:"send_queue_size"`

	// Matchmaking and lifecycle.
	QueueMaxAgeMin       int    `json:"queue_max_age_min"`
	MatchReapSpec        string `json:"match_reap_spec"`
	QueueReapSpec        string `json:"queue_reap_spec"`
	TerminalRetentionMin int    `json:"terminal_retention_min"`
	IdleGraceMin         int    `json:"idle_grace_min"`

	// Computer opponent.
	AIThinkDelayMs      int `json:"ai_think_delay_ms"`
	AISearchDeadlineSec int `json:"ai_search_deadline_sec"`
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		Addr:                  ":8080",
		HeartbeatIntervalSec:  30,
		ConnectionTimeoutSec:  90,
		MaxConnectionsPerGame: 100,
		SendQueueSize:         32,
		QueueMaxAgeMin:        10,
		MatchReapSpec:         "@every 30m",
		QueueReapSpec:         "@every 5m",
		TerminalRetentionMin:  60,
		IdleGraceMin:          10,
		AIThinkDelayMs:        500,
		AISearchDeadlineSec:   3,
	}
}

// Load reads the JSON config at path (missing file is fine) and applies
// environment overrides on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults plus env only.
		case err != nil:
			return cfg, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("STTT_ADDR"); ok {
		c.Addr = v
	}
	if v, ok := os.LookupEnv("STTT_DATA_DIR"); ok {
		c.DataDir = v
	}
	envInt("STTT_HEARTBEAT_INTERVAL_SEC", &c.HeartbeatIntervalSec)
	envInt("STTT_CONNECTION_TIMEOUT_SEC", &c.ConnectionTimeoutSec)
	envInt("STTT_MAX_CONNECTIONS_PER_GAME", &c.MaxConnectionsPerGame)
	envInt("STTT_SEND_QUEUE_SIZE", &c.SendQueueSize)
	envInt("STTT_QUEUE_MAX_AGE_MIN", &c.QueueMaxAgeMin)
	envInt("STTT_TERMINAL_RETENTION_MIN", &c.TerminalRetentionMin)
	envInt("STTT_IDLE_GRACE_MIN", &c.IdleGraceMin)
	envInt("STTT_AI_THINK_DELAY_MS", &c.AIThinkDelayMs)
	envInt("STTT_AI_SEARCH_DEADLINE_SEC", &c.AISearchDeadlineSec)
	if v, ok := os.LookupEnv("STTT_MATCH_REAP_SPEC"); ok {
		c.MatchReapSpec = v
	}
	if v, ok := os.LookupEnv("STTT_QUEUE_REAP_SPEC"); ok {
		c.QueueReapSpec = v
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}

// Derived durations.

func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSec) * time.Second
}

func (c Config) ConnectionTimeout() time.Duration {
	return time.Duration(c.ConnectionTimeoutSec) * time.Second
}

func (c Config) QueueMaxAge() time.Duration {
	return time.Duration(c.QueueMaxAgeMin) * time.Minute
}

func (c Config) TerminalRetention() time.Duration {
	return time.Duration(c.TerminalRetentionMin) * time.Minute
}

func (c Config) IdleGrace() time.Duration {
	return time.Duration(c.IdleGraceMin) * time.Minute
}

func (c Config) AIThinkDelay() time.Duration {
	return time.Duration(c.AIThinkDelayMs) * time.Millisecond
}

func (c Config) AISearchDeadline() time.Duration {
	return time.Duration(c.AISearchDeadlineSec) * time.Second
}
