// Package config loads Marcus's configuration: defaults in code, overlaid
// by an optional config.yaml, overlaid by environment variables (env wins),
// mirroring the teacher's declared caarlos0/env/v11 + yaml.v3 stack.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/marcus-ai/marcus/pkg/apperr"
)

// TaskLeaseConfig mirrors spec.md §6's task_lease.* table.
type TaskLeaseConfig struct {
	DefaultHours           float64 `yaml:"default_hours" env:"TASK_LEASE_DEFAULT_HOURS"`
	MaxRenewals             int     `yaml:"max_renewals" env:"TASK_LEASE_MAX_RENEWALS"`
	WarningHours            float64 `yaml:"warning_hours" env:"TASK_LEASE_WARNING_HOURS"`
	GracePeriodMinutes      int     `yaml:"grace_period_minutes" env:"TASK_LEASE_GRACE_PERIOD_MINUTES"`
	RenewalDecayFactor      float64 `yaml:"renewal_decay_factor" env:"TASK_LEASE_RENEWAL_DECAY_FACTOR"`
	MinLeaseHours           float64 `yaml:"min_lease_hours" env:"TASK_LEASE_MIN_LEASE_HOURS"`
	MaxLeaseHours           float64 `yaml:"max_lease_hours" env:"TASK_LEASE_MAX_LEASE_HOURS"`
	StuckThresholdRenewals  int     `yaml:"stuck_threshold_renewals" env:"TASK_LEASE_STUCK_THRESHOLD_RENEWALS"`
	EnableAdaptive          bool    `yaml:"enable_adaptive" env:"TASK_LEASE_ENABLE_ADAPTIVE"`
}

// ScoringConfig mirrors spec.md §6's scoring.* table.
type ScoringConfig struct {
	SkillWeight    float64 `yaml:"skill_weight" env:"SCORING_SKILL_WEIGHT"`
	PriorityWeight float64 `yaml:"priority_weight" env:"SCORING_PRIORITY_WEIGHT"`
}

// RetryAfterConfig mirrors spec.md §6's retry_after.* table.
type RetryAfterConfig struct {
	FloorSeconds    int     `yaml:"floor_seconds" env:"RETRY_AFTER_FLOOR_SECONDS"`
	CapSeconds      int     `yaml:"cap_seconds" env:"RETRY_AFTER_CAP_SECONDS"`
	BufferFraction  float64 `yaml:"buffer_fraction" env:"RETRY_AFTER_BUFFER_FRACTION"`
}

// ProjectSuccessConfig mirrors spec.md §6's project_success.* table.
type ProjectSuccessConfig struct {
	CompletionThreshold float64 `yaml:"completion_threshold" env:"PROJECT_SUCCESS_COMPLETION_THRESHOLD"`
}

// MonitorConfig configures the two MON background loops and the gronx
// board-health cron sweep.
type MonitorConfig struct {
	PollIntervalSeconds int    `yaml:"poll_interval_seconds" env:"MONITOR_POLL_INTERVAL_SECONDS"`
	BoardHealthCron     string `yaml:"board_health_cron" env:"MONITOR_BOARD_HEALTH_CRON"`
}

// KanbanConfig selects and configures the kanban provider adapter.
type KanbanConfig struct {
	Provider string `yaml:"provider" env:"KANBAN_PROVIDER"` // "sqlite" | "github"

	SQLitePath string `yaml:"sqlite_path" env:"KANBAN_SQLITE_PATH"`

	GitHubOwner string `yaml:"github_owner" env:"KANBAN_GITHUB_OWNER"`
	GitHubRepo  string `yaml:"github_repo" env:"KANBAN_GITHUB_REPO"`
	GitHubToken string `yaml:"github_token" env:"KANBAN_GITHUB_TOKEN"`
}

// AIConfig selects and configures the AI-instruction engine backend.
type AIConfig struct {
	Provider string `yaml:"provider" env:"AI_PROVIDER"` // "anthropic" | "openai" | "http"

	AnthropicAPIKey string `yaml:"anthropic_api_key" env:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `yaml:"anthropic_model" env:"AI_ANTHROPIC_MODEL"`

	OpenAIAPIKey string `yaml:"openai_api_key" env:"OPENAI_API_KEY"`
	OpenAIModel  string `yaml:"openai_model" env:"AI_OPENAI_MODEL"`

	HTTPBaseURL string `yaml:"http_base_url" env:"AI_HTTP_BASE_URL"`
	HTTPAPIKey  string `yaml:"http_api_key" env:"AI_HTTP_API_KEY"`
	HTTPModel   string `yaml:"http_model" env:"AI_HTTP_MODEL"`
}

// TransportConfig configures the tool-call RPC transport.
type TransportConfig struct {
	Mode       string `yaml:"mode" env:"TRANSPORT_MODE"` // "stdio" | "http"
	HTTPAddr   string `yaml:"http_addr" env:"TRANSPORT_HTTP_ADDR"`
	APIKey     string `yaml:"api_key" env:"TRANSPORT_API_KEY"`
}

// LogConfig configures pkg/logger.
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
	Path  string `yaml:"path" env:"LOG_PATH"` // empty = stdout
}

// Config is the root configuration tree.
type Config struct {
	TaskLease      TaskLeaseConfig      `yaml:"task_lease"`
	Scoring        ScoringConfig        `yaml:"scoring"`
	RetryAfter     RetryAfterConfig     `yaml:"retry_after"`
	ProjectSuccess ProjectSuccessConfig `yaml:"project_success"`
	Monitor        MonitorConfig        `yaml:"monitor"`
	Kanban         KanbanConfig         `yaml:"kanban"`
	AI             AIConfig             `yaml:"ai"`
	Transport      TransportConfig      `yaml:"transport"`
	Log            LogConfig            `yaml:"log"`
}

// Defaults returns a Config populated with spec.md §6's documented
// defaults.
func Defaults() *Config {
	return &Config{
		TaskLease: TaskLeaseConfig{
			DefaultHours:           2.0,
			MaxRenewals:            10,
			WarningHours:           0.5,
			GracePeriodMinutes:     30,
			RenewalDecayFactor:     0.9,
			MinLeaseHours:          1.0,
			MaxLeaseHours:          24.0,
			StuckThresholdRenewals: 5,
			EnableAdaptive:         true,
		},
		Scoring: ScoringConfig{
			SkillWeight:    0.6,
			PriorityWeight: 0.4,
		},
		RetryAfter: RetryAfterConfig{
			FloorSeconds:   30,
			CapSeconds:     3600,
			BufferFraction: 0.10,
		},
		ProjectSuccess: ProjectSuccessConfig{
			CompletionThreshold: 0.90,
		},
		Monitor: MonitorConfig{
			PollIntervalSeconds: 450, // ~1/4 of the 0.5h warning threshold
			BoardHealthCron:     "*/5 * * * *",
		},
		Kanban: KanbanConfig{
			Provider:   "sqlite",
			SQLitePath: "marcus.db",
		},
		AI: AIConfig{
			Provider: "http",
		},
		Transport: TransportConfig{
			Mode:     "stdio",
			HTTPAddr: ":8787",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds a Config: defaults, then an optional YAML file at path (if
// non-empty and present), then environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, apperr.Wrap(apperr.ConfigurationError, "reading config file", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperr.Wrap(apperr.ConfigurationError, "parsing config file", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, apperr.Wrap(apperr.ConfigurationError, "parsing environment overrides", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configuration combinations that would make the
// process unable to start.
func (c *Config) Validate() error {
	if c.TaskLease.MinLeaseHours > c.TaskLease.MaxLeaseHours {
		return apperr.Configuration("task_lease.min_lease_hours must be <= max_lease_hours")
	}
	if c.Scoring.SkillWeight+c.Scoring.PriorityWeight <= 0 {
		return apperr.Configuration("scoring weights must sum to a positive value")
	}
	if c.Transport.Mode != "stdio" && c.Transport.Mode != "http" {
		return apperr.Configuration(fmt.Sprintf("unknown transport mode %q", c.Transport.Mode))
	}
	return nil
}
