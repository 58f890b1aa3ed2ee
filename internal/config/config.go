// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type GameConfig struct {
	BaseURL string        `yaml:"base_url"`
	Secret  string        `yaml:"secret"` // shared signing secret
	Timeout time.Duration `yaml:"timeout"`
}

type RegistryConfig struct {
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	MinSpacing      time.Duration `yaml:"min_spacing"`       // floor between any two outgoing calls
	SyncIntervalMin time.Duration `yaml:"sync_interval_min"` // randomized window lower bound
	SyncIntervalMax time.Duration `yaml:"sync_interval_max"` // randomized window upper bound
	BackoffBase     time.Duration `yaml:"backoff_base"`
	BackoffCap      time.Duration `yaml:"backoff_cap"`
}

type SolverConfig struct {
	URL           string        `yaml:"url"`
	Enabled       bool          `yaml:"enabled"`
	MinConfidence float64       `yaml:"min_confidence"`
	Timeout       time.Duration `yaml:"timeout"`
}

type RedeemConfig struct {
	MaxCaptchaCycles  int           `yaml:"max_captcha_cycles"`
	CycleDelayMin     time.Duration `yaml:"cycle_delay_min"` // sleep between captcha retries
	CycleDelayMax     time.Duration `yaml:"cycle_delay_max"`
	InterAccountDelay time.Duration `yaml:"inter_account_delay"` // jittered base between accounts
	ParkCooldown      time.Duration `yaml:"park_cooldown"`       // captcha-too-frequent park
	ValidationAccount string        `yaml:"validation_account"`  // designated validation account id
}

type BatchConfig struct {
	Order            string        `yaml:"order"` // group_major | code_major
	ProgressInterval time.Duration `yaml:"progress_interval"`
}

type RevalidateConfig struct {
	Cron           string `yaml:"cron"` // robfig/cron spec, default every 6h
	MaxCodesPerRun int    `yaml:"max_codes_per_run"`
	RetentionDays  int    `yaml:"retention_days"`
}

type BotConfig struct {
	Token       string `yaml:"token"`
	AdminChatID int64  `yaml:"admin_chat_id"`
	Enabled     bool   `yaml:"enabled"`
}

type AdminConfig struct {
	Port      int           `yaml:"port"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Game       GameConfig       `yaml:"game"`
	Registry   RegistryConfig   `yaml:"registry"`
	Solver     SolverConfig     `yaml:"solver"`
	Redeem     RedeemConfig     `yaml:"redeem"`
	Batch      BatchConfig      `yaml:"batch"`
	Revalidate RevalidateConfig `yaml:"revalidate"`
	Bot        BotConfig        `yaml:"bot"`
	Admin      AdminConfig      `yaml:"admin"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Game.BaseURL == "" {
		return nil, errors.New("game.base_url is required")
	}
	if cfg.Game.Secret == "" {
		return nil, errors.New("game.secret is required")
	}
	if cfg.Registry.SyncIntervalMax < cfg.Registry.SyncIntervalMin {
		return nil, errors.New("registry.sync_interval_max must be >= sync_interval_min")
	}
	if cfg.Batch.Order != "group_major" && cfg.Batch.Order != "code_major" {
		return nil, fmt.Errorf("batch.order must be group_major or code_major, got %q", cfg.Batch.Order)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Game.Timeout <= 0 {
		cfg.Game.Timeout = 15 * time.Second
	}
	if cfg.Registry.MinSpacing <= 0 {
		cfg.Registry.MinSpacing = 2 * time.Second
	}
	if cfg.Registry.SyncIntervalMin <= 0 {
		cfg.Registry.SyncIntervalMin = 10 * time.Minute
	}
	if cfg.Registry.SyncIntervalMax <= 0 {
		cfg.Registry.SyncIntervalMax = 20 * time.Minute
	}
	if cfg.Registry.BackoffBase <= 0 {
		cfg.Registry.BackoffBase = 30 * time.Second
	}
	if cfg.Registry.BackoffCap <= 0 {
		cfg.Registry.BackoffCap = 30 * time.Minute
	}
	if cfg.Solver.Timeout <= 0 {
		cfg.Solver.Timeout = 10 * time.Second
	}
	if cfg.Redeem.MaxCaptchaCycles <= 0 {
		cfg.Redeem.MaxCaptchaCycles = 4
	}
	if cfg.Redeem.CycleDelayMin <= 0 {
		cfg.Redeem.CycleDelayMin = time.Second
	}
	if cfg.Redeem.CycleDelayMax <= cfg.Redeem.CycleDelayMin {
		cfg.Redeem.CycleDelayMax = cfg.Redeem.CycleDelayMin + 2*time.Second
	}
	if cfg.Redeem.InterAccountDelay <= 0 {
		cfg.Redeem.InterAccountDelay = 2 * time.Second
	}
	if cfg.Redeem.ParkCooldown <= 0 {
		cfg.Redeem.ParkCooldown = 60 * time.Second
	}
	if cfg.Batch.Order == "" {
		cfg.Batch.Order = "group_major"
	}
	if cfg.Batch.ProgressInterval <= 0 {
		cfg.Batch.ProgressInterval = 3 * time.Second
	}
	if cfg.Revalidate.Cron == "" {
		cfg.Revalidate.Cron = "0 */6 * * *"
	}
	if cfg.Revalidate.MaxCodesPerRun <= 0 {
		cfg.Revalidate.MaxCodesPerRun = 50
	}
	if cfg.Revalidate.RetentionDays <= 0 {
		cfg.Revalidate.RetentionDays = 7
	}
	if cfg.Admin.TokenTTL <= 0 {
		cfg.Admin.TokenTTL = 24 * time.Hour
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
