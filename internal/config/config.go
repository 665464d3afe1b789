package config

import (
	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/postpilot-io/postpilot/pkg/logger"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Logger     logger.Config    `yaml:"logger"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	Host     string `yaml:"host"`
	Mode     string `yaml:"mode"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type DatabaseConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	TimeZone string `yaml:"timezone"`
}

// ProvidersConfig carries the process-wide stub/real switch plus one OAuth
// client per platform. Mode applies to every provider; there is no per-call
// override.
type ProvidersConfig struct {
	Mode      string         `yaml:"mode"`
	Twitter   PlatformConfig `yaml:"twitter"`
	Facebook  PlatformConfig `yaml:"facebook"`
	Instagram PlatformConfig `yaml:"instagram"`
	LinkedIn  PlatformConfig `yaml:"linkedin"`
	YouTube   PlatformConfig `yaml:"youtube"`
	TikTok    PlatformConfig `yaml:"tiktok"`
}

type PlatformConfig struct {
	Enabled      bool     `yaml:"enabled"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url"`
	Scopes       []string `yaml:"scopes"`
}

// ReconcilerConfig holds the vote-to-confidence policy knobs. The thresholds
// are product policy, not invariants, so they stay configurable.
type ReconcilerConfig struct {
	ProbeTimeout    string  `yaml:"probe_timeout"`
	HighThreshold   float64 `yaml:"high_threshold"`
	MediumThreshold float64 `yaml:"medium_threshold"`
}

type SchedulerConfig struct {
	Enabled           bool   `yaml:"enabled"`
	ReconcileInterval string `yaml:"reconcile_interval"`
	AnalyticsInterval string `yaml:"analytics_interval"`
}

func LoadConfig(configPath string) (*Config, error) {
	cfg, err := yamlenv.LoadConfig[Config](configPath)
	if err != nil {
		return nil, err
	}

	// Set default values
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5441
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "UTC"
	}
	if cfg.Providers.Mode == "" {
		cfg.Providers.Mode = "stub"
	}
	if cfg.Reconciler.ProbeTimeout == "" {
		cfg.Reconciler.ProbeTimeout = "12s"
	}
	if cfg.Reconciler.HighThreshold == 0 {
		cfg.Reconciler.HighThreshold = 80
	}
	if cfg.Reconciler.MediumThreshold == 0 {
		cfg.Reconciler.MediumThreshold = 40
	}
	if cfg.Scheduler.ReconcileInterval == "" {
		cfg.Scheduler.ReconcileInterval = "30m"
	}
	if cfg.Scheduler.AnalyticsInterval == "" {
		cfg.Scheduler.AnalyticsInterval = "5m"
	}

	return cfg, nil
}

// Platform returns the OAuth client config for a platform name, or nil for
// unknown names.
func (c *ProvidersConfig) Platform(name string) *PlatformConfig {
	switch name {
	case "twitter":
		return &c.Twitter
	case "facebook":
		return &c.Facebook
	case "instagram":
		return &c.Instagram
	case "linkedin":
		return &c.LinkedIn
	case "youtube":
		return &c.YouTube
	case "tiktok":
		return &c.TikTok
	}
	return nil
}
