package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
)

type Config struct {
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	JWT        JWTConfig        `toml:"jwt"`
	OAuth      OAuthConfig      `toml:"oauth"`
	Cloudinary CloudinaryConfig `toml:"cloudinary"`
	Upload     UploadConfig     `toml:"upload"`
	Presence   PresenceConfig   `toml:"presence"`
	Session    SessionConfig    `toml:"session"`
	Board      BoardConfig      `toml:"board"`
	Log        LogConfig        `toml:"log"`
}

type ServerConfig struct {
	Port         string        `toml:"port"`
	Env          string        `toml:"env"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

type JWTConfig struct {
	AccessSecret string        `toml:"access_secret"`
	AccessExpiry time.Duration `toml:"access_expiry"`
	Issuer       string        `toml:"issuer"`
}

type OAuthConfig struct {
	GoogleClientID     string `toml:"google_client_id"`
	GoogleClientSecret string `toml:"google_client_secret"`
	GoogleRedirectURL  string `toml:"google_redirect_url"`
	// AllowedEmailDomain includes the leading "@".
	AllowedEmailDomain string `toml:"allowed_email_domain"`
}

type CloudinaryConfig struct {
	CloudName string `toml:"cloud_name"`
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
}

type UploadConfig struct {
	MaxAvatarBytes int64 `toml:"max_avatar_bytes"`
}

// PresenceConfig tunes the synchronization core.
type PresenceConfig struct {
	PollInterval      time.Duration `toml:"poll_interval"`
	HealthInterval    time.Duration `toml:"health_interval"`
	ExpiryInterval    time.Duration `toml:"expiry_interval"`
	FeedRetryDelay    time.Duration `toml:"feed_retry_delay"`
	FeedMaxRetries    int           `toml:"feed_max_retries"`
	FeedReadTimeout   time.Duration `toml:"feed_read_timeout"`
	SuppressionWindow time.Duration `toml:"suppression_window"`
	AlertTTL          time.Duration `toml:"alert_ttl"`
	AlertCapacity     int           `toml:"alert_capacity"`
	AlertVisible      int           `toml:"alert_visible"`
	MarkerTTL         time.Duration `toml:"marker_ttl"`
	MarkerSweep       time.Duration `toml:"marker_sweep"`
	// PeerCorrection is one of "own", "any", "admin".
	PeerCorrection   string `toml:"peer_correction"`
	CorrectorWorkers int    `toml:"corrector_workers"`
}

type SessionConfig struct {
	Length        time.Duration `toml:"length"`
	WarnBefore    time.Duration `toml:"warn_before"`
	TickInterval  time.Duration `toml:"tick_interval"`
	KeepaliveTick time.Duration `toml:"keepalive_tick"`
}

type BoardConfig struct {
	BaseURL     string        `toml:"base_url"`
	Token       string        `toml:"token"`
	StatePath   string        `toml:"state_path"`
	HTTPTimeout time.Duration `toml:"http_timeout"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8099",
			Env:          "development",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             "statusboard:statusboard@tcp(localhost:3306)/statusboard?charset=utf8mb4&parseTime=True&loc=UTC",
			MaxIdleConns:    10,
			MaxOpenConns:    50,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret: "change-me-in-production",
			AccessExpiry: 12 * time.Hour,
			Issuer:       "statusboard",
		},
		OAuth: OAuthConfig{
			GoogleRedirectURL:  "http://localhost:8099/api/v1/auth/google/callback",
			AllowedEmailDomain: "@getrime.com",
		},
		Upload: UploadConfig{
			MaxAvatarBytes: 5 << 20,
		},
		Presence: PresenceConfig{
			PollInterval:      5 * time.Second,
			HealthInterval:    30 * time.Second,
			ExpiryInterval:    15 * time.Second,
			FeedRetryDelay:    3 * time.Second,
			FeedMaxRetries:    5,
			FeedReadTimeout:   75 * time.Second,
			SuppressionWindow: 5 * time.Second,
			AlertTTL:          5 * time.Second,
			AlertCapacity:     20,
			AlertVisible:      3,
			MarkerTTL:         5 * time.Minute,
			MarkerSweep:       30 * time.Second,
			PeerCorrection:    "any",
			CorrectorWorkers:  4,
		},
		Session: SessionConfig{
			Length:        15 * time.Minute,
			WarnBefore:    2 * time.Minute,
			TickInterval:  time.Second,
			KeepaliveTick: time.Minute,
		},
		Board: BoardConfig{
			BaseURL:     "http://127.0.0.1:8099",
			StatePath:   "statusboard-state.db",
			HTTPTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadFile returns defaults overlaid with the TOML file at path and then with
// environment overrides. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := Load()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read %s: %w", path, err)
		default:
			if err := overlay(cfg, data); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

// overlay decodes each table present in data onto the matching section of
// cfg. Keys and tables the file leaves out keep their current values.
func overlay(cfg *Config, data []byte) error {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return err
	}
	sections := map[string]any{
		"server":     &cfg.Server,
		"database":   &cfg.Database,
		"jwt":        &cfg.JWT,
		"oauth":      &cfg.OAuth,
		"cloudinary": &cfg.Cloudinary,
		"upload":     &cfg.Upload,
		"presence":   &cfg.Presence,
		"session":    &cfg.Session,
		"board":      &cfg.Board,
		"log":        &cfg.Log,
	}
	for name, dst := range sections {
		sub, ok := tree.Get(name).(*toml.Tree)
		if !ok {
			continue
		}
		if err := sub.Unmarshal(dst); err != nil {
			return fmt.Errorf("[%s]: %w", name, err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	envString("STATUSBOARD_PORT", &cfg.Server.Port)
	envString("STATUSBOARD_ENV", &cfg.Server.Env)
	envString("STATUSBOARD_DSN", &cfg.Database.DSN)
	envString("STATUSBOARD_JWT_SECRET", &cfg.JWT.AccessSecret)
	envString("GOOGLE_CLIENT_ID", &cfg.OAuth.GoogleClientID)
	envString("GOOGLE_CLIENT_SECRET", &cfg.OAuth.GoogleClientSecret)
	envString("GOOGLE_REDIRECT_URL", &cfg.OAuth.GoogleRedirectURL)
	envString("STATUSBOARD_ALLOWED_DOMAIN", &cfg.OAuth.AllowedEmailDomain)
	envString("CLOUDINARY_CLOUD_NAME", &cfg.Cloudinary.CloudName)
	envString("CLOUDINARY_API_KEY", &cfg.Cloudinary.APIKey)
	envString("CLOUDINARY_API_SECRET", &cfg.Cloudinary.APISecret)
	envString("STATUSBOARD_PEER_CORRECTION", &cfg.Presence.PeerCorrection)
	envDuration("STATUSBOARD_POLL_INTERVAL", &cfg.Presence.PollInterval)
	envInt("STATUSBOARD_FEED_MAX_RETRIES", &cfg.Presence.FeedMaxRetries)
	envString("STATUSBOARD_BASE_URL", &cfg.Board.BaseURL)
	envString("STATUSBOARD_TOKEN", &cfg.Board.Token)
	envString("STATUSBOARD_STATE_PATH", &cfg.Board.StatePath)
	envString("STATUSBOARD_LOG_LEVEL", &cfg.Log.Level)
}

func envString(name string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		*dst = v
	}
}

func envDuration(name string, dst *time.Duration) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		*dst = d
	}
}

func envInt(name string, dst *int) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return
	}
	if n, err := strconv.Atoi(raw); err == nil {
		*dst = n
	}
}
