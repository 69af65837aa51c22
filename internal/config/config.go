package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const devSecret = "dev-secret-key-change-in-production-0000"

type Config struct {
	HTTPPort    string
	DatabaseURL string // empty: embedded SQLite at SQLitePath
	SQLitePath  string
	CORSOrigins string
	LogLevel    string

	SecretKey     string
	SessionTTL    time.Duration
	RememberMeTTL time.Duration
	CookieSecure  bool

	Cloudinary        CloudinaryConfig
	UploadDir         string // local photo storage, served under /uploads
	MaxUploadMB       int
	MediaTimeout      time.Duration
	ExportConcurrency int

	AdminUsername string
	AdminPassword string
	AdminCode     string

	TemplateReload bool
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

// Production reports whether a networked database is configured.
func (c *Config) Production() bool {
	return c.DatabaseURL != ""
}

// MediaConfigured reports whether every Cloudinary credential is present.
func (c *Config) MediaConfigured() bool {
	return c.Cloudinary.CloudName != "" && c.Cloudinary.APIKey != "" && c.Cloudinary.APISecret != ""
}

// Load reads configuration from the environment, an optional config file and a
// .env file in the working directory, in that order of precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		HTTPPort:    v.GetString("http_port"),
		DatabaseURL: strings.TrimSpace(v.GetString("database_url")),
		SQLitePath:  v.GetString("sqlite_path"),
		CORSOrigins: v.GetString("cors_allowed_origins"),
		LogLevel:    v.GetString("log_level"),

		SecretKey:     v.GetString("secret_key"),
		SessionTTL:    v.GetDuration("session_ttl"),
		RememberMeTTL: v.GetDuration("remember_me_ttl"),
		CookieSecure:  v.GetBool("cookie_secure"),

		Cloudinary: CloudinaryConfig{
			CloudName: v.GetString("cloudinary_cloud_name"),
			APIKey:    v.GetString("cloudinary_api_key"),
			APISecret: v.GetString("cloudinary_api_secret"),
		},
		UploadDir:         v.GetString("upload_dir"),
		MaxUploadMB:       v.GetInt("max_upload_mb"),
		MediaTimeout:      v.GetDuration("media_timeout"),
		ExportConcurrency: v.GetInt("export_concurrency"),

		AdminUsername: v.GetString("admin_username"),
		AdminPassword: v.GetString("admin_password"),
		AdminCode:     v.GetString("admin_code"),

		TemplateReload: v.GetBool("template_reload"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_port", "8080")
	v.SetDefault("database_url", "")
	v.SetDefault("sqlite_path", "database.db")
	v.SetDefault("cors_allowed_origins", "http://localhost:8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("secret_key", "")
	v.SetDefault("session_ttl", 8*time.Hour)
	v.SetDefault("remember_me_ttl", 30*24*time.Hour)
	v.SetDefault("cookie_secure", false)
	v.SetDefault("cloudinary_cloud_name", "")
	v.SetDefault("cloudinary_api_key", "")
	v.SetDefault("cloudinary_api_secret", "")
	v.SetDefault("upload_dir", "static/uploads")
	v.SetDefault("max_upload_mb", 16)
	v.SetDefault("media_timeout", 10*time.Second)
	v.SetDefault("export_concurrency", 4)
	v.SetDefault("admin_username", "admin")
	v.SetDefault("admin_password", "admin123")
	v.SetDefault("admin_code", "ADMIN001")
	v.SetDefault("template_reload", false)
}

func (c *Config) validate() error {
	if c.SecretKey == "" {
		if c.Production() {
			return errors.New("SECRET_KEY must be set when DATABASE_URL is configured")
		}
		log.Warn("SECRET_KEY not set, using the development secret")
		c.SecretKey = devSecret
	}
	if len(c.SecretKey) < 32 {
		return errors.New("SECRET_KEY must be at least 32 characters")
	}
	if c.SessionTTL <= 0 || c.RememberMeTTL <= 0 {
		return errors.New("SESSION_TTL and REMEMBER_ME_TTL must be positive")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	if c.MediaTimeout < time.Second {
		return fmt.Errorf("MEDIA_TIMEOUT must be at least 1s, got %s", c.MediaTimeout)
	}
	if c.ExportConcurrency < 1 {
		c.ExportConcurrency = 1
	}

	if c.Production() && c.AdminPassword == "admin123" {
		log.Warn("ADMIN_PASSWORD uses the default value, set your own before the first start")
	}
	if !c.MediaConfigured() {
		log.Info("Cloudinary credentials missing, photos are stored on local disk", "dir", c.UploadDir)
	}
	return nil
}
