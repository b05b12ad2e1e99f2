package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var validate = validator.New()

// R2 holds the Cloudflare R2 bucket the catalog YAML is fetched from. Empty AccountID disables it.
type R2 struct {
	AccountID       string
	AccessKeyID     string `validate:"required_with=AccountID"`
	AccessKeySecret string `validate:"required_with=AccountID"`
	Bucket          string `validate:"required_with=AccountID"`
	CatalogKey      string
}

// Config is the service configuration, read from the environment (and .env when present).
type Config struct {
	Port               int    `validate:"min=1,max=65535"`
	DatabaseURL        string `validate:"required"`
	PortalServiceToken string `validate:"required"`
	AllowedOrigins     []string
	LogMode            string `validate:"oneof=dev prod development production"`

	MemberSyncURL      string `validate:"omitempty,url"`
	MemberSyncPath     string
	MemberSyncInterval time.Duration `validate:"min=1s"`

	CacheRebuildInterval time.Duration `validate:"min=1m"`
	RosterConcurrency    int           `validate:"min=1,max=64"`

	R2 R2
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetDefault("PORT", 5300)
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("LOG_MODE", "dev")
	v.SetDefault("MEMBER_SYNC_PATH", "/api/v1/public/members")
	v.SetDefault("MEMBER_SYNC_INTERVAL", time.Minute)
	v.SetDefault("CACHE_REBUILD_INTERVAL", time.Hour)
	v.SetDefault("ROSTER_CONCURRENCY", 8)
	v.SetDefault("CATALOG_OBJECT_KEY", "catalog/badges.yaml")
	v.AutomaticEnv()
	return v
}

// Load reads .env if it exists, then the process environment, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromViper(newViper())
}

// FromViper builds a Config from an already-populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:                 v.GetInt("PORT"),
		DatabaseURL:          v.GetString("DATABASE_URL"),
		PortalServiceToken:   v.GetString("PORTAL_SERVICE_TOKEN"),
		AllowedOrigins:       splitList(v.GetString("ALLOWED_ORIGINS")),
		LogMode:              strings.ToLower(v.GetString("LOG_MODE")),
		MemberSyncURL:        v.GetString("MEMBER_SYNC_URL"),
		MemberSyncPath:       v.GetString("MEMBER_SYNC_PATH"),
		MemberSyncInterval:   v.GetDuration("MEMBER_SYNC_INTERVAL"),
		CacheRebuildInterval: v.GetDuration("CACHE_REBUILD_INTERVAL"),
		RosterConcurrency:    v.GetInt("ROSTER_CONCURRENCY"),
		R2: R2{
			AccountID:       v.GetString("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     v.GetString("R2_ACCESS_KEY_ID"),
			AccessKeySecret: v.GetString("R2_ACCESS_KEY_SECRET"),
			Bucket:          v.GetString("R2_BUCKET_NAME"),
			CatalogKey:      v.GetString("CATALOG_OBJECT_KEY"),
		},
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Addr is the listen address for fiber.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// R2Enabled reports whether catalog import from object storage is configured.
func (c *Config) R2Enabled() bool {
	return c.R2.AccountID != ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
