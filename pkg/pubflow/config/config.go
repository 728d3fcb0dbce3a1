// Package config builds a pubflow.Service from environment-driven server
// configuration.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pubflow/pubflow/pkg/pubflow"
	fsmedia "github.com/pubflow/pubflow/pkg/pubflow/media/fs"
	s3media "github.com/pubflow/pubflow/pkg/pubflow/media/s3"
	"github.com/pubflow/pubflow/pkg/pubflow/repo/memory"
	repopg "github.com/pubflow/pubflow/pkg/pubflow/repo/postgres"
)

// ServerConfig represents server configuration for the pubflow service
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"` // development, production, testing

	// Public site settings
	BaseURL   string `env:"BASE_URL" env-default:"http://localhost:8080"`
	OutputDir string `env:"OUTPUT_DIR" env-default:"./static"`
	Languages string `env:"LANGUAGES" env-default:"en"` // comma-separated, first is the default
	AppName   string `env:"APP_NAME" env-default:"pubflow"`

	// Database configuration. An empty or "memory" URL selects the
	// in-memory repository; a postgres:// URL selects Postgres.
	DatabaseURL string `env:"DATABASE_URL" env-default:""`
	DBSchema    string `env:"DB_SCHEMA" env-default:""`

	// Media storage configuration
	MediaBackend string `env:"MEDIA_BACKEND" env-default:"link"` // "link", "fs", "s3"
	Media        MediaConfig
	S3           S3Config

	// Notification configuration
	NotifyModerators bool       `env:"NOTIFY_MODERATORS" env-default:"true"`
	NotifyAuthors    bool       `env:"NOTIFY_AUTHORS" env-default:"true"`
	SMTP             SMTPConfig

	// Emitter tuning
	SitemapShardSize int `env:"SITEMAP_SHARD_SIZE" env-default:"0"`
	FeedLength       int `env:"FEED_LENGTH" env-default:"0"`

	// JWTSecret signs and verifies API tokens.
	JWTSecret string `env:"JWT_SECRET" env-default:""`
}

// MediaConfig configures the filesystem media backend.
type MediaConfig struct {
	BaseDir   string `env:"MEDIA_DIR" env-default:"./data/media"`
	URLPrefix string `env:"MEDIA_URL_PREFIX" env-default:""`
}

// S3Config configures the S3 media backend.
type S3Config struct {
	Endpoint        string `env:"AWS_S3_ENDPOINT" env-default:""`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID" env-default:""`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" env-default:""`
	Bucket          string `env:"AWS_S3_BUCKET" env-default:""`
	Region          string `env:"AWS_S3_REGION" env-default:"us-east-1"`
	UsePathStyle    bool   `env:"AWS_S3_USE_PATH_STYLE" env-default:"false"`
	URLPrefix       string `env:"AWS_S3_URL_PREFIX" env-default:""`
	KeyPrefix       string `env:"AWS_S3_KEY_PREFIX" env-default:"content"`
}

// SMTPConfig configures the notification mail transport. An empty address
// selects the logging mailer.
type SMTPConfig struct {
	Addr string `env:"SMTP_ADDR" env-default:""`
	From string `env:"MAIL_FROM" env-default:""`
}

// Load reads the configuration from the environment and validates it.
func Load() (*ServerConfig, error) {
	var cfg ServerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseURL != "" && c.DatabaseURL != "memory" &&
		!strings.HasPrefix(c.DatabaseURL, "postgres://") &&
		!strings.HasPrefix(c.DatabaseURL, "postgresql://") {
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", c.DatabaseURL)
	}

	switch c.MediaBackend {
	case "link":
	case "fs":
		if c.Media.URLPrefix == "" {
			return errors.New("MEDIA_URL_PREFIX is required for the fs media backend")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("AWS_S3_BUCKET is required for the s3 media backend")
		}
	default:
		return fmt.Errorf("unsupported media backend: %s", c.MediaBackend)
	}

	if len(c.SupportedLanguages()) == 0 {
		return errors.New("at least one language is required")
	}

	return nil
}

// SupportedLanguages returns the configured language list, default first.
func (c *ServerConfig) SupportedLanguages() []string {
	var out []string
	for _, l := range strings.Split(c.Languages, ",") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// BuildService creates a Service instance from the server configuration.
// The content type registry always comes from code, not the environment.
func (c *ServerConfig) BuildService(registry *pubflow.Registry, extra ...pubflow.Option) (pubflow.Service, error) {
	repo, err := c.buildRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}

	media, err := c.buildMediaStore()
	if err != nil {
		return nil, fmt.Errorf("failed to build media store: %w", err)
	}

	options := []pubflow.Option{
		pubflow.WithRepository(repo),
		pubflow.WithRegistry(registry),
		pubflow.WithMediaStore(media),
		pubflow.WithLanguages(c.SupportedLanguages()...),
		pubflow.WithBaseURL(strings.TrimSuffix(c.BaseURL, "/")),
		pubflow.WithOutputDir(c.OutputDir),
		pubflow.WithNotifications(c.NotifyModerators, c.NotifyAuthors),
		pubflow.WithMailIdentity(c.AppName, c.SMTP.From),
	}

	if c.SitemapShardSize > 0 {
		options = append(options, pubflow.WithSitemapShardSize(c.SitemapShardSize))
	}
	if c.FeedLength > 0 {
		options = append(options, pubflow.WithFeedLength(c.FeedLength))
	}
	if c.SMTP.Addr != "" {
		options = append(options, pubflow.WithMailer(&pubflow.SMTPMailer{Addr: c.SMTP.Addr}))
	}

	return pubflow.New(append(options, extra...)...)
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository() (pubflow.Repository, error) {
	if c.DatabaseURL == "" || c.DatabaseURL == "memory" {
		return memory.New(), nil
	}

	cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	schema := c.DBSchema
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if schema == "" {
			return nil
		}
		// set search_path for this session
		_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", schema))
		return err
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return repopg.NewWithPool(pool), nil
}

// buildMediaStore creates a MediaStore based on the configuration
func (c *ServerConfig) buildMediaStore() (pubflow.MediaStore, error) {
	switch c.MediaBackend {
	case "link":
		return pubflow.NewLinkMediaStore(), nil

	case "fs":
		return fsmedia.New(fsmedia.Config{
			BaseDir:   c.Media.BaseDir,
			URLPrefix: c.Media.URLPrefix,
		})

	case "s3":
		return s3media.New(s3media.Config{
			Region:          c.S3.Region,
			Bucket:          c.S3.Bucket,
			AccessKeyID:     c.S3.AccessKeyID,
			SecretAccessKey: c.S3.SecretAccessKey,
			Endpoint:        c.S3.Endpoint,
			UsePathStyle:    c.S3.UsePathStyle,
			URLPrefix:       c.S3.URLPrefix,
			KeyPrefix:       c.S3.KeyPrefix,
		})

	default:
		return nil, fmt.Errorf("unsupported media backend type: %s", c.MediaBackend)
	}
}

// PingPostgres verifies connectivity to Postgres and optionally sets
// search_path for the session. It fails if the schema (when provided) does
// not exist.
func PingPostgres(databaseURL, schema string) error {
	if databaseURL == "" {
		return errors.New("database_url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", schema))
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool: %w", err)
	}
	defer pool.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
