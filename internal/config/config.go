// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Env       string
	Server    ServerConfig
	Log       LogConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	SMTP      SMTPConfig
	Storage   StorageConfig
	Redis     RedisConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host         string
	Port         int
	BaseURL      string
	MaxBodySize  int      // in KB
	HPPWhitelist []string // query params allowed to repeat
	TLSCertFile  string
	TLSKeyFile   string
}

// TLSEnabled reports whether the server terminates TLS itself.
func (c ServerConfig) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

type AuthConfig struct { //nolint:govet // fieldalignment not critical
	JWTSecret       string
	JWTExpiresIn    time.Duration
	CookieExpiresIn int // days
	CookieName      string
	BcryptCost      int
}

type RateLimitConfig struct {
	Max    int
	Window time.Duration
}

type CORSConfig struct {
	Origins []string
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// Enabled reports whether outbound mail is configured.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

type StorageConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// Enabled reports whether presigned uploads can be issued.
func (c StorageConfig) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type RedisConfig struct {
	URL string
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Env: strings.ToLower(cmd.String("env")),
		Server: ServerConfig{
			Host:         cmd.String("host"),
			Port:         int(cmd.Int("port")),
			BaseURL:      cmd.String("base-url"),
			MaxBodySize:  int(cmd.Int("max-body-size")),
			HPPWhitelist: cmd.StringSlice("hpp-whitelist"),
			TLSCertFile:  cmd.String("tls-cert"),
			TLSKeyFile:   cmd.String("tls-key"),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		Auth: AuthConfig{
			JWTSecret:       cmd.String("jwt-secret"),
			JWTExpiresIn:    cmd.Duration("jwt-expires-in"),
			CookieExpiresIn: int(cmd.Int("jwt-cookie-expires-in")),
			CookieName:      cmd.String("cookie-name"),
			BcryptCost:      int(cmd.Int("bcrypt-cost")),
		},
		RateLimit: RateLimitConfig{
			Max:    int(cmd.Int("rate-limit-max")),
			Window: cmd.Duration("rate-limit-window"),
		},
		CORS: CORSConfig{
			Origins: cmd.StringSlice("cors-origins"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		Storage: StorageConfig{
			Endpoint:  cmd.String("s3-endpoint"),
			Region:    cmd.String("s3-region"),
			Bucket:    cmd.String("s3-bucket"),
			AccessKey: cmd.String("s3-access-key"),
			SecretKey: cmd.String("s3-secret-key"),
		},
		Redis: RedisConfig{
			URL: cmd.String("redis-url"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}

	return cfg
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Validate checks the configuration before the server starts.
// Missing secrets are fatal in production only.
func (c *Config) Validate() error {
	var errs []error

	switch c.Env {
	case EnvDevelopment, EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("env must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env))
	}

	if c.Auth.JWTExpiresIn <= 0 {
		errs = append(errs, errors.New("jwt-expires-in must be positive"))
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate-limit-max and rate-limit-window must be positive"))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, errors.New("max-body-size must be positive"))
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		errs = append(errs, errors.New("tls-cert and tls-key must be set together"))
	}

	if c.IsProduction() {
		required := map[string]string{
			"jwt-secret":    c.Auth.JWTSecret,
			"database-dsn":  c.Database.DSN,
			"s3-bucket":     c.Storage.Bucket,
			"s3-access-key": c.Storage.AccessKey,
			"s3-secret-key": c.Storage.SecretKey,
		}
		for _, name := range []string{"jwt-secret", "database-dsn", "s3-bucket", "s3-access-key", "s3-secret-key"} {
			if required[name] == "" {
				errs = append(errs, fmt.Errorf("%s is required in production", name))
			}
		}
		if len(c.CORS.Origins) == 0 || c.allowsAnyOrigin() {
			errs = append(errs, errors.New("cors-origins must list explicit origins in production"))
		}
	}

	return errors.Join(errs...)
}

// Warnings returns non-fatal configuration findings worth logging at startup.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		warnings = append(warnings, "jwt-secret is shorter than 32 characters")
	}
	if c.IsProduction() {
		for _, origin := range c.CORS.Origins {
			if strings.HasPrefix(origin, "http://") {
				warnings = append(warnings, fmt.Sprintf("cors origin %s does not use https", origin))
			}
		}
		if !c.SMTP.Enabled() {
			warnings = append(warnings, "smtp is not configured, password reset mails will not be delivered")
		}
	}
	return warnings
}

func (c *Config) allowsAnyOrigin() bool {
	for _, origin := range c.CORS.Origins {
		if origin == "*" {
			return true
		}
	}
	return false
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	scheme, defaultPort := "http", 80
	if cfg.Server.TLSEnabled() {
		scheme, defaultPort = "https", 443
	}
	if cfg.Server.Port == defaultPort {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, cfg.Server.Port)
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "env",
			Value:   EnvDevelopment,
			Usage:   "Runtime environment (development, production)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("APP_ENV"), toml.TOML("env", configFile)),
		},
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   3001,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Public base URL used in e-mail links",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BASE_URL"), toml.TOML("server.base_url", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   10,
			Usage:   "Maximum request body size in KB",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_BODY_SIZE"), toml.TOML("server.max_body_size", configFile)),
		},
		&cli.StringSliceFlag{
			Name:    "hpp-whitelist",
			Value:   []string{"tags", "category"},
			Usage:   "Query parameters that may appear more than once",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HPP_WHITELIST"), toml.TOML("server.hpp_whitelist", configFile)),
		},
		&cli.StringFlag{
			Name:    "tls-cert",
			Usage:   "TLS certificate file (PEM); serve HTTPS when set with tls-key",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TLS_CERT"), toml.TOML("server.tls_cert", configFile)),
		},
		&cli.StringFlag{
			Name:    "tls-key",
			Usage:   "TLS private key file (PEM)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TLS_KEY"), toml.TOML("server.tls_key", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/app.db",
			Usage:   "Database DSN (SQLite path or postgres:// URL)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
		&cli.StringFlag{
			Name:    "jwt-secret",
			Usage:   "HMAC secret for session tokens (auto-generated if empty in development)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("JWT_SECRET"), toml.TOML("auth.jwt_secret", configFile)),
		},
		&cli.DurationFlag{
			Name:    "jwt-expires-in",
			Value:   30 * 24 * time.Hour,
			Usage:   "Session token lifetime",
			Sources: cli.NewValueSourceChain(cli.EnvVar("JWT_EXPIRES_IN"), toml.TOML("auth.jwt_expires_in", configFile)),
		},
		&cli.IntFlag{
			Name:    "jwt-cookie-expires-in",
			Value:   30,
			Usage:   "Session cookie lifetime in days",
			Sources: cli.NewValueSourceChain(cli.EnvVar("JWT_COOKIE_EXPIRES_IN"), toml.TOML("auth.cookie_expires_in", configFile)),
		},
		&cli.StringFlag{
			Name:    "cookie-name",
			Value:   "jwt",
			Usage:   "Session cookie name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("COOKIE_NAME"), toml.TOML("auth.cookie_name", configFile)),
		},
		&cli.IntFlag{
			Name:    "bcrypt-cost",
			Value:   12,
			Usage:   "bcrypt work factor for password hashes",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BCRYPT_COST"), toml.TOML("auth.bcrypt_cost", configFile)),
		},
		&cli.IntFlag{
			Name:    "rate-limit-max",
			Value:   100,
			Usage:   "Requests per client IP and window on /api",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RATE_LIMIT_MAX"), toml.TOML("rate_limit.max", configFile)),
		},
		&cli.DurationFlag{
			Name:    "rate-limit-window",
			Value:   time.Hour,
			Usage:   "Rate limit window",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RATE_LIMIT_WINDOW"), toml.TOML("rate_limit.window", configFile)),
		},
		&cli.StringSliceFlag{
			Name:    "cors-origins",
			Value:   []string{"*"},
			Usage:   "Allowed CORS origins",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CORS_ORIGINS"), toml.TOML("cors.origins", configFile)),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP server host (mail disabled if empty)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_HOST"), toml.TOML("smtp.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP server port",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PORT"), toml.TOML("smtp.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_USERNAME"), toml.TOML("smtp.username", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PASSWORD"), toml.TOML("smtp.password", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Sender address",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM"), toml.TOML("smtp.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Value:   "Infographic Editor",
			Usage:   "Sender display name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM_NAME"), toml.TOML("smtp.from_name", configFile)),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_TLS"), toml.TOML("smtp.tls", configFile)),
		},
		// Object storage flags
		&cli.StringFlag{
			Name:    "s3-endpoint",
			Usage:   "S3-compatible endpoint (empty for AWS)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("S3_ENDPOINT"), toml.TOML("storage.endpoint", configFile)),
		},
		&cli.StringFlag{
			Name:    "s3-region",
			Value:   "us-east-1",
			Usage:   "S3 region",
			Sources: cli.NewValueSourceChain(cli.EnvVar("S3_REGION"), toml.TOML("storage.region", configFile)),
		},
		&cli.StringFlag{
			Name:    "s3-bucket",
			Usage:   "Bucket for infographic images",
			Sources: cli.NewValueSourceChain(cli.EnvVar("S3_BUCKET"), toml.TOML("storage.bucket", configFile)),
		},
		&cli.StringFlag{
			Name:    "s3-access-key",
			Usage:   "S3 access key",
			Sources: cli.NewValueSourceChain(cli.EnvVar("S3_ACCESS_KEY"), toml.TOML("storage.access_key", configFile)),
		},
		&cli.StringFlag{
			Name:    "s3-secret-key",
			Usage:   "S3 secret key",
			Sources: cli.NewValueSourceChain(cli.EnvVar("S3_SECRET_KEY"), toml.TOML("storage.secret_key", configFile)),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for a shared rate limit store (in-memory if empty)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REDIS_URL"), toml.TOML("redis.url", configFile)),
		},
	}
}
