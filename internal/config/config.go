// Package config provides functionality for managing configuration options
// for the application using command-line flags, a YAML config file and
// environment variables.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Options holds the configuration values for the application.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `yaml:"listen_addr" env:"SERVER_ADDRESS" env-default:"localhost:8080"`

	// DatabaseDSN holds the database connection string for the application.
	DatabaseDSN string `yaml:"database_dsn" env:"DATABASE_DSN"`

	// Config is the path to the config file.
	Config string `yaml:"-"`

	// LogLevel is the zap level name.
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `yaml:"tls_cert" env:"TLS_CERT"`
	TLSKey  string `yaml:"tls_key" env:"TLS_KEY"`

	// SecureCookies forces the Secure cookie attribute even behind a TLS-terminating proxy.
	SecureCookies bool `yaml:"secure_cookies" env:"SECURE_COOKIES"`

	// TrustProxy makes the server take the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy bool `yaml:"trust_proxy" env:"TRUST_PROXY"`

	// MetricsToken guards /metrics with a bearer token when set.
	MetricsToken string `yaml:"metrics_token" env:"METRICS_TOKEN"`

	// SiteURL is the public base URL of the site, encoded in the menu QR code.
	SiteURL string `yaml:"site_public_url" env:"SITE_PUBLIC_URL" env-default:"http://localhost:8080"`

	Session   SessionOptions   `yaml:"session" env-prefix:"SESSION_"`
	RateLimit RateLimitOptions `yaml:"login_rate_limit" env-prefix:"LOGIN_RATE_LIMIT_"`
	CORS      CORSOptions      `yaml:"cors" env-prefix:"CORS_"`
	Bootstrap BootstrapOptions `yaml:"bootstrap_admin" env-prefix:"BOOTSTRAP_ADMIN_"`
	Media     MediaOptions     `yaml:"media" env-prefix:"MEDIA_"`
	YouTube   YouTubeOptions   `yaml:"youtube" env-prefix:"YOUTUBE_"`
}

// SessionOptions configures the admin session lifetime.
type SessionOptions struct {
	// InactivityTimeout is the sliding window after which a session is rejected.
	// It is also the cookie Max-Age.
	InactivityTimeout time.Duration `yaml:"inactivity_timeout" env:"INACTIVITY_TIMEOUT" env-default:"30m"`
	// WarningWindow is how long before expiry the client starts warning.
	WarningWindow time.Duration `yaml:"warning_window" env:"WARNING_WINDOW" env-default:"5m"`
	// PurgeSchedule is a cron spec for deleting stale session rows. Empty disables the job.
	PurgeSchedule string `yaml:"purge_schedule" env:"PURGE_SCHEDULE"`
}

// RateLimitOptions configures the per-source login limiter.
type RateLimitOptions struct {
	Attempts int           `yaml:"attempts" env:"ATTEMPTS" env-default:"5"`
	Window   time.Duration `yaml:"window" env:"WINDOW" env-default:"15m"`
	MaxKeys  int           `yaml:"max_keys" env:"MAX_KEYS" env-default:"10000"`
}

// CORSOptions configures cross-origin access. A single "*" reflects any
// request origin back with credentials allowed.
type CORSOptions struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-default:"*"`
}

// ReflectAnyOrigin reports whether the wildcard reflection mode is configured.
func (c CORSOptions) ReflectAnyOrigin() bool {
	for _, o := range c.AllowedOrigins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

// BootstrapOptions seeds an admin account at startup when Password is set
// and no account with Username exists yet.
type BootstrapOptions struct {
	Username string `yaml:"username" env:"USERNAME" env-default:"admin"`
	Email    string `yaml:"email" env:"EMAIL"`
	Password string `yaml:"password" env:"PASSWORD"`
}

// MediaOptions configures S3-compatible storage for presigned uploads.
type MediaOptions struct {
	Bucket    string `yaml:"bucket" env:"BUCKET"`
	Region    string `yaml:"region" env:"REGION" env-default:"us-east-1"`
	Endpoint  string `yaml:"endpoint" env:"ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
	PublicURL string `yaml:"public_url" env:"PUBLIC_URL"`
	// UploadTTL bounds how long a presigned upload URL stays valid.
	UploadTTL time.Duration `yaml:"upload_ttl" env:"UPLOAD_TTL" env-default:"15m"`
}

// Enabled reports whether media uploads are configured.
func (m MediaOptions) Enabled() bool {
	return m.Bucket != ""
}

// YouTubeOptions configures the YouTube read-through. The API key itself is
// kept in the settings store.
type YouTubeOptions struct {
	ChannelID  string `yaml:"channel_id" env:"CHANNEL_ID"`
	BaseURL    string `yaml:"base_url" env:"BASE_URL" env-default:"https://www.googleapis.com/youtube/v3"`
	MaxResults int    `yaml:"max_results" env:"MAX_RESULTS" env-default:"12"`
}

// Parse parses the command-line flags, the config file and environment
// variables. It terminates the process when the configuration is invalid.
func Parse() *Options {
	options, err := Load(os.Args[1:])
	if err != nil {
		log.Fatalf("error while loading config: %v", err)
	}
	return options
}

// Load builds Options from defaults, the config file, environment variables
// and finally the flags explicitly present in args, in that order of precedence.
func Load(args []string) (*Options, error) {
	var (
		addr, dsn, path, level string
	)

	fs := flag.NewFlagSet("tavola", flag.ContinueOnError)
	fs.StringVar(&addr, "a", "", "run on ip:port server")
	fs.StringVar(&dsn, "d", "", "db address")
	fs.StringVar(&path, "config", "config.yaml", "path to config file")
	fs.StringVar(&path, "c", "config.yaml", "path to config file (shorthand)")
	fs.StringVar(&level, "l", "", "log level")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if configPath := os.Getenv("CONFIG"); configPath != "" {
		path = configPath
	}

	options := &Options{}
	if st, err := os.Stat(path); path != "" && err == nil && !st.IsDir() {
		if err := cleanenv.ReadConfig(path, options); err != nil {
			return nil, fmt.Errorf("error while parsing config file: %w", err)
		}
	} else if err := cleanenv.ReadEnv(options); err != nil {
		return nil, fmt.Errorf("error while reading environment: %w", err)
	}
	options.Config = path

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "a":
			options.Port = addr
		case "d":
			options.DatabaseDSN = dsn
		case "l":
			options.LogLevel = level
		}
	})

	normalize(options)
	if err := Validate(options); err != nil {
		return nil, err
	}
	return options, nil
}

func normalize(o *Options) {
	o.Port = strings.TrimSpace(o.Port)
	o.DatabaseDSN = strings.TrimSpace(o.DatabaseDSN)
	o.LogLevel = strings.ToLower(strings.TrimSpace(o.LogLevel))
	o.SiteURL = strings.TrimRight(strings.TrimSpace(o.SiteURL), "/")
	o.Bootstrap.Username = strings.TrimSpace(o.Bootstrap.Username)
	o.Session.PurgeSchedule = strings.TrimSpace(o.Session.PurgeSchedule)

	origins := o.CORS.AllowedOrigins[:0]
	for _, origin := range o.CORS.AllowedOrigins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			origins = append(origins, origin)
		}
	}
	o.CORS.AllowedOrigins = origins
}

// Validate rejects option combinations the server cannot run with.
func Validate(o *Options) error {
	var errs []error
	if o.Port == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if o.Session.InactivityTimeout <= 0 {
		errs = append(errs, errors.New("session.inactivity_timeout must be positive"))
	}
	if o.Session.WarningWindow < 0 || o.Session.WarningWindow >= o.Session.InactivityTimeout {
		errs = append(errs, errors.New("session.warning_window must be shorter than session.inactivity_timeout"))
	}
	if o.RateLimit.Attempts <= 0 || o.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("login_rate_limit.attempts and login_rate_limit.window must be positive"))
	}
	if (o.TLSCert == "") != (o.TLSKey == "") {
		errs = append(errs, errors.New("tls_cert and tls_key must be set together"))
	}
	if o.Bootstrap.Password != "" && o.Bootstrap.Username == "" {
		errs = append(errs, errors.New("bootstrap_admin.username is required with bootstrap_admin.password"))
	}
	return errors.Join(errs...)
}
