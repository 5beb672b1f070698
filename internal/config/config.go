package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrInvalid is returned when a loaded value is out of range.
var ErrInvalid = errors.New("invalid configuration")

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName  string `env:"APP_NAME" envDefault:"OTP-MD"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	Port     string `env:"PORT" envDefault:"3000"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// SessionDir holds creds.json and the local device database.
	SessionDir  string `env:"SESSION_DIR" envDefault:"session"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	OTPTTL           time.Duration `env:"OTP_TTL" envDefault:"5m"`
	OTPSweepInterval time.Duration `env:"OTP_SWEEP_INTERVAL" envDefault:"1m"`
	SendOTPRateLimit int           `env:"SEND_OTP_RATE_LIMIT" envDefault:"5"`
	SiteURL          string        `env:"OTP_SITE_URL"`
	OTPSubtitle      string        `env:"OTP_SUBTITLE"`
	OTPFooter        string        `env:"OTP_FOOTER"`

	ReconnectDelay time.Duration `env:"RECONNECT_DELAY" envDefault:"5s"`
	AdminRecipient string        `env:"ADMIN_RECIPIENT"`
	AdminMessage   string        `env:"ADMIN_MESSAGE"`
	DeviceName     string        `env:"DEVICE_NAME" envDefault:"OTP-MD"`
	PrintQR        bool          `env:"PRINT_QR" envDefault:"true"`

	ShutdownPeriod time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads a .env file when present, then populates a Config from the environment.
func Load() (Config, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()
	return Parse()
}

// Parse populates a Config from the current environment only.
func Parse() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if cfg.OTPTTL <= 0 {
		return Config{}, fmt.Errorf("%w: OTP_TTL must be positive", ErrInvalid)
	}
	if cfg.ReconnectDelay <= 0 {
		return Config{}, fmt.Errorf("%w: RECONNECT_DELAY must be positive", ErrInvalid)
	}
	if cfg.SessionDir == "" {
		return Config{}, fmt.Errorf("%w: SESSION_DIR must not be empty", ErrInvalid)
	}
	if cfg.SiteURL == "" {
		cfg.SiteURL = fmt.Sprintf("http://localhost%s/", cfg.Address())
	}
	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the app runs in a local development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
