// Package config loads the csc-portal runtime configuration from the
// environment, an optional .env file and an optional TOML file.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed version
var version string

//go:embed name
var name string

type LogLevel string

const (
	Debug  LogLevel = "debug"
	Info   LogLevel = "info"
	Notice LogLevel = "notice"
	Warn   LogLevel = "warn"
	Error  LogLevel = "error"
)

func GetVersion() string {
	return strings.TrimSpace(version)
}

func GetName() string {
	return strings.TrimSpace(name)
}

func GetLogLevel() LogLevel {
	if IsDebug() {
		return Debug
	}
	logLevel := os.Getenv("CSC_LOG_LEVEL")
	if logLevel == "" {
		return Info
	}
	return LogLevel(logLevel)
}

func IsDebug() bool {
	return os.Getenv("CSC_DEBUG") == "true"
}

func GetLogFolder() string {
	logFolderPath := os.Getenv("CSC_LOG_FOLDER")
	if logFolderPath == "" {
		logFolderPath = "/var/log"
	}
	return logFolderPath
}

// Config is the full runtime configuration.
type Config struct {
	Web      WebConfig      `json:"web" toml:"web" envPrefix:"WEB_"`
	Database DatabaseConfig `json:"database" toml:"database" envPrefix:"DB_"`
	Payment  PaymentConfig  `json:"payment" toml:"payment" envPrefix:"PAYMENT_"`
	Relay    RelayConfig    `json:"relay" toml:"relay" envPrefix:"RELAY_"`
	Telegram TelegramConfig `json:"telegram" toml:"telegram" envPrefix:"TELEGRAM_"`
	Job      JobConfig      `json:"job" toml:"job" envPrefix:"JOB_"`
	Rate     RateConfig     `json:"rate" toml:"rate" envPrefix:"RATE_"`
}

// WebConfig contains HTTP server parameters.
type WebConfig struct {
	Listen        string `json:"listen" toml:"listen" env:"LISTEN" envDefault:""`
	Port          int    `json:"port" toml:"port" env:"PORT" envDefault:"3000"`
	CertFile      string `json:"certFile" toml:"certFile" env:"CERT_FILE"`
	KeyFile       string `json:"keyFile" toml:"keyFile" env:"KEY_FILE"`
	PublicDir     string `json:"publicDir" toml:"publicDir" env:"PUBLIC_DIR" envDefault:"public"`
	Domain        string `json:"domain" toml:"domain" env:"DOMAIN"`
	SessionSecret string `json:"sessionSecret" toml:"sessionSecret" env:"SESSION_SECRET" envDefault:"csc-portal-dev-secret"`
	SessionMaxAge int    `json:"sessionMaxAge" toml:"sessionMaxAge" env:"SESSION_MAX_AGE" envDefault:"1440"` // minutes
}

// PaymentConfig selects the payment claim verifier and order parameters.
type PaymentConfig struct {
	Verifier          string `json:"verifier" toml:"verifier" env:"VERIFIER" envDefault:"none"` // none | hmac | yookassa
	Currency          string `json:"currency" toml:"currency" env:"CURRENCY" envDefault:"INR"`
	HMACSecret        string `json:"hmacSecret" toml:"hmacSecret" env:"HMAC_SECRET"`
	YooKassaAccountID string `json:"yookassaAccountId" toml:"yookassaAccountId" env:"YOOKASSA_ACCOUNT_ID"`
	YooKassaSecretKey string `json:"yookassaSecretKey" toml:"yookassaSecretKey" env:"YOOKASSA_SECRET_KEY"`
	YooKassaReturnURL string `json:"yookassaReturnUrl" toml:"yookassaReturnUrl" env:"YOOKASSA_RETURN_URL" envDefault:"/"`
}

// RelayConfig tunes the call room relay.
type RelayConfig struct {
	RoomCapacity int  `json:"roomCapacity" toml:"roomCapacity" env:"ROOM_CAPACITY" envDefault:"2"`
	NotifyLeave  bool `json:"notifyLeave" toml:"notifyLeave" env:"NOTIFY_LEAVE" envDefault:"false"`
	RequirePaid  bool `json:"requirePaid" toml:"requirePaid" env:"REQUIRE_PAID" envDefault:"false"`
	SendBuffer   int  `json:"sendBuffer" toml:"sendBuffer" env:"SEND_BUFFER" envDefault:"64"`
}

// TelegramConfig enables operator notifications when both fields are set.
type TelegramConfig struct {
	Token  string `json:"token" toml:"token" env:"TOKEN"`
	ChatID int64  `json:"chatId" toml:"chatId" env:"CHAT_ID"`
}

// Enabled reports whether operator notifications should be sent.
func (t TelegramConfig) Enabled() bool {
	return t.Token != "" && t.ChatID != 0
}

// JobConfig holds cron specs for background jobs. Empty disables a job.
type JobConfig struct {
	PendingReport string `json:"pendingReport" toml:"pendingReport" env:"PENDING_REPORT" envDefault:"@hourly"`
	Checkpoint    string `json:"checkpoint" toml:"checkpoint" env:"CHECKPOINT" envDefault:"@every 5m"`
}

// RateConfig limits register/login attempts per client IP.
type RateConfig struct {
	PerSecond float64 `json:"perSecond" toml:"perSecond" env:"PER_SECOND" envDefault:"5"`
	Burst     int     `json:"burst" toml:"burst" env:"BURST" envDefault:"10"`
}

// Load reads .env (if present), parses CSC_* environment variables and then
// overlays the TOML file at path when path is not empty.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "CSC_"}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	if err := cfg.Database.ValidateConfig(); err != nil {
		return nil, err
	}
	if cfg.Relay.RoomCapacity < 1 {
		return nil, fmt.Errorf("relay room capacity must be positive")
	}
	switch cfg.Payment.Verifier {
	case "none", "":
		cfg.Payment.Verifier = "none"
	case "hmac":
		if cfg.Payment.HMACSecret == "" {
			return nil, fmt.Errorf("hmac verifier requires CSC_PAYMENT_HMAC_SECRET")
		}
	case "yookassa":
		if cfg.Payment.YooKassaAccountID == "" || cfg.Payment.YooKassaSecretKey == "" {
			return nil, fmt.Errorf("yookassa verifier requires account id and secret key")
		}
	default:
		return nil, fmt.Errorf("unsupported payment verifier: %s", cfg.Payment.Verifier)
	}

	return cfg, nil
}

// Masked returns a copy of the configuration with secrets blanked out.
func (c Config) Masked() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "******"
	}
	c.Web.SessionSecret = mask(c.Web.SessionSecret)
	c.Database.Postgres.Password = mask(c.Database.Postgres.Password)
	c.Database.Redis.Password = mask(c.Database.Redis.Password)
	c.Payment.HMACSecret = mask(c.Payment.HMACSecret)
	c.Payment.YooKassaSecretKey = mask(c.Payment.YooKassaSecretKey)
	c.Telegram.Token = mask(c.Telegram.Token)
	return c
}
