package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendXLSX  = "xlsx"
	BackendMySQL = "mysql"
)

type Config struct {
	HTTPAddr        string
	GRPCAddr        string
	StoreBackend    string
	XLSXPath        string
	MySQLDSN        string
	RedisAddr       string // empty: sessions kept in memory
	AMQPURL         string // empty: no activity fan-out
	Passcode        string
	PasscodeBcrypt  string
	WebhookSecret   string
	Location        *time.Location
	FlowIdleTimeout time.Duration
	DefaultOpenNote string
}

// Load reads .env (if present) and the environment. Missing secrets are
// an error; the caller aborts startup.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("[WARN] could not read .env: %v", err)
	}

	cfg := &Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:        getEnv("GRPC_ADDR", ":50051"),
		StoreBackend:    getEnv("STORE_BACKEND", BackendXLSX),
		XLSXPath:        getEnv("XLSX_PATH", "inventory.xlsx"),
		MySQLDSN:        getEnv("MYSQL_DSN", ""),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		AMQPURL:         getEnv("AMQP_URL", ""),
		Passcode:        getEnv("BOT_PASSCODE", ""),
		PasscodeBcrypt:  getEnv("BOT_PASSCODE_BCRYPT", ""),
		WebhookSecret:   getEnv("WEBHOOK_SECRET", ""),
		DefaultOpenNote: getEnv("DEFAULT_OPEN_NOTE", "Opened for singles"),
	}

	if cfg.Passcode == "" && cfg.PasscodeBcrypt == "" {
		return nil, errors.New("BOT_PASSCODE or BOT_PASSCODE_BCRYPT must be set")
	}
	// chat text starting with "/" is a command, never a passcode attempt
	if strings.HasPrefix(strings.TrimSpace(cfg.Passcode), "/") {
		return nil, errors.New(`BOT_PASSCODE must not start with "/"`)
	}
	if cfg.WebhookSecret == "" {
		return nil, errors.New("WEBHOOK_SECRET must be set")
	}

	switch cfg.StoreBackend {
	case BackendXLSX:
	case BackendMySQL:
		if cfg.MySQLDSN == "" {
			return nil, errors.New("MYSQL_DSN must be set when STORE_BACKEND=mysql")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q (want %s or %s)", cfg.StoreBackend, BackendXLSX, BackendMySQL)
	}

	tz := getEnv("BOT_TIMEZONE", "Asia/Singapore")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("BOT_TIMEZONE %q: %w", tz, err)
	}
	cfg.Location = loc

	timeout, err := time.ParseDuration(getEnv("FLOW_IDLE_TIMEOUT", "10m"))
	if err != nil {
		return nil, fmt.Errorf("FLOW_IDLE_TIMEOUT: %w", err)
	}
	cfg.FlowIdleTimeout = timeout

	if cfg.Passcode != "" && cfg.PasscodeBcrypt != "" {
		log.Println("[WARN] both BOT_PASSCODE and BOT_PASSCODE_BCRYPT set, using the bcrypt hash")
	}
	if len(cfg.WebhookSecret) < 16 {
		log.Println("[WARN] WEBHOOK_SECRET is shorter than 16 characters")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
