package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const PROD_STRING = "prod"

// Config holds all application configuration loaded from environment.
type Config struct {
	IsProduction bool
	ProdOrigins  string
	HTTPAddr     string
	DBDSN        string
	DBMaxConns   int
	JWTSecret    string

	// Campus time zone used to decide when a booking is overdue.
	Location *time.Location

	LogMode string
	LogFile string

	StoragePath string
	QRSize      int

	OverdueScanSpec      string
	NotifyOnCreate       bool
	StrictUnitAllocation bool

	SMSWorkers        int
	SemaphoreAPIKey   string
	SemaphoreSender   string
	SemaphoreEndpoint string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
}

// Load loads configuration from .env (optional) and environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		zap.L().Debug("no .env file loaded", zap.Error(err))
	}

	cfg := &Config{}
	var err error

	// Production origin (default: empty)
	cfg.ProdOrigins = getEnv("PROD_ORIGINS", "")

	// Application environment (default: dev)
	appEnvStr := getEnv("APP_ENV", "dev")
	cfg.IsProduction = appEnvStr == PROD_STRING

	// HTTP listen address (default: :8080)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	// Database DSN is required
	cfg.DBDSN = os.Getenv("DB_DSN")
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required")
	}

	cfg.DBMaxConns, err = getEnvAsInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	// JWT secret is required to verify session tokens
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	cfg.Location, err = time.LoadLocation(getEnv("TIMEZONE", "Asia/Manila"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg.LogMode = getEnv("LOG_MODE", "development")
	if cfg.IsProduction && os.Getenv("LOG_MODE") == "" {
		cfg.LogMode = "production"
	}
	cfg.LogFile = getEnv("LOG_FILE", "")

	cfg.StoragePath = getEnv("STORAGE_PATH", "./storage")
	cfg.QRSize, err = getEnvAsInt("QR_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("invalid QR_SIZE: %w", err)
	}

	cfg.OverdueScanSpec = getEnv("OVERDUE_SCAN_SPEC", "@every 5m")

	cfg.NotifyOnCreate, err = getEnvAsBool("NOTIFY_ON_CREATE", true)
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_ON_CREATE: %w", err)
	}
	cfg.StrictUnitAllocation, err = getEnvAsBool("STRICT_UNIT_ALLOCATION", false)
	if err != nil {
		return nil, fmt.Errorf("invalid STRICT_UNIT_ALLOCATION: %w", err)
	}

	cfg.SMSWorkers, err = getEnvAsInt("SMS_WORKERS", 4)
	if err != nil {
		return nil, fmt.Errorf("invalid SMS_WORKERS: %w", err)
	}
	cfg.SemaphoreAPIKey = getEnv("SEMAPHORE_API_KEY", "")
	cfg.SemaphoreSender = getEnv("SEMAPHORE_SENDER", "")
	cfg.SemaphoreEndpoint = getEnv("SEMAPHORE_ENDPOINT", "https://api.semaphore.co/api/v4/messages")

	cfg.SMTPHost = getEnv("SMTP_HOST", "")
	cfg.SMTPPort, err = getEnvAsInt("SMTP_PORT", 587)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	cfg.SMTPUser = getEnv("SMTP_USER", "")
	cfg.SMTPPassword = getEnv("SMTP_PASSWORD", "")
	cfg.SMTPFrom = getEnv("SMTP_FROM", cfg.SMTPUser)

	return cfg, nil
}

// getEnv returns the value of the environment variable if set,
// otherwise returns the provided default value.
func getEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer.
// It returns the default value if the variable is not set.
// It returns an error if the variable is set but is not a valid integer.
func getEnvAsInt(key string, defaultValue int) (int, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("env %s value %q is not a valid integer: %w", key, valStr, err)
	}

	return val, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return false, fmt.Errorf("env %s value %q is not a valid boolean: %w", key, valStr, err)
	}

	return val, nil
}
