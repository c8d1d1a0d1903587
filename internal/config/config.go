package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	Debug       bool

	// Warehouse (ClickHouse) connection and query surface.
	ClickHouseHost     string
	ClickHousePort     string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseDatabase string
	WarehouseTable     string
	MediaSource        string

	// Outbound postback endpoint. The base URL carries a secret path segment.
	PostbackBaseURL string
	Retries         int
	RetryDelay      time.Duration
	RequestTimeout  time.Duration

	// Trial confirmation policy.
	GracePeriod time.Duration

	WatermarkFile string

	DBType     string
	DBPath     string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// RunInterval <= 0 means one cycle per invocation (external trigger).
	RunInterval  time.Duration
	CycleTimeout time.Duration

	// MetricsAddr exposes /metrics when set; useful in interval mode only.
	MetricsAddr string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "convrelay"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		Debug:       getenvBool("DEBUG", false),

		ClickHouseHost:     getenv("CLICKHOUSE_HOST", "localhost"),
		ClickHousePort:     getenv("CLICKHOUSE_PORT", "9000"),
		ClickHouseUser:     getenv("CLICKHOUSE_USER", "default"),
		ClickHousePassword: getenv("CLICKHOUSE_PASS", ""),
		ClickHouseDatabase: getenv("CLICKHOUSE_DATABASE", "analytics"),
		WarehouseTable:     getenv("WAREHOUSE_TABLE", "appsflyer_export"),
		MediaSource:        getenv("MEDIA_SOURCE", "Popunder"),

		PostbackBaseURL: strings.TrimSpace(getenv("POSTBACK_BASE_URL", "")),
		Retries:         getenvInt("POSTBACK_RETRIES", 10),
		RetryDelay:      getenvDuration("POSTBACK_RETRY_DELAY", 6*time.Second),
		RequestTimeout:  getenvDuration("POSTBACK_REQUEST_TIMEOUT", 30*time.Second),

		GracePeriod: getenvDuration("TRIAL_GRACE_PERIOD", time.Hour),

		WatermarkFile: getenv("WATERMARK_FILE", "var_storage.json"),

		DBType:     getenv("DATABASE_TYPE", "sqlite"),
		DBPath:     getenv("DATABASE_PATH", "cache.db"),
		DBHost:     getenv("DATABASE_HOST", "localhost"),
		DBPort:     getenv("DATABASE_PORT", "5432"),
		DBName:     getenv("DATABASE_NAME", "convrelay"),
		DBUser:     getenv("DATABASE_USER", "convrelay"),
		DBPassword: getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:  getenv("DATABASE_SSLMODE", "disable"),

		RunInterval:  getenvDuration("SCHEDULER_INTERVAL", 0),
		CycleTimeout: getenvDuration("CYCLE_TIMEOUT", 5*time.Minute),

		MetricsAddr: getenv("METRICS_ADDR", ""),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
