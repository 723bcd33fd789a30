package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerPort  string
	Environment string
	Version     string

	UpstreamSource      string // portal, xlsx-file or xlsx-minio
	XLSXSourcePath      string
	PortalBaseURL       string
	PortalLoginPath     string
	PortalTimetablePath string
	PortalUsername      string
	PortalPassword      string
	CaptchaAPIURL       string
	CaptchaAPIKey       string

	RequestTimeout time.Duration // REQUEST_TIMEOUT, milliseconds
	MaxRetries     int
	RetryDelay     time.Duration // RETRY_DELAY, milliseconds

	StoreBackend string // memory, sqlite, minio or redis
	SQLitePath   string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool
	MinIOObjectKey string

	RedisAddr      string
	RedisPassword  string
	RedisKeyPrefix string
	NotifyChannel  string // redis pub/sub channel for change events; empty disables

	Timezone       string
	DailyRefreshAt string // HH:MM; empty disables the daily trigger
	AllowedOrigins []string
}

func Load() *Config {
	useSSL, _ := strconv.ParseBool(getEnv("MINIO_USE_SSL", "false"))

	return &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		Version:     getEnv("APP_VERSION", "dev"),

		UpstreamSource:      strings.ToLower(getEnv("UPSTREAM_SOURCE", "portal")),
		XLSXSourcePath:      getEnv("XLSX_SOURCE_PATH", "timetable.xlsx"),
		PortalBaseURL:       getEnv("PORTAL_BASE_URL", "https://ums.example.edu"),
		PortalLoginPath:     getEnv("PORTAL_LOGIN_PATH", "/login"),
		PortalTimetablePath: getEnv("PORTAL_TIMETABLE_PATH", "/timetable"),
		PortalUsername:      getEnv("PORTAL_USERNAME", ""),
		PortalPassword:      getEnv("PORTAL_PASSWORD", ""),
		CaptchaAPIURL:       getEnv("CAPTCHA_API_URL", ""),
		CaptchaAPIKey:       getEnv("CAPTCHA_API_KEY", ""),

		RequestTimeout: getEnvMillis("REQUEST_TIMEOUT", 15*time.Second),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		RetryDelay:     getEnvMillis("RETRY_DELAY", 2*time.Second),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", "sqlite")),
		SQLitePath:   getEnv("SQLITE_PATH", "data/timetable.db"),

		MinIOEndpoint:  getEnv("MINIO_ENDPOINT", "minio:9000"),
		MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinIOSecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
		MinIOBucket:    getEnv("MINIO_BUCKET", "timetable-cache"),
		MinIOUseSSL:    useSSL,
		MinIOObjectKey: getEnv("MINIO_OBJECT_KEY", "timetable/current.json"),

		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", "timetable"),
		NotifyChannel:  getEnv("NOTIFY_CHANNEL", ""),

		Timezone:       getEnv("TIMEZONE", "Local"),
		DailyRefreshAt: getEnv("DAILY_REFRESH_AT", ""),
		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
	}
}

// Location resolves Timezone, falling back to the process zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvMillis(key string, defaultValue time.Duration) time.Duration {
	if ms, err := strconv.Atoi(os.Getenv(key)); err == nil && ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
