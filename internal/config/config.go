package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// セッションバックエンドの種類。
const (
	SessionBackendMemory   = "memory"
	SessionBackendSQLite   = "sqlite"
	SessionBackendPostgres = "postgres"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Gateway
	AuthEndpointURL        string
	SummaryEndpointURL     string
	SummaryGateway         string // graphql | webhook
	GatewayAuthSecret      string
	GatewayTimeout         time.Duration
	GatewayMaxResponseSize int64
	GatewaySSRFGuard       bool

	// Session
	SessionBackend string // memory | sqlite | postgres
	DatabaseURL    string
	SQLitePath     string

	// Client / View
	ClientCookieMaxAge int
	ViewIdleTimeout    time.Duration

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitSummary int
	RateLimitAuth    int

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合や、値が取りうる範囲外の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.AuthEndpointURL = os.Getenv("AUTH_ENDPOINT_URL")
	if cfg.AuthEndpointURL == "" {
		missing = append(missing, "AUTH_ENDPOINT_URL")
	}

	cfg.SummaryEndpointURL = os.Getenv("SUMMARY_ENDPOINT_URL")
	if cfg.SummaryEndpointURL == "" {
		missing = append(missing, "SUMMARY_ENDPOINT_URL")
	}

	cfg.SessionBackend = strings.ToLower(getEnvString("SESSION_BACKEND", SessionBackendMemory))
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.SessionBackend == SessionBackendPostgres && cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	switch cfg.SessionBackend {
	case SessionBackendMemory, SessionBackendSQLite, SessionBackendPostgres:
	default:
		return nil, fmt.Errorf("unsupported SESSION_BACKEND %q (want memory, sqlite or postgres)", cfg.SessionBackend)
	}

	// Optional fields with defaults
	cfg.SummaryGateway = strings.ToLower(getEnvString("SUMMARY_GATEWAY", "graphql"))
	cfg.GatewayAuthSecret = os.Getenv("GATEWAY_AUTH_SECRET")
	cfg.GatewayTimeout = getEnvDuration("GATEWAY_TIMEOUT", 30*time.Second)
	cfg.GatewayMaxResponseSize = getEnvInt64("GATEWAY_MAX_RESPONSE_SIZE", 1048576)
	cfg.GatewaySSRFGuard = getEnvBool("GATEWAY_SSRF_GUARD", false)
	cfg.SQLitePath = getEnvString("SQLITE_PATH", "decodetube.db")
	cfg.ClientCookieMaxAge = getEnvInt("CLIENT_COOKIE_MAX_AGE", 31536000)
	cfg.ViewIdleTimeout = getEnvDuration("VIEW_IDLE_TIMEOUT", 30*time.Minute)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSummary = getEnvInt("RATE_LIMIT_SUMMARY", 20)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.ServerPort)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}
