package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// セッションの保存先バックエンド
const (
	SessionBackendFile   = "file"
	SessionBackendRedis  = "redis"
	SessionBackendMemory = "memory"
)

// DefaultAPIBaseURL はAPI_BASE_URL未設定時の接続先。
const DefaultAPIBaseURL = "http://localhost:8000"

// Config はクライアント全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Backend
	APIBaseURL     string
	RequestTimeout time.Duration

	// Rate Limit（クライアント側の送信レート）
	RateLimitRPS   float64
	RateLimitBurst int

	// Session
	SessionBackend string
	SessionDir     string
	RedisURL       string

	// OAuth return listener
	CallbackAddr string
	CallbackPath string

	// Logging
	LogLevel string
}

// LoadDotEnv は.envファイルを読み込み、未設定の環境変数だけを補完する。
// ファイルが存在しない場合は何もしない。
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.APIBaseURL = strings.TrimRight(getEnvString("API_BASE_URL", getEnvString("VITE_API_BASE_URL", DefaultAPIBaseURL)), "/")
	if err := validateBaseURL(cfg.APIBaseURL); err != nil {
		return nil, err
	}

	cfg.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", 30*time.Second)
	cfg.RateLimitRPS = getEnvFloat("RATE_LIMIT_RPS", 5)
	cfg.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)

	cfg.SessionBackend = strings.ToLower(getEnvString("SESSION_BACKEND", SessionBackendFile))
	cfg.SessionDir = getEnvString("SESSION_DIR", defaultSessionDir())
	cfg.RedisURL = getEnvString("REDIS_URL", "")

	switch cfg.SessionBackend {
	case SessionBackendFile, SessionBackendMemory:
	case SessionBackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when SESSION_BACKEND=redis")
		}
	default:
		return nil, fmt.Errorf("unsupported SESSION_BACKEND: %q (allowed: file, redis, memory)", cfg.SessionBackend)
	}

	cfg.CallbackAddr = getEnvString("CALLBACK_ADDR", "localhost:5173")
	cfg.CallbackPath = getEnvString("CALLBACK_PATH", "/dashboard/data-sources")
	if !strings.HasPrefix(cfg.CallbackPath, "/") {
		cfg.CallbackPath = "/" + cfg.CallbackPath
	}

	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

// validateBaseURL はAPIの接続先がhttp/httpsの絶対URLであることを検証する。
func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid API_BASE_URL %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid API_BASE_URL %q: must be an absolute http(s) URL", raw)
	}
	return nil
}

// defaultSessionDir はユーザー設定ディレクトリ配下のセッション保存先を返す。
func defaultSessionDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".sbadash"
	}
	return filepath.Join(dir, "sbadash")
}

func getEnvString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
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
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
