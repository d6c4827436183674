package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the gateway and the Mini App core.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Telegram TelegramConfig
	MiniApp  MiniAppConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Output string
}

// AuthConfig defines dashboard authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	DefaultUsername       string
	DefaultPassword       string
	CookieName            string
	CookieSecure          bool
	MaxLoginAttempts      int
	MaxAccountAttempts    int
	LoginWindowSeconds    int
}

// TelegramConfig holds bot credentials used to validate Mini App init data.
type TelegramConfig struct {
	BotToken            string
	InitDataMaxAgeHours int
	MiniAppTokenTTLMins int
}

// MiniAppConfig configures the client-side identity core.
type MiniAppConfig struct {
	APIBaseURL           string
	SessionKey           string
	SessionTTLMinutes    int
	StorageKind          string
	StoragePath          string
	ExitURL              string
	InitDelayMillis      int
	RedirectDelayMillis  int
	FingerprintTimeoutMs int
	DeviceID             string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "bot-admin-gateway"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			DefaultUsername:       getEnv("AUTH_DEFAULT_USERNAME", "admin"),
			DefaultPassword:       os.Getenv("AUTH_DEFAULT_PASSWORD"),
			CookieName:            getEnv("AUTH_COOKIE_NAME", "admin_session"),
			CookieSecure:          getEnvAsBool("AUTH_COOKIE_SECURE", false),
			MaxLoginAttempts:      getEnvAsInt("AUTH_MAX_LOGIN_ATTEMPTS", 5),
			MaxAccountAttempts:    getEnvAsInt("AUTH_MAX_ACCOUNT_LOGIN_ATTEMPTS", 10),
			LoginWindowSeconds:    getEnvAsInt("AUTH_LOGIN_WINDOW_SECONDS", 900),
		},
		Telegram: TelegramConfig{
			BotToken:            os.Getenv("TELEGRAM_BOT_TOKEN"),
			InitDataMaxAgeHours: getEnvAsInt("TELEGRAM_INIT_DATA_MAX_AGE_HOURS", 24),
			MiniAppTokenTTLMins: getEnvAsInt("TELEGRAM_MINI_APP_TOKEN_TTL_MINUTES", 120),
		},
		MiniApp: MiniAppConfig{
			APIBaseURL:           getEnv("MINI_APP_API_BASE_URL", "http://127.0.0.1:8080"),
			SessionKey:           getEnv("MINI_APP_SESSION_KEY", "telegram_session"),
			SessionTTLMinutes:    getEnvAsInt("MINI_APP_SESSION_TTL_MINUTES", 120),
			StorageKind:          getEnv("MINI_APP_STORAGE", "file"),
			StoragePath:          getEnv("MINI_APP_STORAGE_PATH", ".miniapp-storage.json"),
			ExitURL:              getEnv("MINI_APP_EXIT_URL", "https://t.me"),
			InitDelayMillis:      getEnvAsInt("MINI_APP_INIT_DELAY_MS", 100),
			RedirectDelayMillis:  getEnvAsInt("MINI_APP_REDIRECT_DELAY_MS", 1000),
			FingerprintTimeoutMs: getEnvAsInt("MINI_APP_FINGERPRINT_TIMEOUT_MS", 3000),
			DeviceID:             getEnv("MINI_APP_DEVICE_ID", ""),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// LoginWindow returns the window failed login attempts are counted in.
func (a AuthConfig) LoginWindow() time.Duration {
	return time.Duration(a.LoginWindowSeconds) * time.Second
}

// InitDataMaxAge returns how old a Mini App auth_date may be. Zero disables the check.
func (t TelegramConfig) InitDataMaxAge() time.Duration {
	return time.Duration(t.InitDataMaxAgeHours) * time.Hour
}

// SessionTTL returns the local session lifetime.
func (m MiniAppConfig) SessionTTL() time.Duration {
	return time.Duration(m.SessionTTLMinutes) * time.Minute
}

// InitDelay returns the pause before the handshake adapter probes the host.
func (m MiniAppConfig) InitDelay() time.Duration {
	return time.Duration(m.InitDelayMillis) * time.Millisecond
}

// RedirectDelay returns the pause before the expired-session redirect.
func (m MiniAppConfig) RedirectDelay() time.Duration {
	return time.Duration(m.RedirectDelayMillis) * time.Millisecond
}

// FingerprintTimeout bounds the primary fingerprint collection.
func (m MiniAppConfig) FingerprintTimeout() time.Duration {
	return time.Duration(m.FingerprintTimeoutMs) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
