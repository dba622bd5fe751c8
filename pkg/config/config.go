package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Advisor  AdvisorConfig
	Actions  ActionsConfig
	Sessions SessionsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// PrivilegedDatabaseConfig carries the elevated credentials used by the
// action executor. Kept separate from the request-path pool on purpose.
type PrivilegedDatabaseConfig struct {
	User     string
	Password string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AdvisorConfig tunes the answer pipeline.
type AdvisorConfig struct {
	GeneratorModel  string
	GeneratorAPIKey string
	MinResponseTime time.Duration
	MaxRowDetail    int
	HistoryLimit    int
}

// ActionsConfig governs the pending-action workflow.
type ActionsConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
	Privileged    PrivilegedDatabaseConfig
}

// SessionsConfig tunes conversation storage.
type SessionsConfig struct {
	CacheTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Advisor = AdvisorConfig{
		GeneratorModel:  v.GetString("ADVISOR_GENERATOR_MODEL"),
		GeneratorAPIKey: v.GetString("ADVISOR_GENERATOR_API_KEY"),
		MinResponseTime: parseDuration(v.GetString("ADVISOR_MIN_RESPONSE_TIME"), 500*time.Millisecond),
		MaxRowDetail:    v.GetInt("ADVISOR_MAX_ROW_DETAIL"),
		HistoryLimit:    v.GetInt("ADVISOR_HISTORY_LIMIT"),
	}

	cfg.Actions = ActionsConfig{
		TTL:           parseDuration(v.GetString("ACTIONS_TTL"), 5*time.Minute),
		SweepInterval: parseDuration(v.GetString("ACTIONS_SWEEP_INTERVAL"), 10*time.Minute),
		Privileged: PrivilegedDatabaseConfig{
			User:     v.GetString("ACTIONS_PRIVILEGED_DB_USER"),
			Password: v.GetString("ACTIONS_PRIVILEGED_DB_PASSWORD"),
		},
	}

	cfg.Sessions = SessionsConfig{
		CacheTTL: parseDuration(v.GetString("SESSIONS_CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "school_advisor")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ADVISOR_GENERATOR_MODEL", "gemini-2.0-flash")
	v.SetDefault("ADVISOR_GENERATOR_API_KEY", "")
	v.SetDefault("ADVISOR_MIN_RESPONSE_TIME", "500ms")
	v.SetDefault("ADVISOR_MAX_ROW_DETAIL", 20)
	v.SetDefault("ADVISOR_HISTORY_LIMIT", 20)

	v.SetDefault("ACTIONS_TTL", "5m")
	v.SetDefault("ACTIONS_SWEEP_INTERVAL", "10m")
	v.SetDefault("ACTIONS_PRIVILEGED_DB_USER", "")
	v.SetDefault("ACTIONS_PRIVILEGED_DB_PASSWORD", "")

	v.SetDefault("SESSIONS_CACHE_TTL", "5m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
