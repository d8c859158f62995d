package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// View store backends.
const (
	ViewStoreRedis  = "redis"
	ViewStoreMemory = "memory"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Backend    BackendConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Views      ViewsConfig
	References ReferencesConfig
	Export     ExportConfig
	Audit      AuditConfig
}

// BackendConfig points the gateway at the siswa REST backend.
type BackendConfig struct {
	BaseURL    string
	Timeout    time.Duration
	IDsTimeout time.Duration
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

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig verifies access tokens minted by the external auth service.
type JWTConfig struct {
	Enabled bool
	Secret  string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ViewsConfig controls where listing view state lives and for how long.
type ViewsConfig struct {
	Store           string
	TTL             time.Duration
	DefaultPageSize int
	MaxPageSize     int
	ActionTimeout   time.Duration
}

// ReferencesConfig tunes caching of dropdown reference lists.
type ReferencesConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// ExportConfig holds spreadsheet export defaults.
type ExportConfig struct {
	DefaultFormat string
	SheetName     string
}

// AuditConfig toggles persistence of bulk action outcomes.
type AuditConfig struct {
	Enabled    bool
	Workers    int
	MaxRetries int
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Backend = BackendConfig{
		BaseURL:    strings.TrimRight(v.GetString("BACKEND_BASE_URL"), "/"),
		Timeout:    parseDuration(v.GetString("BACKEND_TIMEOUT"), 15*time.Second),
		IDsTimeout: parseDuration(v.GetString("BACKEND_IDS_TIMEOUT"), 10*time.Second),
	}

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
		Enabled: v.GetBool("ENABLE_AUTH"),
		Secret:  v.GetString("JWT_SECRET"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	store := strings.ToLower(strings.TrimSpace(v.GetString("VIEW_STORE")))
	if store != ViewStoreRedis {
		store = ViewStoreMemory
	}
	pageSize := v.GetInt("VIEW_PAGE_SIZE")
	maxPageSize := v.GetInt("VIEW_MAX_PAGE_SIZE")
	if maxPageSize <= 0 {
		maxPageSize = 500
	}
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = 100
	}
	cfg.Views = ViewsConfig{
		Store:           store,
		TTL:             parseDuration(v.GetString("VIEW_TTL"), 2*time.Hour),
		DefaultPageSize: pageSize,
		MaxPageSize:     maxPageSize,
		ActionTimeout:   parseDuration(v.GetString("VIEW_ACTION_TIMEOUT"), 5*time.Minute),
	}

	cfg.References = ReferencesConfig{
		CacheEnabled: v.GetBool("ENABLE_REFERENCE_CACHE"),
		CacheTTL:     parseDuration(v.GetString("REFERENCE_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Export = ExportConfig{
		DefaultFormat: strings.ToLower(v.GetString("EXPORT_DEFAULT_FORMAT")),
		SheetName:     v.GetString("EXPORT_SHEET_NAME"),
	}

	cfg.Audit = AuditConfig{
		Enabled:    v.GetBool("ENABLE_AUDIT"),
		Workers:    v.GetInt("AUDIT_WORKERS"),
		MaxRetries: v.GetInt("AUDIT_MAX_RETRIES"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("BACKEND_BASE_URL", "http://localhost:3001")
	v.SetDefault("BACKEND_TIMEOUT", "15s")
	v.SetDefault("BACKEND_IDS_TIMEOUT", "10s")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "siswa_gateway")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 5)
	v.SetDefault("DB_MAX_IDLE_CONNS", 2)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ENABLE_AUTH", false)
	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("VIEW_STORE", ViewStoreMemory)
	v.SetDefault("VIEW_TTL", "2h")
	v.SetDefault("VIEW_PAGE_SIZE", 100)
	v.SetDefault("VIEW_MAX_PAGE_SIZE", 500)
	v.SetDefault("VIEW_ACTION_TIMEOUT", "5m")

	v.SetDefault("ENABLE_REFERENCE_CACHE", false)
	v.SetDefault("REFERENCE_CACHE_TTL", "10m")

	v.SetDefault("EXPORT_DEFAULT_FORMAT", "xlsx")
	v.SetDefault("EXPORT_SHEET_NAME", "Data Siswa")

	v.SetDefault("ENABLE_AUDIT", false)
	v.SetDefault("AUDIT_WORKERS", 1)
	v.SetDefault("AUDIT_MAX_RETRIES", 3)
}

// isMissingFile reports whether viper failed only because .env is absent.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
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
