package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Source stage names accepted in SYNC_SOURCES.
const (
	SourceSheetsCSV  = "sheets_csv"
	SourceSheetsJSON = "sheets_json"
	SourceSheetsAPI  = "sheets_api"
	SourceBackend    = "backend"
	SourceDatabase   = "database"
	SourceFile       = "file"
	SourceMock       = "mock"
)

var knownSources = []string{
	SourceSheetsCSV, SourceSheetsJSON, SourceSheetsAPI, SourceBackend, SourceDatabase, SourceFile, SourceMock,
}

type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Log       LogConfig
	Tracing   TracingConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Sheets    SheetsConfig
	Backend   BackendConfig
	Sync      SyncConfig
	Clinic    ClinicConfig
	Auth      AuthConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Version     string
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig points at the practice-management database mirror. When
// Enabled is false the service runs on sheet and file sources only.
type DatabaseConfig struct {
	Enabled           bool
	Host              string
	Port              int
	Name              string
	User              string
	Password          string
	SSLMode           string
	MaxOpenConns      int
	MaxIdleConns      int
	ConnMaxLifetime   time.Duration
	ConnMaxIdleTime   time.Duration
	ConnectAttempts   int
	ConnectRetryDelay time.Duration
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Issuer          string
}

type LogConfig struct {
	Level      string
	Format     string
	OutputPath string
}

type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	SampleRate  float64
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         time.Duration
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// SheetsConfig locates the public appointment spreadsheet.
type SheetsConfig struct {
	SpreadsheetID string
	SheetName     string
	// APIKey is only needed by the sheets_api stage.
	APIKey      string
	DocsBaseURL string
	APIBaseURL  string
}

// BackendConfig points at the clinic database proxy that serves SQL rows over HTTP.
type BackendConfig struct {
	URL string
}

type SyncConfig struct {
	Sources         []string
	Interval        time.Duration
	StageTimeout    time.Duration
	CacheFile       string
	CacheMaxRows    int
	BreakerFailures uint32
	BreakerCooldown time.Duration
	// DatabaseWindow bounds how far back the database stage reads.
	DatabaseWindow time.Duration
	DatabaseLimit  int
}

// ClinicConfig holds the display names reported by health and sync-status.
type ClinicConfig struct {
	Server   string
	Database string
}

type UserSeed struct {
	Username string
	Password string
	Role     string
}

type AuthConfig struct {
	Users      []UserSeed
	BcryptCost int
}

func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "dentalsync"),
			Environment: getEnv("APP_ENV", "development"),
			Version:     getEnv("APP_VERSION", "0.0.0"),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 3001),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Enabled:           getEnvBool("DB_ENABLED", false),
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvInt("DB_PORT", 5432),
			Name:              getEnv("DB_NAME", "gelite"),
			User:              getEnv("DB_USER", "dentalsync"),
			Password:          getEnv("DB_PASSWORD", ""),
			SSLMode:           getEnv("DB_SSLMODE", "require"),
			MaxOpenConns:      getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:      getEnvInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime:   getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime:   getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second),
			ConnectAttempts:   getEnvInt("DB_CONNECT_ATTEMPTS", 3),
			ConnectRetryDelay: getEnvDuration("DB_CONNECT_RETRY_DELAY", 5*time.Second),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", ""),
			AccessTokenTTL:  getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
			RefreshTokenTTL: getEnvDuration("JWT_REFRESH_TTL", 7*24*time.Hour),
			Issuer:          getEnv("JWT_ISSUER", "dentalsync"),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			OutputPath: getEnv("LOG_OUTPUT", "stdout"),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvBool("TRACING_ENABLED", false),
			ServiceName: getEnv("TRACING_SERVICE_NAME", "dentalsync"),
			Endpoint:    getEnv("OTLP_ENDPOINT", "localhost:4318"),
			SampleRate:  getEnvFloat("TRACING_SAMPLE_RATE", 0.1),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:8081"}),
			AllowedMethods: getEnvSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "OPTIONS"}),
			AllowedHeaders: getEnvSlice("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type", "X-Request-ID"}),
			MaxAge:         getEnvDuration("CORS_MAX_AGE", 12*time.Hour),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvFloat("RATE_LIMIT_RPS", 20),
			BurstSize:         getEnvInt("RATE_LIMIT_BURST", 40),
		},
		Sheets: SheetsConfig{
			SpreadsheetID: getEnv("SHEETS_ID", "1MBDBHQ08XGuf5LxVHCFhHDagIazFkpBnxwqyEQIBJrQ"),
			SheetName:     getEnv("SHEETS_NAME", "Hoja 1"),
			APIKey:        getEnv("SHEETS_API_KEY", ""),
			DocsBaseURL:   getEnv("SHEETS_DOCS_BASE_URL", "https://docs.google.com"),
			APIBaseURL:    getEnv("SHEETS_API_BASE_URL", "https://sheets.googleapis.com"),
		},
		Backend: BackendConfig{
			URL: strings.TrimRight(getEnv("BACKEND_URL", ""), "/"),
		},
		Sync: SyncConfig{
			Sources:         getEnvSlice("SYNC_SOURCES", []string{SourceSheetsCSV, SourceSheetsJSON, SourceFile}),
			Interval:        getEnvDuration("SYNC_INTERVAL", 5*time.Minute),
			StageTimeout:    getEnvDuration("SYNC_STAGE_TIMEOUT", 15*time.Second),
			CacheFile:       getEnv("SYNC_CACHE_FILE", "appointments_data.json"),
			CacheMaxRows:    getEnvInt("SYNC_CACHE_MAX_ROWS", 10_000),
			BreakerFailures: uint32(getEnvInt("SYNC_BREAKER_FAILURES", 3)),
			BreakerCooldown: getEnvDuration("SYNC_BREAKER_COOLDOWN", 2*time.Minute),
			DatabaseWindow:  getEnvDuration("SYNC_DB_WINDOW", 60*24*time.Hour),
			DatabaseLimit:   getEnvInt("SYNC_DB_LIMIT", 200),
		},
		Clinic: ClinicConfig{
			Server:   getEnv("CLINIC_SERVER", `GABINETE2\INFOMED`),
			Database: getEnv("CLINIC_DATABASE", "GELITE"),
		},
		Auth: AuthConfig{
			Users:      parseUserSeeds(getEnv("AUTH_USERS", "")),
			BcryptCost: getEnvInt("AUTH_BCRYPT_COST", 12),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	var errs []string

	if cfg.JWT.Secret == "" {
		errs = append(errs, "JWT_SECRET is required")
	} else if len(cfg.JWT.Secret) < 32 && cfg.App.Environment == "production" {
		errs = append(errs, "JWT_SECRET must be at least 32 characters in production")
	}

	if cfg.Database.Enabled {
		if cfg.Database.Password == "" && cfg.App.Environment != "development" {
			errs = append(errs, "DB_PASSWORD is required in non-development environments")
		}
		if cfg.Database.SSLMode == "disable" && cfg.App.Environment == "production" {
			errs = append(errs, "DB_SSLMODE=disable is not allowed in production")
		}
		if cfg.Database.ConnectAttempts < 1 {
			errs = append(errs, "DB_CONNECT_ATTEMPTS must be at least 1")
		}
	}

	if cfg.Sync.Interval <= 0 {
		errs = append(errs, "SYNC_INTERVAL must be positive")
	}
	if cfg.Sync.StageTimeout <= 0 {
		errs = append(errs, "SYNC_STAGE_TIMEOUT must be positive")
	}

	for _, src := range cfg.Sync.Sources {
		if !slices.Contains(knownSources, src) {
			errs = append(errs, fmt.Sprintf("SYNC_SOURCES: unknown source %q", src))
			continue
		}
		switch src {
		case SourceSheetsCSV, SourceSheetsJSON:
			if cfg.Sheets.SpreadsheetID == "" {
				errs = append(errs, fmt.Sprintf("SHEETS_ID is required by source %q", src))
			}
		case SourceSheetsAPI:
			if cfg.Sheets.SpreadsheetID == "" || cfg.Sheets.APIKey == "" {
				errs = append(errs, "SHEETS_ID and SHEETS_API_KEY are required by source \"sheets_api\"")
			}
		case SourceBackend:
			if cfg.Backend.URL == "" {
				errs = append(errs, "BACKEND_URL is required by source \"backend\"")
			}
		case SourceDatabase:
			if !cfg.Database.Enabled {
				errs = append(errs, "DB_ENABLED=true is required by source \"database\"")
			}
		}
	}

	for _, u := range cfg.Auth.Users {
		if u.Role != "admin" && u.Role != "user" {
			errs = append(errs, fmt.Sprintf("AUTH_USERS: user %q has invalid role %q", u.Username, u.Role))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// parseUserSeeds reads "name:password[:role],..." entries. Role defaults to "user".
func parseUserSeeds(raw string) []UserSeed {
	var seeds []UserSeed
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		seed := UserSeed{Username: parts[0], Password: parts[1], Role: "user"}
		if len(parts) == 3 && parts[2] != "" {
			seed.Role = parts[2]
		}
		seeds = append(seeds, seed)
	}
	return seeds
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
