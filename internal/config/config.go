package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Datastore
	DBAdapter     string
	DBFile        string
	SQLiteFile    string
	MigrationsDir string
	// PostgreSQL connection settings
	PostgresDSN      string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Refresh token store
	RefreshStore  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TokenSecret switches tokens to HS256 when set.
	TokenSecret        string
	RateLimitPerMinute int
	CORSOrigins        []string
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// LoadDotEnv loads path into the environment if the file exists. Variables
// already set win.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return godotenv.Load(path)
}

// Production reports whether ENV names a production deployment.
func (c *Config) Production() bool {
	env := strings.ToLower(c.Env)
	return env == "production" || env == "prod"
}

// BuildPostgresDSN constructs a PostgreSQL DSN from individual components or returns the provided DSN
func (c *Config) BuildPostgresDSN() (string, error) {
	if c.PostgresDSN != "" {
		return c.PostgresDSN, nil
	}

	if c.PostgresHost == "" {
		return "", errors.New("POSTGRES_HOST or POSTGRES_DSN must be set")
	}
	if c.PostgresUser == "" {
		return "", errors.New("POSTGRES_USER must be set")
	}
	if c.PostgresDB == "" {
		return "", errors.New("POSTGRES_DB must be set")
	}

	port := c.PostgresPort
	if port == "" {
		port = "5432"
	}
	sslMode := c.PostgresSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		c.PostgresHost, port, c.PostgresUser, c.PostgresDB, sslMode)
	if c.PostgresPassword != "" {
		dsn += " password=" + c.PostgresPassword
	}
	return dsn, nil
}

func New() (*Config, error) {
	c := &Config{
		Port:          getenv("PORT", "3000"),
		Env:           getenv("ENV", getenv("NODE_ENV", "development")),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		DBAdapter:     strings.ToLower(getenv("DB_ADAPTER", "file")),
		DBFile:        getenv("DB_FILE", "./data/db.json"),
		SQLiteFile:    getenv("SQLITE_FILE", "./data/db.sqlite"),
		MigrationsDir: getenv("MIGRATIONS_DIR", "./migrations"),
		// PostgreSQL settings
		PostgresDSN:      getenv("POSTGRES_DSN", ""),
		PostgresHost:     getenv("POSTGRES_HOST", getenv("DB_HOST", "localhost")),
		PostgresPort:     getenv("POSTGRES_PORT", getenv("DB_PORT", "5432")),
		PostgresUser:     getenv("POSTGRES_USER", getenv("DB_USER", "mock")),
		PostgresPassword: getenv("POSTGRES_PASSWORD", getenv("DB_PASSWORD", "")),
		PostgresDB:       getenv("POSTGRES_DB", getenv("DB_NAME", "mockserver")),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", getenv("DB_SSLMODE", "disable")),

		RefreshStore:  strings.ToLower(getenv("REFRESH_STORE", "memory")),
		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		TokenSecret: getenv("TOKEN_SECRET", ""),
		CORSOrigins: splitList(getenv("CORS_ORIGINS", "")),
	}

	var err error
	if c.RedisDB, err = getenvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if c.RateLimitPerMinute, err = getenvInt("RATE_LIMIT_PER_MINUTE", 0); err != nil {
		return nil, err
	}
	if c.RateLimitPerMinute < 0 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %d", c.RateLimitPerMinute)
	}

	switch c.DBAdapter {
	case "file":
		if c.DBFile == "" {
			return nil, errors.New("DB_FILE must be set when DB_ADAPTER=file")
		}
	case "sqlite":
		if c.SQLiteFile == "" {
			return nil, errors.New("SQLITE_FILE must be set when DB_ADAPTER=sqlite")
		}
	case "postgres":
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			return nil, fmt.Errorf("postgres configuration error: %w", err)
		}
		c.PostgresDSN = dsn
	case "memory":
	default:
		return nil, fmt.Errorf("unsupported DB_ADAPTER: %s (supported: file, memory, sqlite, postgres)", c.DBAdapter)
	}

	switch c.RefreshStore {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("unsupported REFRESH_STORE: %s (supported: memory, redis)", c.RefreshStore)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid LOG_LEVEL: %s", c.LogLevel)
	}

	if _, err := strconv.Atoi(c.Port); err != nil {
		return nil, fmt.Errorf("invalid PORT: %s", c.Port)
	}

	return c, nil
}
