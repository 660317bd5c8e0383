package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_ADAPTER", "REFRESH_STORE", "LOG_LEVEL", "RATE_LIMIT_PER_MINUTE", "CORS_ORIGINS", "TOKEN_SECRET"} {
		t.Setenv(k, "")
	}

	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, "3000", c.Port)
	assert.Equal(t, "file", c.DBAdapter)
	assert.Equal(t, "./data/db.json", c.DBFile)
	assert.Equal(t, "memory", c.RefreshStore)
	assert.Equal(t, 0, c.RateLimitPerMinute)
	assert.Empty(t, c.CORSOrigins)
	assert.Empty(t, c.TokenSecret)
}

func TestNew_Overrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("DB_ADAPTER", "SQLite")
	t.Setenv("SQLITE_FILE", "/tmp/x.sqlite")
	t.Setenv("REFRESH_STORE", "redis")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "120")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,")

	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", c.DBAdapter)
	assert.Equal(t, 2, c.RedisDB)
	assert.Equal(t, 120, c.RateLimitPerMinute)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, c.CORSOrigins)
}

func TestNew_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"port":       {"PORT", "abc"},
		"adapter":    {"DB_ADAPTER", "mongo"},
		"store":      {"REFRESH_STORE", "etcd"},
		"level":      {"LOG_LEVEL", "loud"},
		"rate":       {"RATE_LIMIT_PER_MINUTE", "-1"},
		"rate parse": {"RATE_LIMIT_PER_MINUTE", "many"},
		"redis db":   {"REDIS_DB", "x"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := New()
			assert.Error(t, err)
		})
	}
}

func TestBuildPostgresDSN(t *testing.T) {
	c := &Config{PostgresHost: "db", PostgresUser: "u", PostgresDB: "d", PostgresPassword: "p"}
	dsn, err := c.BuildPostgresDSN()
	require.NoError(t, err)
	assert.Equal(t, "host=db port=5432 user=u dbname=d sslmode=disable password=p", dsn)

	c = &Config{PostgresDSN: "postgres://x"}
	dsn, err = c.BuildPostgresDSN()
	require.NoError(t, err)
	assert.Equal(t, "postgres://x", dsn)

	_, err = (&Config{}).BuildPostgresDSN()
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MOCKSERVER_TEST_KEY=from-file\n"), 0o600))
	t.Setenv("MOCKSERVER_TEST_KEY", "")
	os.Unsetenv("MOCKSERVER_TEST_KEY")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("MOCKSERVER_TEST_KEY"))
}
