package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectSQLite(t *testing.T) {
	db, err := Connect(&Config{Type: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", db.Dialector.Name())
}

func TestConnectRequiresDSN(t *testing.T) {
	_, err := Connect(&Config{Type: "sqlite"})
	assert.Error(t, err)

	_, err = Connect(nil)
	assert.Error(t, err)
}

func TestConnectUnsupportedType(t *testing.T) {
	_, err := Connect(&Config{Type: "oracle", DSN: "whatever"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")
}

func TestConnectInvalidMySQLDSN(t *testing.T) {
	_, err := Connect(&Config{Type: "mysql", DSN: "not a dsn"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid mysql DSN")
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "")
	t.Setenv("DATABASE_DSN", "")
	cfg := ConfigFromEnv()
	assert.Equal(t, "postgres", cfg.Type)
	assert.Empty(t, cfg.DSN)

	t.Setenv("DATABASE_TYPE", "mysql")
	t.Setenv("DATABASE_DSN", "user:pass@tcp(db:3306)/inau?parseTime=true")
	cfg = ConfigFromEnv()
	assert.Equal(t, "mysql", cfg.Type)
	assert.Equal(t, "user:pass@tcp(db:3306)/inau?parseTime=true", cfg.DSN)
}
