package config

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseDSNSetsReadCommittedPerConnection(t *testing.T) {
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "wholesale")

	cfg, err := mysql.ParseDSN(databaseDSN())
	require.NoError(t, err)
	assert.Equal(t, "tcp", cfg.Net)
	assert.Equal(t, "127.0.0.1:3306", cfg.Addr)
	assert.Equal(t, "wholesale", cfg.DBName)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, "'READ-COMMITTED'", cfg.Params["transaction_isolation"])
}

func TestDatabaseDSNUsesCloudSQLSocket(t *testing.T) {
	t.Setenv("DB_HOST", "/cloudsql/project:region:instance")
	t.Setenv("DB_NAME", "wholesale")

	cfg, err := mysql.ParseDSN(databaseDSN())
	require.NoError(t, err)
	assert.Equal(t, "unix", cfg.Net)
	assert.Equal(t, "/cloudsql/project:region:instance", cfg.Addr)
	assert.Equal(t, "'READ-COMMITTED'", cfg.Params["transaction_isolation"])
}
