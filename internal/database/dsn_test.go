package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "voice",
		Password: "secret",
		Name:     "voiceclone",
		Host:     "db.internal",
		Port:     5433,
	})
	require.NoError(t, err)
	require.Contains(t, dsn, "host=db.internal")
	require.Contains(t, dsn, "port=5433")
	require.Contains(t, dsn, "user=voice")
	require.Contains(t, dsn, "dbname=voiceclone")
	require.Contains(t, dsn, "password=secret")
	require.Contains(t, dsn, "sslmode=disable")
}

func TestBuildPostgresDSNRequiresUserAndName(t *testing.T) {
	_, err := buildPostgresDSN(Config{User: "voice"})
	require.Error(t, err)
}

func TestBuildPostgresDSNPrefersExplicitDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{DSN: "host=custom"})
	require.NoError(t, err)
	require.Equal(t, "host=custom", dsn)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User:     "voice",
		Password: "secret",
		Name:     "voiceclone",
	})
	require.NoError(t, err)
	require.Contains(t, dsn, "voice:secret@tcp(127.0.0.1:3306)/voiceclone")
	require.Contains(t, dsn, "charset=utf8mb4")
	require.Contains(t, dsn, "parseTime=True")
}

func TestBuildMySQLDSNOptionsOverride(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User:    "voice",
		Name:    "voiceclone",
		Options: map[string]string{"loc": "UTC"},
	})
	require.NoError(t, err)
	require.Contains(t, dsn, "loc=UTC")
}
