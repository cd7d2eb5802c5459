package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPostgres(t *testing.T) {
	assert.True(t, IsPostgres("postgres://u:p@localhost/db"))
	assert.True(t, IsPostgres("postgresql://localhost/db"))
	assert.False(t, IsPostgres("relay.db"))
	assert.False(t, IsPostgres("data/postgres.db"))
}

func TestNew_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "relay.db")

	db, err := New(context.Background(), path)
	require.NoError(t, err)
	defer db.Close()

	assert.Nil(t, db.Pool)
	assert.NoError(t, db.Ping(context.Background()))

	_, err = os.Stat(filepath.Dir(path))
	assert.NoError(t, err, "parent dir is created")
}

func TestNew_EmptyURL(t *testing.T) {
	_, err := New(context.Background(), "")
	assert.Error(t, err)
}

func TestNew_Postgres(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") == "" {
		t.Skip("Skipping integration test; set INTEGRATION_TEST=1 to run")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if !IsPostgres(dbURL) {
		t.Skip("DATABASE_URL is not a postgres url")
	}

	db, err := New(context.Background(), dbURL)
	require.NoError(t, err)
	defer db.Close()

	assert.NotNil(t, db.Pool)
	assert.NoError(t, db.Ping(context.Background()))
}
