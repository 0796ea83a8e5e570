package migrate

import (
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/txguard/migrations"
)

func TestEmbeddedMigrations_AreSequentialAndReversible(t *testing.T) {
	t.Parallel()

	files, err := fs.Glob(migrations.FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for i, name := range files {
		require.True(t, strings.HasPrefix(name, fmt.Sprintf("%05d_", i+1)), name)

		body, err := fs.ReadFile(migrations.FS, name)
		require.NoError(t, err)
		require.Contains(t, string(body), "-- +goose Up", name)
		require.Contains(t, string(body), "-- +goose Down", name)
	}
}

func TestEmbeddedMigrations_CoverTables(t *testing.T) {
	t.Parallel()

	var all strings.Builder
	files, err := fs.Glob(migrations.FS, "*.sql")
	require.NoError(t, err)
	for _, name := range files {
		body, err := fs.ReadFile(migrations.FS, name)
		require.NoError(t, err)
		all.Write(body)
	}
	for _, table := range []string{"users", "payment_cards", "attempt_limiter"} {
		require.Contains(t, all.String(), "CREATE TABLE IF NOT EXISTS "+table)
	}
	require.NotContains(t, all.String(), "cvv")
}
