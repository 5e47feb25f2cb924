package migrations

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := fs.ReadDir(files, dir)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	assert.Equal(t, []string{
		"00001_reference_data.sql",
		"00002_billing.sql",
		"00003_audit_logs.sql",
	}, names)

	for _, name := range names {
		body, err := fs.ReadFile(files, dir+"/"+name)
		require.NoError(t, err)
		assert.True(t, strings.Contains(string(body), "-- +goose Up"), name)
		assert.True(t, strings.Contains(string(body), "-- +goose Down"), name)
	}
}

func TestRunRequiresDB(t *testing.T) {
	err := Up(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db is required")
}
