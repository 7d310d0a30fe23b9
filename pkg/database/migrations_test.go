package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationsAreEmbedded(t *testing.T) {
	found, err := migrationSource().FindMigrations()
	require.NoError(t, err)
	require.Len(t, found, 2)
	require.Equal(t, "001_init.sql", found[0].Id)

	for _, m := range found {
		require.NotEmpty(t, m.Up, m.Id)
		require.NotEmpty(t, m.Down, m.Id)
	}
}
