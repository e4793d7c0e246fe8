package postgres

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_EveryUpHasADown(t *testing.T) {
	src, err := iofs.New(migrations, "migrations")
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	version, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var versions []uint
	for {
		versions = append(versions, version)

		up, _, err := src.ReadUp(version)
		require.NoError(t, err, "up migration %d", version)
		_ = up.Close()
		down, _, err := src.ReadDown(version)
		require.NoError(t, err, "down migration %d", version)
		_ = down.Close()

		next, err := src.Next(version)
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		require.NoError(t, err)
		version = next
	}
	assert.Equal(t, []uint{1, 2}, versions)
}
