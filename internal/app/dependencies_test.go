package app

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestMigrationURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@db:5432/toko?sslmode=disable", MigrationURL("postgres://u:p@db:5432/toko?sslmode=disable"))
	require.Equal(t, "pgx5://db/toko", MigrationURL("postgresql://db/toko"))
	require.Equal(t, "pgx5://db/toko", MigrationURL("pgx5://db/toko"))
}

func TestTaskLoggerWritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	l := TaskLogger{Logger: zerolog.New(&buf)}
	l.Warn("queue ", "imports", " paused")
	require.Contains(t, buf.String(), `"level":"warn"`)
	require.Contains(t, buf.String(), `"message":"queue imports paused"`)
}

func TestOpenRejectsBadURLs(t *testing.T) {
	_, err := OpenDatabase(context.Background(), "://nope", "test")
	require.ErrorContains(t, err, "parse database config")

	_, err = OpenRedis(context.Background(), "nope://", false, zerolog.Nop())
	require.ErrorContains(t, err, "parse redis url")

	_, err = NewTaskClient("nope://")
	require.Error(t, err)
}

func TestNewMigratorLoadsEmbeddedSource(t *testing.T) {
	_, err := NewMigrator("unknown://db")
	require.ErrorContains(t, err, "create migrator")
}

func TestCloseNil(t *testing.T) {
	var d *Dependencies
	require.NoError(t, d.Close())
	require.NoError(t, (&Dependencies{}).Close())
}
