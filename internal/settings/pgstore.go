package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGStore reads the settings table.
type PGStore struct {
	DB Querier
}

// Load returns every key/value row.
func (s PGStore) Load(ctx context.Context) (map[string]string, error) {
	if s.DB == nil {
		return nil, errors.New("settings: database not configured")
	}
	rows, err := s.DB.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	values, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) ([2]string, error) {
		var kv [2]string
		err := row.Scan(&kv[0], &kv[1])
		return kv, err
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(values))
	for _, kv := range values {
		out[kv[0]] = kv[1]
	}
	return out, nil
}
