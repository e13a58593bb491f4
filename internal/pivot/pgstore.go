package pivot

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx, so the store runs
// inside whatever transaction the caller holds.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGStore implements Store against PostgreSQL.
type PGStore struct {
	DB DBTX
}

// NewPGStore constructs a PGStore.
func NewPGStore(db DBTX) *PGStore {
	return &PGStore{DB: db}
}

// LoadChildKeys returns the key column of every row linked to parentID.
func (s *PGStore) LoadChildKeys(ctx context.Context, parentID string, target Target) ([]string, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	where, args := whereClause(target, parentID)
	query := fmt.Sprintf("SELECT %s::text FROM %s WHERE %s",
		ident(target.KeyColumn), tableIdent(target.Table), where)
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// DeleteRows removes the rows of parentID whose key is in keys.
func (s *PGStore) DeleteRows(ctx context.Context, parentID string, target Target, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := target.Validate(); err != nil {
		return err
	}
	where, args := whereClause(target, parentID)
	args = append(args, keys)
	query := fmt.Sprintf("DELETE FROM %s WHERE %s AND %s = ANY($%d::%s[])",
		tableIdent(target.Table), where, ident(target.KeyColumn), len(args), target.keyType())
	_, err := s.DB.Exec(ctx, query, args...)
	return err
}

// InsertChildren links keys to parentID, filling the condition columns with
// their filter values. Existing links are left untouched.
func (s *PGStore) InsertChildren(ctx context.Context, parentID string, target Target, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := target.Validate(); err != nil {
		return err
	}
	columns := []string{ident(target.ParentColumn), ident(target.KeyColumn)}
	fixed := []any{parentID}
	for _, c := range target.Conditions {
		columns = append(columns, ident(c.Column))
		fixed = append(fixed, c.Value)
	}

	batch := &pgx.Batch{}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
		tableIdent(target.Table), strings.Join(columns, ", "), placeholders(len(columns)))
	for _, key := range keys {
		args := make([]any, 0, len(columns))
		args = append(args, fixed[0], key)
		args = append(args, fixed[1:]...)
		batch.Queue(query, args...)
	}
	return s.sendBatch(ctx, batch)
}

func (s *PGStore) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	sender, ok := s.DB.(interface {
		SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	})
	if !ok {
		for _, q := range batch.QueuedQueries {
			if _, err := s.DB.Exec(ctx, q.SQL, q.Arguments...); err != nil {
				return err
			}
		}
		return nil
	}
	results := sender.SendBatch(ctx, batch)
	for range batch.QueuedQueries {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return err
		}
	}
	return results.Close()
}

func whereClause(target Target, parentID string) (string, []any) {
	parts := []string{ident(target.ParentColumn) + " = $1::" + target.parentType()}
	args := []any{parentID}
	for _, c := range target.Conditions {
		args = append(args, c.Value)
		parts = append(parts, fmt.Sprintf("%s = $%d", ident(c.Column), len(args)))
	}
	return strings.Join(parts, " AND "), args
}

func placeholders(n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(out, ", ")
}

func ident(name string) string {
	return pgx.Identifier{strings.TrimSpace(name)}.Sanitize()
}

func tableIdent(name string) string {
	return pgx.Identifier(strings.Split(strings.TrimSpace(name), ".")).Sanitize()
}
