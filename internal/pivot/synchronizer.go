package pivot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/toko-commerce/internal/obs"
)

// Condition is an extra equality filter applied to every read and delete.
type Condition struct {
	Column string
	Value  any
}

// Target names a child table and the columns linking its rows to a parent.
// ParentType and KeyType are the SQL types of those columns; parameters are
// cast to them so the columns stay indexable. Empty means text.
type Target struct {
	Table        string
	ParentColumn string
	ParentType   string
	KeyColumn    string
	KeyType      string
	Conditions   []Condition
}

// Validate checks that the identifiers needed to build statements are present.
func (t Target) Validate() error {
	if strings.TrimSpace(t.Table) == "" || strings.TrimSpace(t.ParentColumn) == "" || strings.TrimSpace(t.KeyColumn) == "" {
		return errors.New("pivot: target requires table, parent column and key column")
	}
	for _, c := range t.Conditions {
		if strings.TrimSpace(c.Column) == "" {
			return fmt.Errorf("pivot: empty condition column on %s", t.Table)
		}
	}
	for _, typ := range []string{t.ParentType, t.KeyType} {
		if !validSQLType(typ) {
			return fmt.Errorf("pivot: invalid column type %q on %s", typ, t.Table)
		}
	}
	return nil
}

func (t Target) parentType() string { return sqlType(t.ParentType) }

func (t Target) keyType() string { return sqlType(t.KeyType) }

func sqlType(typ string) string {
	if typ == "" {
		return "text"
	}
	return typ
}

func validSQLType(typ string) bool {
	for _, r := range typ {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}

// Store reads and deletes child rows.
type Store interface {
	LoadChildKeys(ctx context.Context, parentID string, target Target) ([]string, error)
	DeleteRows(ctx context.Context, parentID string, target Target, keys []string) error
}

// StorageError wraps a failed read or delete.
type StorageError struct {
	Op    string
	Table string
	Err   error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("pivot %s %s: %v", e.Op, e.Table, e.Err)
}

// Unwrap exposes the driver error.
func (e *StorageError) Unwrap() error { return e.Err }

// Synchronizer deletes obsolete child rows and reports which submitted keys are
// new. It neither opens transactions nor inserts rows: both belong to the caller.
//
// Two callers synchronizing the same parent concurrently race; the last write wins.
type Synchronizer struct {
	Store  Store
	Logger zerolog.Logger
}

// Synchronize reconciles submitted against the rows stored for parentID in target.
// A failed read or delete aborts immediately; rows already deleted stay deleted
// unless the caller's transaction rolls back.
func (s Synchronizer) Synchronize(ctx context.Context, parentID string, target Target, submitted []string) (ChangeSet[string], error) {
	if s.Store == nil {
		return ChangeSet[string]{}, errors.New("pivot: store not configured")
	}
	if err := target.Validate(); err != nil {
		return ChangeSet[string]{}, err
	}

	ctx, span := otel.Tracer("pivot").Start(ctx, "pivot.synchronize")
	defer span.End()
	span.SetAttributes(
		attribute.String("pivot.table", target.Table),
		attribute.String("pivot.parent_id", parentID),
		attribute.Int("pivot.submitted", len(submitted)),
	)

	persisted, err := s.Store.LoadChildKeys(ctx, parentID, target)
	if err != nil {
		err = asStorageError("load", target.Table, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "load")
		return ChangeSet[string]{}, err
	}

	changes := Diff(submitted, persisted)
	if len(changes.Removable) > 0 {
		if err := s.Store.DeleteRows(ctx, parentID, target, changes.Removable); err != nil {
			err = asStorageError("delete", target.Table, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "delete")
			return ChangeSet[string]{}, err
		}
	}

	span.SetAttributes(
		attribute.Int("pivot.removed", len(changes.Removable)),
		attribute.Int("pivot.new", len(changes.NewEntries)),
	)
	obs.RecordPivotSync(target.Table, len(changes.Removable), len(changes.NewEntries))
	s.Logger.Debug().
		Str("table", target.Table).
		Str("parent_id", parentID).
		Int("removed", len(changes.Removable)).
		Int("added", len(changes.NewEntries)).
		Msg("pivot_synchronized")
	return changes, nil
}

func asStorageError(op, table string, err error) error {
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Table: table, Err: err}
}
