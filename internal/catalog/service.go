package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-commerce/internal/cache"
	"github.com/noah-isme/toko-commerce/internal/common"
	"github.com/noah-isme/toko-commerce/internal/pivot"
)

// ErrProductNotFound is returned when the parent product does not exist.
var ErrProductNotFound = errors.New("product not found")

// Locker serialises work on a key across processes.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service reads and reconciles product relations.
type Service struct {
	store   Store
	tx      TxRunner
	cache   *cache.JSON
	locker  Locker
	lockTTL time.Duration
	logger  zerolog.Logger
}

// ServiceConfig groups Service dependencies. Locker is optional; when set,
// saves of the same product are serialised.
type ServiceConfig struct {
	Store   Store
	Tx      TxRunner
	Cache   *cache.JSON
	Locker  Locker
	LockTTL time.Duration
	Logger  zerolog.Logger
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	if cfg.Tx == nil {
		return nil, errors.New("catalog: transaction runner is required")
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Service{
		store:   cfg.Store,
		tx:      cfg.Tx,
		cache:   cfg.Cache,
		locker:  cfg.Locker,
		lockTTL: ttl,
		logger:  cfg.Logger,
	}, nil
}

// Relations returns every relation set of a product.
func (s *Service) Relations(ctx context.Context, productID uuid.UUID) (Relations, error) {
	key := cache.KeyRelations(productID.String())
	var cached Relations
	if ok, err := s.cache.Get(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	exists, err := s.store.ProductExists(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("check product: %w", err)
	}
	if !exists {
		return nil, ErrProductNotFound
	}
	out := make(Relations, len(relationKinds))
	for _, kind := range relationKinds {
		keys, err := s.store.LoadChildKeys(ctx, productID.String(), relationTargets[kind])
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", kind, err)
		}
		if keys == nil {
			keys = []string{}
		}
		out[kind] = keys
	}
	if err := s.cache.Set(ctx, key, out); err != nil {
		s.logger.Warn().Err(err).Str("product_id", productID.String()).Msg("relations_cache_write_failed")
	}
	return out, nil
}

// SaveResult reports the per-kind deltas applied by SaveRelations.
type SaveResult map[RelationKind]pivot.ChangeSet[string]

// SaveRelations reconciles the submitted relation sets of a product in one
// transaction. Kinds absent from submitted are left as they are.
func (s *Service) SaveRelations(ctx context.Context, productID uuid.UUID, submitted Relations) (SaveResult, error) {
	normalized, err := submitted.normalize(productID)
	if err != nil {
		return nil, err
	}
	var result SaveResult
	save := func(ctx context.Context) error {
		var err error
		result, err = s.saveRelations(ctx, productID, normalized)
		return err
	}
	if s.locker != nil {
		err = s.locker.WithLock(ctx, "lock:catalog:relations:"+productID.String(), s.lockTTL, save)
	} else {
		err = save(ctx)
	}
	if err != nil {
		return nil, err
	}
	if err := s.cache.Delete(ctx, cache.KeyRelations(productID.String())); err != nil {
		s.logger.Warn().Err(err).Str("product_id", productID.String()).Msg("relations_cache_invalidate_failed")
	}
	return result, nil
}

func (s *Service) saveRelations(ctx context.Context, productID uuid.UUID, submitted Relations) (SaveResult, error) {
	result := SaveResult{}
	err := s.tx.InTx(ctx, func(store Store) error {
		exists, err := store.ProductExists(ctx, productID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrProductNotFound
		}
		sync := pivot.Synchronizer{Store: store, Logger: s.logger}
		for _, kind := range relationKinds {
			keys, ok := submitted[kind]
			if !ok {
				continue
			}
			changes, err := syncChildren(ctx, sync, store, productID.String(), relationTargets[kind], keys)
			if err != nil {
				return err
			}
			result[kind] = changes
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("product_id", productID.String()).Int("kinds", len(result)).Msg("product_relations_saved")
	return result, nil
}

// syncChildren deletes obsolete rows and inserts the new ones.
func syncChildren(ctx context.Context, sync pivot.Synchronizer, store Store, parentID string, target pivot.Target, keys []string) (pivot.ChangeSet[string], error) {
	changes, err := sync.Synchronize(ctx, parentID, target, keys)
	if err != nil {
		return pivot.ChangeSet[string]{}, err
	}
	if err := store.InsertChildren(ctx, parentID, target, changes.NewEntries); err != nil {
		return pivot.ChangeSet[string]{}, fmt.Errorf("insert %s: %w", target.Table, err)
	}
	return changes, nil
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       common.CodeBadRequest,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details: map[string]any{
			"field": field,
		},
	}
}
