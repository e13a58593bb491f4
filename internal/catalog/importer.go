package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-commerce/internal/cache"
	"github.com/noah-isme/toko-commerce/internal/obs"
	"github.com/noah-isme/toko-commerce/internal/pivot"
	"github.com/noah-isme/toko-commerce/internal/pricing"
)

// ProductRecord is one row of an import batch.
type ProductRecord struct {
	SKU         string    `json:"sku" validate:"required,max=64"`
	Name        string    `json:"name" validate:"required,max=255"`
	Price       string    `json:"price"`
	CategoryIDs []string  `json:"categoryIds,omitempty" validate:"omitempty,dive,uuid"`
	Relations   Relations `json:"relations,omitempty"`
}

// ImportResult summarises a committed batch.
type ImportResult struct {
	Created  int       `json:"created"`
	Updated  int       `json:"updated"`
	Products []Product `json:"products"`
}

// Importer writes product batches. A batch is all-or-nothing: the first
// failing record rolls back every record before it.
type Importer struct {
	Tx     TxRunner
	Cache  *cache.JSON
	Logger zerolog.Logger
}

// Import upserts records by SKU and reconciles their categories and relations.
func (i *Importer) Import(ctx context.Context, records []ProductRecord) (result ImportResult, err error) {
	defer func() { obs.RecordImportBatch(err) }()
	if i == nil || i.Tx == nil {
		return ImportResult{}, errors.New("catalog: importer not configured")
	}
	if len(records) == 0 {
		return ImportResult{}, badRequest("records", "at least one record is required", nil)
	}
	seen := make(map[string]int, len(records))
	for idx, rec := range records {
		sku := strings.TrimSpace(rec.SKU)
		field := fmt.Sprintf("records[%d]", idx)
		if sku == "" {
			return ImportResult{}, badRequest(field+".sku", "sku is required", nil)
		}
		if strings.TrimSpace(rec.Name) == "" {
			return ImportResult{}, badRequest(field+".name", "name is required", nil)
		}
		if prev, dup := seen[sku]; dup {
			return ImportResult{}, badRequest(field+".sku", fmt.Sprintf("duplicate sku %q (first at records[%d])", sku, prev), nil)
		}
		seen[sku] = idx
	}

	err = i.Tx.InTx(ctx, func(store Store) error {
		result = ImportResult{Products: make([]Product, 0, len(records))}
		sync := pivot.Synchronizer{Store: store, Logger: i.Logger}
		for idx, rec := range records {
			product, created, err := importRecord(ctx, store, sync, rec)
			if err != nil {
				return fmt.Errorf("records[%d] (%s): %w", idx, strings.TrimSpace(rec.SKU), err)
			}
			if created {
				result.Created++
			} else {
				result.Updated++
			}
			result.Products = append(result.Products, product)
		}
		return nil
	})
	if err != nil {
		i.Logger.Error().Err(err).Int("records", len(records)).Msg("catalog_import_failed")
		return ImportResult{}, err
	}

	keys := make([]string, 0, len(result.Products))
	for _, p := range result.Products {
		keys = append(keys, cache.KeyRelations(p.ID.String()))
	}
	if err := i.Cache.Delete(ctx, keys...); err != nil {
		i.Logger.Warn().Err(err).Msg("relations_cache_invalidate_failed")
	}
	i.Logger.Info().Int("created", result.Created).Int("updated", result.Updated).Msg("catalog_import_committed")
	return result, nil
}

func importRecord(ctx context.Context, store Store, sync pivot.Synchronizer, rec ProductRecord) (Product, bool, error) {
	product := Product{
		SKU:   strings.TrimSpace(rec.SKU),
		Name:  strings.TrimSpace(rec.Name),
		Price: pricing.ParseMoneyOrZero(rec.Price),
	}
	id, created, err := store.UpsertProduct(ctx, product)
	if err != nil {
		return Product{}, false, fmt.Errorf("upsert product: %w", err)
	}
	product.ID = id

	categories := make([]string, 0, len(rec.CategoryIDs))
	for _, raw := range rec.CategoryIDs {
		parsed, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return Product{}, false, badRequest("categoryIds", fmt.Sprintf("invalid category id %q", raw), err)
		}
		categories = append(categories, parsed.String())
	}
	if _, err := syncChildren(ctx, sync, store, id.String(), categoryTarget, categories); err != nil {
		return Product{}, false, err
	}

	relations, err := rec.Relations.normalize(id)
	if err != nil {
		return Product{}, false, err
	}
	for _, kind := range relationKinds {
		keys, ok := relations[kind]
		if !ok {
			continue
		}
		if _, err := syncChildren(ctx, sync, store, id.String(), relationTargets[kind], keys); err != nil {
			return Product{}, false, err
		}
	}
	return product, created, nil
}
