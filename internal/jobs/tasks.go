// Package jobs runs catalog imports in the background on asynq.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-commerce/internal/catalog"
	"github.com/noah-isme/toko-commerce/internal/common"
)

// TypeCatalogImport is the asynq task type for product batch imports.
const TypeCatalogImport = "catalog:import"

type importPayload struct {
	Records []catalog.ProductRecord `json:"records"`
}

// NewCatalogImportTask encodes records into a task.
func NewCatalogImportTask(records []catalog.ProductRecord, opts ...asynq.Option) (*asynq.Task, error) {
	if len(records) == 0 {
		return nil, errors.New("jobs: import batch is empty")
	}
	raw, err := json.Marshal(importPayload{Records: records})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCatalogImport, raw, opts...), nil
}

// TaskClient is the subset of *asynq.Client used by Enqueuer.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer publishes import tasks. It satisfies catalog.ImportEnqueuer.
type Enqueuer struct {
	Client   TaskClient
	Queue    string
	MaxRetry int
	Timeout  time.Duration
}

// EnqueueImport queues records and returns the task id.
func (e Enqueuer) EnqueueImport(ctx context.Context, records []catalog.ProductRecord) (string, error) {
	if e.Client == nil {
		return "", errors.New("jobs: task client not configured")
	}
	opts := []asynq.Option{asynq.MaxRetry(e.maxRetry())}
	if e.Queue != "" {
		opts = append(opts, asynq.Queue(e.Queue))
	}
	if e.Timeout > 0 {
		opts = append(opts, asynq.Timeout(e.Timeout))
	}
	task, err := NewCatalogImportTask(records, opts...)
	if err != nil {
		return "", err
	}
	info, err := e.Client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", TypeCatalogImport, err)
	}
	return info.ID, nil
}

func (e Enqueuer) maxRetry() int {
	if e.MaxRetry <= 0 {
		return 5
	}
	return e.MaxRetry
}

// ImportHandler processes catalog:import tasks.
type ImportHandler struct {
	Importer *catalog.Importer
	Logger   zerolog.Logger
}

// ProcessTask implements asynq.Handler. Malformed payloads and rejected
// records are not retried; storage failures are.
func (h ImportHandler) ProcessTask(ctx context.Context, t *asynq.Task) (err error) {
	defer func() { recordProcessed(t.Type(), err) }()
	var payload importPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", TypeCatalogImport, err, asynq.SkipRetry)
	}
	result, err := h.Importer.Import(ctx, payload.Records)
	if err != nil {
		if common.IsAppError(err) {
			h.Logger.Warn().Err(err).Int("records", len(payload.Records)).Msg("catalog_import_rejected")
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	h.Logger.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Msg("catalog_import_task_done")
	return nil
}

// NewServeMux routes every task type handled by the worker.
func NewServeMux(importer ImportHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeCatalogImport, importer)
	return mux
}
