package catalog

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/toko-commerce/internal/common"
	"github.com/noah-isme/toko-commerce/internal/lock"
)

// ImportEnqueuer hands an import batch to the background worker.
type ImportEnqueuer interface {
	EnqueueImport(ctx context.Context, records []ProductRecord) (string, error)
}

// Handler exposes administrative catalog endpoints.
type Handler struct {
	service  *Service
	importer *Importer
	enqueuer ImportEnqueuer
	async    bool
}

// HandlerConfig configures the Handler dependencies. When Async is set and an
// Enqueuer is present, imports are queued instead of run inline.
type HandlerConfig struct {
	Service  *Service
	Importer *Importer
	Enqueuer ImportEnqueuer
	Async    bool
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service, importer: cfg.Importer, enqueuer: cfg.Enqueuer, async: cfg.Async}
}

type relationsPayload struct {
	Relations Relations `json:"relations" validate:"required"`
}

type changeSummary struct {
	Removed []string `json:"removed"`
	Added   []string `json:"added"`
}

type importPayload struct {
	Records []ProductRecord `json:"records" validate:"required,min=1,dive"`
}

// Relations handles GET /api/v1/admin/products/{productId}/relations.
func (h *Handler) Relations(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog service not configured", nil)
		return
	}
	productID, err := productIDParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	rel, err := h.service.Relations(r.Context(), productID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, rel)
}

// SaveRelations handles PUT /api/v1/admin/products/{productId}/relations.
func (h *Handler) SaveRelations(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog service not configured", nil)
		return
	}
	productID, err := productIDParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var payload relationsPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	result, err := h.service.SaveRelations(r.Context(), productID, payload.Relations)
	if err != nil {
		h.writeError(w, err)
		return
	}
	changes := make(map[RelationKind]changeSummary, len(result))
	for kind, cs := range result {
		changes[kind] = changeSummary{Removed: nonNil(cs.Removable), Added: nonNil(cs.NewEntries)}
	}
	common.Data(w, http.StatusOK, map[string]any{"changes": changes})
}

// Import handles POST /api/v1/admin/products/import.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil && h.enqueuer == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog importer not configured", nil)
		return
	}
	var payload importPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	if h.async && h.enqueuer != nil {
		taskID, err := h.enqueuer.EnqueueImport(r.Context(), payload.Records)
		if err != nil {
			h.writeError(w, err)
			return
		}
		common.Data(w, http.StatusAccepted, map[string]any{"taskId": taskID, "records": len(payload.Records)})
		return
	}
	result, err := h.importer.Import(r.Context(), payload.Records)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, result)
}

func productIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "productId"))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, badRequest("productId", "productId must be a UUID", err)
	}
	return id, nil
}

func nonNil(keys []string) []string {
	if keys == nil {
		return []string{}
	}
	return keys
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound):
		common.WriteError(w, common.NotFound("product not found", err))
	case errors.Is(err, lock.ErrNotAcquired):
		common.WriteError(w, common.Conflict("relations are being updated, retry later", err))
	default:
		common.WriteError(w, err)
	}
}
