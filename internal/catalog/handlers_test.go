package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-commerce/internal/catalog"
	"github.com/noah-isme/toko-commerce/internal/pivot"
)

type fakeStore struct {
	catalog.Store
	products map[uuid.UUID]bool
	rows     map[string][]string
}

func (f *fakeStore) InTx(_ context.Context, fn func(catalog.Store) error) error { return fn(f) }

func (f *fakeStore) ProductExists(_ context.Context, id uuid.UUID) (bool, error) {
	return f.products[id], nil
}

func (f *fakeStore) LoadChildKeys(_ context.Context, parentID string, target pivot.Target) ([]string, error) {
	return f.rows[target.Table+parentID], nil
}

type recordingEnqueuer struct {
	records []catalog.ProductRecord
}

func (r *recordingEnqueuer) EnqueueImport(_ context.Context, records []catalog.ProductRecord) (string, error) {
	r.records = records
	return "task-1", nil
}

func newRouter(t *testing.T, store *fakeStore, enq catalog.ImportEnqueuer) http.Handler {
	t.Helper()
	svc, err := catalog.NewService(catalog.ServiceConfig{Store: store, Tx: store})
	require.NoError(t, err)
	h := catalog.NewHandler(catalog.HandlerConfig{
		Service:  svc,
		Importer: &catalog.Importer{Tx: store},
		Enqueuer: enq,
		Async:    enq != nil,
	})
	r := chi.NewRouter()
	r.Get("/products/{productId}/relations", h.Relations)
	r.Put("/products/{productId}/relations", h.SaveRelations)
	r.Post("/products/import", h.Import)
	return r
}

func TestRelationsHandler(t *testing.T) {
	product := uuid.New()
	store := &fakeStore{
		products: map[uuid.UUID]bool{product: true},
		rows:     map[string][]string{"product_tags" + product.String(): {"sale"}},
	}
	router := newRouter(t, store, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/"+product.String()+"/relations", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Data map[string][]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, []string{"sale"}, body.Data["tags"])
	require.Equal(t, []string{}, body.Data["variants"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/"+uuid.NewString()+"/relations", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/abc/relations", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportHandlerQueuesWhenAsync(t *testing.T) {
	enq := &recordingEnqueuer{}
	router := newRouter(t, &fakeStore{}, enq)

	rec := httptest.NewRecorder()
	body := `{"records":[{"sku":"A-1","name":"Alpha","price":"9.90"}]}`
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/products/import", strings.NewReader(body)))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"taskId":"task-1"`)
	require.Len(t, enq.records, 1)
	require.Equal(t, "A-1", enq.records[0].SKU)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/products/import", strings.NewReader(`{"records":[{"sku":"","name":"x"}]}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
