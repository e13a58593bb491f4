package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-commerce/internal/obs"
)

type stubStore struct {
	lastInsert Entry
	called     bool
	insertErr  error
}

func (s *stubStore) Insert(_ context.Context, e Entry) error {
	s.called = true
	s.lastInsert = e
	return s.insertErr
}

func (s *stubStore) List(context.Context, int, int) ([]Entry, error) {
	return nil, nil
}

func TestServiceRecord(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store, Enabled: true, SamplingRate: 1}
	operator := "ops-42"

	req := httptest.NewRequest(http.MethodPut, "https://api.test/api/v1/admin/coupons/SPRING?dryRun=false", nil)
	req.Header.Set("User-Agent", "tester")
	req.Header.Set("X-Request-ID", "req-123")
	req.RemoteAddr = "10.0.0.2:54321"
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/api/v1/admin/coupons/{code}"))

	if err := svc.Record(req.Context(), Actor{Kind: ActorKindOperator, ID: &operator}, "", "", "SPRING", req, http.StatusOK, nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	if !store.called {
		t.Fatal("expected store to be called")
	}
	got := store.lastInsert
	if got.ActorKind != string(ActorKindOperator) || got.ActorID == nil || *got.ActorID != operator {
		t.Fatalf("unexpected actor: %s %v", got.ActorKind, got.ActorID)
	}
	if got.Action != "PUT /api/v1/admin/coupons/{code}" {
		t.Fatalf("unexpected action: %s", got.Action)
	}
	if got.ResourceType != "admin.coupons.{code}" {
		t.Fatalf("unexpected resource type: %s", got.ResourceType)
	}
	if got.ResourceID == nil || *got.ResourceID != "SPRING" {
		t.Fatalf("unexpected resource id: %v", got.ResourceID)
	}
	if got.IP == nil || *got.IP != "10.0.0.2" {
		t.Fatalf("expected ip capture, got %v", got.IP)
	}
	if got.RequestID == nil || *got.RequestID != "req-123" {
		t.Fatalf("expected request id, got %v", got.RequestID)
	}
	var meta map[string]string
	if err := json.Unmarshal(got.Metadata, &meta); err != nil {
		t.Fatalf("metadata json: %v", err)
	}
	if meta["query"] != "dryRun=false" {
		t.Fatalf("unexpected metadata query: %s", meta["query"])
	}
}

func TestServiceRecordDisabled(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store, Enabled: false}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if err := svc.Record(req.Context(), Actor{}, "", "", "", req, http.StatusOK, nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	if store.called {
		t.Fatal("expected no insert when disabled")
	}
}

func TestMiddlewareRecordsOutcome(t *testing.T) {
	store := &stubStore{insertErr: errors.New("db down")}
	var reported error
	rec := HTTPRecorder{
		Service:   &Service{Store: store, Enabled: true},
		ActorFunc: HeaderActor("X-Actor-ID"),
		OnError:   func(err error) { reported = err },
	}

	r := chi.NewRouter()
	r.With(rec.Middleware(HTTPConfig{
		Action:          "order.lines.replace",
		ResourceType:    "order",
		ResourceIDParam: "orderId",
		MetadataFunc: func(_ *http.Request, status int) map[string]any {
			return map[string]any{"status": status}
		},
	})).Put("/api/v1/admin/orders/{orderId}/lines", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/orders/o-1/lines", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected handler status to pass through, got %d", rr.Code)
	}
	got := store.lastInsert
	if got.Action != "order.lines.replace" || got.ResourceType != "order" {
		t.Fatalf("unexpected entry %+v", got)
	}
	if got.ResourceID == nil || *got.ResourceID != "o-1" {
		t.Fatalf("unexpected resource id %v", got.ResourceID)
	}
	if got.Status != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status %d", got.Status)
	}
	if got.ActorKind != string(ActorKindAnonymous) {
		t.Fatalf("expected anonymous actor, got %s", got.ActorKind)
	}
	if string(got.Metadata) != `{"status":422}` {
		t.Fatalf("unexpected metadata %s", got.Metadata)
	}
	if reported == nil {
		t.Fatal("expected store error to be reported")
	}
}

func TestHeaderActor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Actor-ID", " ops-7 ")
	actor := HeaderActor("X-Actor-ID")(req)
	if actor.Kind != ActorKindOperator || *actor.ID != "ops-7" {
		t.Fatalf("unexpected actor %+v", actor)
	}
}
