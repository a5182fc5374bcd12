package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/memory"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var response Response
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return response
}

func TestHealthHandler(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("store", NewStoreChecker(memory.NewRecordStore()))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	response := decodeResponse(t, w)
	if response.Status != StatusHealthy {
		t.Errorf("expected status healthy, got %s", response.Status)
	}
	if response.Version != "v1.0.0" {
		t.Errorf("expected version v1.0.0, got %s", response.Version)
	}
	if check := response.Checks["store"]; check.Name != "record_store" {
		t.Errorf("expected record_store check, got %+v", check)
	}
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("store", NewStoreChecker(pingerFunc(func(context.Context) error {
		return domain.ErrStoreUnavailable
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
	response := decodeResponse(t, w)
	if response.Status != StatusUnhealthy {
		t.Errorf("expected status unhealthy, got %s", response.Status)
	}
	if response.Checks["store"].Message != domain.ErrStoreUnavailable.Error() {
		t.Errorf("unexpected message %q", response.Checks["store"].Message)
	}
}

func TestHealthHandler_PassesDeadline(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("store", NewStoreChecker(pingerFunc(func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("no deadline")
		}
		return nil
	})))

	if got := handler.Run(context.Background()).Status; got != StatusHealthy {
		t.Fatalf("expected checks to run with a deadline, got %s", got)
	}
}

func TestOutboxChecker(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOutboxRepository()

	checker := NewOutboxChecker(repo, 1, time.Minute)
	if got := checker.Check(ctx).Status; got != StatusHealthy {
		t.Fatalf("empty backlog: expected healthy, got %s", got)
	}

	for i := 0; i < 2; i++ {
		if _, err := repo.Enqueue(ctx, domain.OutboxMessage{EventType: domain.EventOrderCreated}); err != nil {
			t.Fatal(err)
		}
	}
	if got := checker.Check(ctx).Status; got != StatusDegraded {
		t.Fatalf("backlog over threshold: expected degraded, got %s", got)
	}

	aged := NewOutboxChecker(repo, 0, time.Minute)
	aged.now = func() time.Time { return time.Now().Add(time.Hour) }
	check := aged.Check(ctx)
	if check.Status != StatusDegraded || check.Message == "" {
		t.Fatalf("old backlog: expected degraded with message, got %+v", check)
	}
}

func TestHealthHandler_DegradedStays200(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOutboxRepository()
	if _, err := repo.Enqueue(ctx, domain.OutboxMessage{}); err != nil {
		t.Fatal(err)
	}

	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("outbox", NewOutboxChecker(repo, 0, time.Nanosecond))
	handler.RegisterChecker("store", NewStoreChecker(memory.NewRecordStore()))

	time.Sleep(time.Millisecond)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200 for degraded, got %d", w.Code)
	}
	if response := decodeResponse(t, w); response.Status != StatusDegraded {
		t.Errorf("expected status degraded, got %s", response.Status)
	}
}

func TestLivenessHandler(t *testing.T) {
	w := httptest.NewRecorder()
	LivenessHandler(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "ok" {
		t.Errorf("expected body 'ok', got %s", w.Body.String())
	}
}

func TestReadinessHandler(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("test", NewCheckFunc("test", func(context.Context) error { return nil }))

	w := httptest.NewRecorder()
	handler.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if w.Code != http.StatusOK || w.Body.String() != "ready" {
		t.Errorf("expected 200 ready, got %d %s", w.Code, w.Body.String())
	}
}

func TestReadinessHandler_NotReady(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("test", NewCheckFunc("test", func(context.Context) error {
		return errors.New("not ready")
	}))

	w := httptest.NewRecorder()
	handler.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if w.Code != http.StatusServiceUnavailable || w.Body.String() != "not ready" {
		t.Errorf("expected 503 not ready, got %d %s", w.Code, w.Body.String())
	}
}

func TestCheckFunc_Error(t *testing.T) {
	check := NewCheckFunc("test", func(context.Context) error {
		return errors.New("test error")
	}).Check(context.Background())

	if check.Status != StatusUnhealthy {
		t.Errorf("expected status unhealthy, got %s", check.Status)
	}
	if check.Message != "test error" {
		t.Errorf("expected message 'test error', got %s", check.Message)
	}
}
