package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakePinger implements Pinger with a fixed result.
type fakePinger struct {
	name string
	err  error
}

func (f *fakePinger) Ping(context.Context) error { return f.err }
func (f *fakePinger) Name() string               { return f.name }

func TestHandleHealth_AllUp(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakePipeline{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("expected healthy, got %q", resp.Status)
	}
	for _, svc := range []string{"database", "vector_store", "llm"} {
		if resp.Services[svc] != "up" {
			t.Errorf("expected %s up, got %q", svc, resp.Services[svc])
		}
	}
}

func TestHandleHealth_DegradedIs503(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{
		healthFn: func() map[string]error {
			return map[string]error{
				"database":     nil,
				"vector_store": errors.New("dial tcp: connection refused"),
				"llm":          nil,
			}
		},
	}
	s := newTestServer(t, p, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when a service is down, got %d", w.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("expected degraded, got %q", resp.Status)
	}
	if resp.Services["vector_store"] != "down" {
		t.Errorf("expected vector_store down, got %q", resp.Services["vector_store"])
	}
	if resp.Services["database"] != "up" {
		t.Errorf("expected database up, got %q", resp.Services["database"])
	}
}

func TestHandleReady_NoPingersIsAlwaysReady(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakePipeline{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with no pingers, got %d", w.Code)
	}
}

func TestHandleReady_FailingPingerIs503(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakePipeline{}, &Config{
		Pingers: []Pinger{
			&fakePinger{name: "qdrant"},
			&fakePinger{name: "database", err: errors.New("no route to host")},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var resp readyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Ready {
		t.Error("expected ready=false")
	}
	if len(resp.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(resp.Checks))
	}
	if resp.Checks[0].Name != "qdrant" || !resp.Checks[0].OK {
		t.Errorf("expected qdrant check ok, got %+v", resp.Checks[0])
	}
	if resp.Checks[1].Name != "database" || resp.Checks[1].OK || resp.Checks[1].Error == "" {
		t.Errorf("expected database check failed with error, got %+v", resp.Checks[1])
	}
}

func TestMultiPinger_FirstFailureWins(t *testing.T) {
	t.Parallel()

	mp := NewMultiPinger(
		&fakePinger{name: "a"},
		&fakePinger{name: "b", err: errors.New("boom")},
		&fakePinger{name: "c", err: errors.New("never reached")},
	)

	err := mp.Ping(t.Context())
	if err == nil {
		t.Fatal("expected error from failing pinger")
	}
	if got := err.Error(); got != "b: boom" {
		t.Errorf("expected prefixed error, got %q", got)
	}
}

func TestHandleCollection(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakePipeline{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/collection", nil)
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Name        string `json:"name"`
		PointsCount uint64 `json:"points_count"`
		Status      string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Name != "physai_book" || resp.PointsCount != 42 || resp.Status != "green" {
		t.Errorf("unexpected collection info: %+v", resp)
	}
}
