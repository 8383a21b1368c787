package roundapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/signalsfoundry/fuelchain-optimizer/model"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(Config{BaseURL: srv.URL, APIKey: "key-1", MaxRetries: 1}, nil)
	return c, srv
}

func TestStartSessionParsesPlainTextID(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/session/start" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("API-KEY"); got != "key-1" {
			t.Errorf("expected API-KEY header, got %q", got)
		}
		w.Write([]byte("session-abc\n"))
	}))

	if err := c.StartSession(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.SessionID() != "session-abc" {
		t.Errorf("expected trimmed session id, got %q", c.SessionID())
	}
}

func TestStartSessionRecoversFromConflict(t *testing.T) {
	var starts, ends int
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/session/start":
			starts++
			if starts == 1 {
				w.WriteHeader(http.StatusConflict)
				return
			}
			w.Write([]byte("session-2"))
		case "/api/v1/session/end":
			ends++
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	if err := c.StartSession(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if starts != 2 || ends != 1 {
		t.Errorf("expected start-end-start sequence, got starts=%d ends=%d", starts, ends)
	}
	if c.SessionID() != "session-2" {
		t.Errorf("expected session-2, got %q", c.SessionID())
	}
}

func TestPlayRoundRoundTrip(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/session/start":
			w.Write([]byte("sess"))
		case "/api/v1/play/round":
			if got := r.Header.Get("SESSION-ID"); got != "sess" {
				t.Errorf("expected SESSION-ID header, got %q", got)
			}
			var req struct {
				Day       int `json:"day"`
				Movements []struct {
					ConnectionID string  `json:"connectionId"`
					Amount       float64 `json:"amount"`
				} `json:"movements"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode request: %v", err)
			}
			if req.Day != 7 || len(req.Movements) != 1 || req.Movements[0].ConnectionID != "l1" {
				t.Errorf("unexpected request %+v", req)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"demand": [
					{"id": 12, "customer_id": "c1", "quantity": 80, "post_day": 7, "start_delivery_day": 9, "end_delivery_day": 14},
					{"id": "bad", "customer_id": "c1", "quantity": -5, "post_day": 7, "start_delivery_day": 9, "end_delivery_day": 14}
				],
				"penalties": [{"type": "OVERFLOW", "message": "tank t1 over capacity"}],
				"deltaKpis": {"cost": 123.5, "co2": 44.25}
			}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	ctx := context.Background()
	if err := c.StartSession(ctx); err != nil {
		t.Fatalf("start session: %v", err)
	}

	link, err := model.NewLink("l1", "a", "b", 10, 2, model.LinkTruck, 100)
	if err != nil {
		t.Fatalf("build link: %v", err)
	}
	mv, err := model.NewMovement(link, 42.5, 7)
	if err != nil {
		t.Fatalf("build movement: %v", err)
	}

	res, err := c.PlayRound(ctx, 7, []model.Movement{mv})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The malformed record is dropped; the numeric id round-trips.
	if len(res.Demands) != 1 {
		t.Fatalf("expected 1 valid demand, got %d", len(res.Demands))
	}
	if res.Demands[0].ID != "12" || res.Demands[0].Quantity != 80 {
		t.Errorf("unexpected demand %+v", res.Demands[0])
	}
	if len(res.Penalties) != 1 || res.Penalties[0].Type != "OVERFLOW" {
		t.Errorf("unexpected penalties %+v", res.Penalties)
	}
	if res.KPIs == nil || res.KPIs.Cost != 123.5 || res.KPIs.CO2 != 44.25 {
		t.Errorf("unexpected KPIs %+v", res.KPIs)
	}
}

func TestPlayRoundRequiresSession(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://localhost:1", APIKey: "k"}, nil)
	if _, err := c.PlayRound(context.Background(), 1, nil); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestDoRetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("session-ok"))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", MaxRetries: 5}, nil)
	if err := c.StartSession(context.Background()); err != nil {
		t.Fatalf("unexpected error after retries: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "bad", MaxRetries: 5}, nil)
	if err := c.StartSession(context.Background()); err == nil {
		t.Fatal("expected an error for 401")
	}
	if calls != 1 {
		t.Errorf("4xx must not be retried, got %d attempts", calls)
	}
}

func TestEndSessionClearsID(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/session/start":
			w.Write([]byte("sess"))
		case "/api/v1/session/end":
			w.WriteHeader(http.StatusOK)
		}
	}))

	ctx := context.Background()
	if err := c.StartSession(ctx); err != nil {
		t.Fatalf("start session: %v", err)
	}
	if err := c.EndSession(ctx); err != nil {
		t.Fatalf("end session: %v", err)
	}
	if c.SessionID() != "" {
		t.Errorf("expected cleared session id, got %q", c.SessionID())
	}

	// Ending again is a no-op.
	if err := c.EndSession(ctx); err != nil {
		t.Errorf("expected no-op, got %v", err)
	}
}

func TestSessionActive(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/session/status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"active": true}`))
	}))

	active, err := c.SessionActive(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !active {
		t.Error("expected active session")
	}
}
