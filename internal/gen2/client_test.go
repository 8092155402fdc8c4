package gen2

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"sunssactor/internal/logger"
	"sunssactor/internal/models"
)

var upgrader = websocket.Upgrader{}

func baselineValues() map[string]any {
	return map[string]any{
		models.KeyRACmd:      "10:00:00",
		models.KeyDecCmd:     "+20:00:00",
		models.KeyRA:         "10:00:00",
		models.KeyDec:        "+20:00:00",
		models.KeyRAOffset:   "0.0",
		models.KeyDecOffset:  "0.0",
		models.KeyAltitude:   70.0,
		models.KeyTelDrive:   "Tracking",
		models.KeyShutterPos: "OPEN",
	}
}

// newStatusServer serves the baseline fetch on /status and a delta
// stream on /stream that sends the given envelopes and then idles.
func newStatusServer(t *testing.T, deltas []map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Keys []string `json:"keys"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.Keys) == 0 {
			http.Error(w, "no keys", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(baselineValues())
	})
	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, d := range deltas {
			if err := conn.WriteJSON(map[string]any{"status": d}); err != nil {
				return
			}
		}
		// Idle until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	return httptest.NewServer(mux)
}

func testConfig(srv *httptest.Server) Config {
	return Config{
		StatusURL: srv.URL + "/status",
		StreamURL: strings.Replace(srv.URL, "http://", "ws://", 1) + "/stream",
		QueueSize: 8,
	}
}

func receive(t *testing.T, ch <-chan models.RawStatus) models.RawStatus {
	t.Helper()
	select {
	case raw := <-ch:
		return raw
	case <-time.After(3 * time.Second):
		t.Fatal("no envelope received")
		return nil
	}
}

func TestClientMergesDeltasOntoBaseline(t *testing.T) {
	deltas := []map[string]any{
		{models.KeyTelDrive: "Guiding(HSC)"},
		{models.KeyShutterPos: "CLOSED", "SOME.OTHER.KEY": 1},
	}
	srv := newStatusServer(t, deltas)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := New(testConfig(srv), logger.Get(logger.ErrorLevel))
	go c.Run(ctx)

	first := receive(t, c.Updates())
	if first[models.KeyTelDrive] != "Guiding(HSC)" {
		t.Errorf("delta not applied: %v", first[models.KeyTelDrive])
	}
	// Untouched keys carry the baseline values.
	if first[models.KeyShutterPos] != "OPEN" {
		t.Errorf("baseline lost: %v", first[models.KeyShutterPos])
	}

	second := receive(t, c.Updates())
	if second[models.KeyShutterPos] != "CLOSED" {
		t.Errorf("second delta not applied: %v", second[models.KeyShutterPos])
	}
	// The earlier delta persists across envelopes.
	if second[models.KeyTelDrive] != "Guiding(HSC)" {
		t.Errorf("merge not cumulative: %v", second[models.KeyTelDrive])
	}
	// Unsubscribed keys never leak through.
	if _, ok := second["SOME.OTHER.KEY"]; ok {
		t.Error("unsubscribed key forwarded")
	}
}

func TestClientEnvelopesAreIndependentCopies(t *testing.T) {
	deltas := []map[string]any{
		{models.KeyTelDrive: "Slewing"},
		{models.KeyTelDrive: "Tracking"},
	}
	srv := newStatusServer(t, deltas)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := New(testConfig(srv), logger.Get(logger.ErrorLevel))
	go c.Run(ctx)

	first := receive(t, c.Updates())
	second := receive(t, c.Updates())
	if first[models.KeyTelDrive] != "Slewing" {
		t.Errorf("first envelope mutated: %v", first[models.KeyTelDrive])
	}
	if second[models.KeyTelDrive] != "Tracking" {
		t.Errorf("second envelope wrong: %v", second[models.KeyTelDrive])
	}
}

func TestClientClosesUpdatesOnCancel(t *testing.T) {
	srv := newStatusServer(t, nil)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := New(testConfig(srv), logger.Get(logger.ErrorLevel))
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not exit on cancel")
	}
	if _, ok := <-c.Updates(); ok {
		// Drain until close; a single buffered envelope is acceptable.
		for range c.Updates() {
		}
	}
}
