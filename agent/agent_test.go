package agent

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"fleetdeploy/agent/config"
	"fleetdeploy/agent/ledger"
	"fleetdeploy/internal/protocol"
)

type fakeServer struct {
	mu          sync.Mutex
	plan        []protocol.PlanEntry
	events      []protocol.JobEvent
	eventStatus int
}

func (s *fakeServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		switch {
		case r.URL.Path == "/api/v1/agent/plan":
			writeEnvelope(t, w, protocol.PlanResponse{Entries: s.plan})
		case strings.HasSuffix(r.URL.Path, "/events"):
			var ev protocol.JobEvent
			if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
				t.Fatalf("failed to decode event: %v", err)
			}
			if s.eventStatus != 0 && s.eventStatus != http.StatusOK {
				w.WriteHeader(s.eventStatus)
				return
			}
			s.events = append(s.events, ev)
			writeEnvelope(t, w, nil)
		default:
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
	}
}

func writeEnvelope(t *testing.T, w http.ResponseWriter, data interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"code": 0, "message": "success", "data": data,
	}); err != nil {
		t.Fatalf("failed to encode envelope: %v", err)
	}
}

func newTestAgent(t *testing.T, srvURL string, seed func(*ledger.Ledger)) (*Agent, *config.Config) {
	t.Helper()

	cfg := &config.Config{
		ServerURL:       srvURL,
		MachineID:       7,
		Credential:      "tok",
		PollIntervalSec: 1,
		DataDir:         t.TempDir(),
	}

	if seed != nil {
		led, err := ledger.Open(cfg.LedgerPath())
		if err != nil {
			t.Fatalf("failed to open ledger: %v", err)
		}
		seed(led)
		if err := led.Close(); err != nil {
			t.Fatalf("failed to close ledger: %v", err)
		}
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	a, err := New(cfg, logrus.NewEntry(log))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a, cfg
}

func TestTick_GateSatisfiedReportsWithoutRunning(t *testing.T) {
	fs := &fakeServer{plan: []protocol.PlanEntry{{
		JobID:  3,
		Action: "install",
		Package: protocol.PackageSpec{
			ID: 7, Name: "nginx", Version: "1.24.0",
			InstallCmd: "echo should-not-run",
		},
	}}}
	srv := httptest.NewServer(fs.handler(t))
	defer srv.Close()

	a, _ := newTestAgent(t, srv.URL, func(led *ledger.Ledger) {
		if err := led.RecordInstall("nginx", "1.24.0", 7); err != nil {
			t.Fatalf("RecordInstall() failed: %v", err)
		}
	})

	a.Tick()

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(fs.events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(fs.events))
	}
	ev := fs.events[0]
	if ev.Phase != protocol.PhaseCompleted || ev.Status != protocol.StatusSucceeded {
		t.Errorf("Expected synthetic completion, got %+v", ev)
	}
	if ev.StdoutTail != "already installed" {
		t.Errorf("Unexpected stdout tail %q", ev.StdoutTail)
	}
}

func TestTick_QueuesCompletionWhenDeliveryFails(t *testing.T) {
	fs := &fakeServer{
		plan: []protocol.PlanEntry{{
			JobID:  3,
			Action: "install",
			Package: protocol.PackageSpec{
				ID: 7, Name: "nginx", Version: "1.24.0",
				InstallCmd: "echo ok",
			},
		}},
		eventStatus: http.StatusBadGateway,
	}
	srv := httptest.NewServer(fs.handler(t))
	defer srv.Close()

	// Gate hit so nothing actually executes; delivery still fails
	a, cfg := newTestAgent(t, srv.URL, func(led *ledger.Ledger) {
		if err := led.RecordInstall("nginx", "1.24.0", 7); err != nil {
			t.Fatalf("RecordInstall() failed: %v", err)
		}
	})

	a.Tick()
	if err := a.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	led, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		t.Fatalf("failed to reopen ledger: %v", err)
	}
	defer led.Close()
	pending, err := led.PendingEvents()
	if err != nil {
		t.Fatalf("PendingEvents() failed: %v", err)
	}
	if len(pending) != 1 || pending[0].JobID != 3 {
		t.Fatalf("Expected the completion queued, got %+v", pending)
	}
}

func TestTick_FlushesQueuedEventsFirst(t *testing.T) {
	fs := &fakeServer{}
	srv := httptest.NewServer(fs.handler(t))
	defer srv.Close()

	rc := 0
	a, cfg := newTestAgent(t, srv.URL, func(led *ledger.Ledger) {
		err := led.QueueEvent(9, protocol.JobEvent{
			Phase: protocol.PhaseCompleted, Status: protocol.StatusSucceeded, ResultCode: &rc,
		})
		if err != nil {
			t.Fatalf("QueueEvent() failed: %v", err)
		}
	})

	a.Tick()

	fs.mu.Lock()
	if len(fs.events) != 1 || fs.events[0].Status != protocol.StatusSucceeded {
		t.Fatalf("Expected the queued event delivered, got %+v", fs.events)
	}
	fs.mu.Unlock()

	if err := a.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	led, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		t.Fatalf("failed to reopen ledger: %v", err)
	}
	defer led.Close()
	pending, err := led.PendingEvents()
	if err != nil {
		t.Fatalf("PendingEvents() failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Expected queue drained, got %+v", pending)
	}
}
