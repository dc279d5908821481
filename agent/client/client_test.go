package client

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"fleetdeploy/internal/protocol"
)

func envelopeOK(t *testing.T, w http.ResponseWriter, data interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"code": 0, "message": "success", "data": data,
	}); err != nil {
		t.Fatalf("failed to encode envelope: %v", err)
	}
}

func TestEnroll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/agent/enroll" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		var req protocol.EnrollRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Hostname != "ws-042" {
			t.Errorf("Unexpected hostname %s", req.Hostname)
		}
		envelopeOK(t, w, protocol.EnrollResponse{MachineID: 7, Credential: "tok"})
	}))
	defer srv.Close()

	resp, err := Enroll(srv.URL, protocol.EnrollRequest{Hostname: "ws-042"})
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	if resp.MachineID != 7 || resp.Credential != "tok" {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestFetchPlan_SendsCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get(CredentialHeader); got != "tok" {
			t.Errorf("Expected credential header, got %q", got)
		}
		envelopeOK(t, w, protocol.PlanResponse{Entries: []protocol.PlanEntry{
			{JobID: 3, Action: "install", Package: protocol.PackageSpec{Name: "nginx"}},
		}})
	}))
	defer srv.Close()

	entries, err := New(srv.URL, "tok").FetchPlan()
	if err != nil {
		t.Fatalf("FetchPlan() failed: %v", err)
	}
	if len(entries) != 1 || entries[0].JobID != 3 {
		t.Errorf("Unexpected plan: %+v", entries)
	}
}

func TestPostJobEvent_Conflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":3003,"message":"job already finished","data":null}`))
	}))
	defer srv.Close()

	err := New(srv.URL, "tok").PostJobEvent(3, protocol.JobEvent{Phase: protocol.PhaseCompleted})
	if !errors.Is(err, ErrEventConflict) {
		t.Errorf("Expected ErrEventConflict, got %v", err)
	}
}

func TestPostJobEvent_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := New(srv.URL, "tok").PostJobEvent(3, protocol.JobEvent{Phase: protocol.PhaseCompleted})
	if err == nil || errors.Is(err, ErrEventConflict) {
		t.Errorf("Expected a retryable error, got %v", err)
	}
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("artifact bytes"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "artifact")
	if err := New(srv.URL, "tok").Download(srv.URL+"/artifact", dest); err != nil {
		t.Fatalf("Download() failed: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("failed to read downloaded file: %v", err)
	}
	if string(data) != "artifact bytes" {
		t.Errorf("Unexpected content %q", data)
	}
}
