package service

import (
	"testing"

	"fleetdeploy/internal/model"
	"fleetdeploy/internal/protocol"
)

func TestEnroll_NewMachine(t *testing.T) {
	db := newTestDB(t)
	svc := NewMachineService(db)

	m, err := svc.Enroll(protocol.EnrollRequest{
		Hostname: "ws-042",
		OS:       "linux",
		Arch:     "amd64",
		Tags:     []string{"office", "dev"},
	})
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}

	if m.ID == 0 {
		t.Error("Expected machine id to be assigned")
	}
	if m.Credential == "" {
		t.Error("Expected a credential to be issued")
	}
	if m.Status != model.MachineStatusOnline {
		t.Errorf("Expected online status, got %s", m.Status)
	}
	if got := m.TagList(); len(got) != 2 || got[0] != "office" {
		t.Errorf("Expected tags preserved, got %v", got)
	}
}

func TestEnroll_RotatesCredential(t *testing.T) {
	db := newTestDB(t)
	svc := NewMachineService(db)

	first, err := svc.Enroll(protocol.EnrollRequest{Hostname: "ws-042", OS: "linux", Arch: "amd64"})
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}

	second, err := svc.Enroll(protocol.EnrollRequest{Hostname: "ws-042", OS: "linux", Arch: "arm64"})
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}

	if first.ID != second.ID {
		t.Error("Re-enrolling an existing hostname must not create a duplicate machine")
	}
	if first.Credential == second.Credential {
		t.Error("Re-enrollment must rotate the credential")
	}
	if second.Arch != "arm64" {
		t.Errorf("Re-enrollment should update metadata, got arch %s", second.Arch)
	}

	// The old credential no longer authenticates
	if _, err := svc.AuthenticateByCredential(first.Credential); err != ErrMachineNotFound {
		t.Errorf("Old credential should be invalid, got %v", err)
	}
	if _, err := svc.AuthenticateByCredential(second.Credential); err != nil {
		t.Errorf("New credential should authenticate: %v", err)
	}
}

func TestAuthenticateByCredential_Revoked(t *testing.T) {
	db := newTestDB(t)
	svc := NewMachineService(db)

	m, err := svc.Enroll(protocol.EnrollRequest{Hostname: "ws-042", OS: "linux", Arch: "amd64"})
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}

	if err := db.Model(&model.Machine{}).Where("id = ?", m.ID).
		Update("credential_revoked", true).Error; err != nil {
		t.Fatalf("failed to revoke credential: %v", err)
	}

	if _, err := svc.AuthenticateByCredential(m.Credential); err != ErrMachineNotFound {
		t.Errorf("Revoked credential should not authenticate, got %v", err)
	}
}

func TestTouchLastSeen(t *testing.T) {
	db := newTestDB(t)
	svc := NewMachineService(db)
	m := seedMachine(t, db, "ws-042")

	if err := svc.TouchLastSeen(m.ID); err != nil {
		t.Fatalf("TouchLastSeen() failed: %v", err)
	}

	stored, err := svc.Get(m.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if stored.LastSeenAt == nil {
		t.Error("Expected last_seen_at to be set")
	}
	if stored.Status != model.MachineStatusOnline {
		t.Errorf("Expected online status, got %s", stored.Status)
	}
}

func TestMachineUpdate(t *testing.T) {
	db := newTestDB(t)
	svc := NewMachineService(db)
	m := seedMachine(t, db, "ws-042")

	hostname := "ws-042-renamed"
	updated, err := svc.Update(m.ID, &hostname, []string{"prod"})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if updated.Hostname != "ws-042-renamed" {
		t.Errorf("Expected renamed hostname, got %s", updated.Hostname)
	}
	if got := updated.TagList(); len(got) != 1 || got[0] != "prod" {
		t.Errorf("Expected tags [prod], got %v", got)
	}
}

func TestSummary(t *testing.T) {
	db := newTestDB(t)
	jobs := NewJobService(db)
	assignments := NewAssignmentService(db, jobs)
	summary := NewSummaryService(db, nil)

	m := seedMachine(t, db, "host-1")
	p := seedPackage(t, db, "nginx", "1.24.0")
	job := scheduleTestJob(t, assignments, m.ID, p.ID, model.DesiredStateInstall)
	if _, err := jobs.RecordEvent(job.ID, m.ID, protocol.JobEvent{
		Phase:  protocol.PhaseCompleted,
		Status: model.JobStatusFailed,
	}); err != nil {
		t.Fatalf("RecordEvent() failed: %v", err)
	}

	sum, err := summary.Get(t.Context())
	if err != nil {
		t.Fatalf("Summary Get() failed: %v", err)
	}
	if sum.Machines != 1 || sum.Packages != 1 || sum.Assignments != 1 {
		t.Errorf("Unexpected counts: %+v", sum)
	}
	if sum.Jobs != 1 || sum.FailedJobs != 1 || sum.SucceededJobs != 0 {
		t.Errorf("Unexpected job counts: %+v", sum)
	}
}
