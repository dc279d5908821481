// Package protocol defines the wire types exchanged between the
// management server and the endpoint agent.
package protocol

// Job event phases
const (
	PhaseStart     = "start"
	PhaseCompleted = "completed"
)

// Job completion statuses
const (
	StatusSucceeded = "Succeeded"
	StatusFailed    = "Failed"
)

// EnrollRequest is sent by an agent to register itself. Enrollment is
// idempotent by hostname: re-enrolling rotates the credential.
type EnrollRequest struct {
	Hostname     string   `json:"hostname" binding:"required"`
	OS           string   `json:"os"`
	Arch         string   `json:"arch"`
	AgentVersion string   `json:"agent_version,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

// EnrollResponse carries the issued machine identity and credential
type EnrollResponse struct {
	MachineID  int    `json:"machine_id"`
	Credential string `json:"credential"`
}

// PackageSpec describes a package fully enough for the agent to act on
// it without further server round-trips.
type PackageSpec struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Version      string `json:"version"`
	Platform     string `json:"platform"`
	ArtifactURL  string `json:"artifact_url"`
	SHA256       string `json:"sha256"`
	InstallCmd   string `json:"install_cmd"`
	UninstallCmd string `json:"uninstall_cmd"`
	SilentArgs   string `json:"silent_args"`
	PrecheckCmd  string `json:"precheck_cmd"`
	PostcheckCmd string `json:"postcheck_cmd"`
	SuccessCodes []int  `json:"success_codes"`
}

// PlanEntry is one actionable unit of work for a machine
type PlanEntry struct {
	JobID   int         `json:"job_id"`
	Action  string      `json:"action"`
	Package PackageSpec `json:"package"`
}

// PlanResponse is the ordered work list returned by a poll
type PlanResponse struct {
	Entries []PlanEntry `json:"entries"`
}

// JobEvent reports a lifecycle transition for a job. Status defaults to
// Succeeded when omitted on a completed event.
type JobEvent struct {
	Phase      string `json:"phase" binding:"required"`
	Status     string `json:"status,omitempty"`
	ResultCode *int   `json:"result_code,omitempty"`
	StdoutTail string `json:"stdout_tail,omitempty"`
	StderrTail string `json:"stderr_tail,omitempty"`
}
