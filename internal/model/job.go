package model

import "time"

// Job status constants
const (
	JobStatusPending    = "Pending"
	JobStatusInProgress = "InProgress"
	JobStatusSucceeded  = "Succeeded"
	JobStatusFailed     = "Failed"
)

// OutputTailLimit bounds stored stdout/stderr captures per job
const OutputTailLimit = 4096

// Job is one concrete execution attempt for a (machine, package, action)
// triple. At most one non-terminal job may exist per (machine, package)
// pair; a later desired-state change creates a new job rather than
// reopening a terminal one.
type Job struct {
	BaseModel
	MachineID  int        `gorm:"not null;index:idx_machine_package_status" json:"machine_id"`
	PackageID  int        `gorm:"not null;index:idx_machine_package_status" json:"package_id"`
	Action     string     `gorm:"type:varchar(16);not null" json:"action"`
	Status     string     `gorm:"type:varchar(16);default:'Pending';index:idx_machine_package_status" json:"status"`
	Attempts   int        `gorm:"default:0" json:"attempts"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	ResultCode *int       `json:"result_code,omitempty"`
	StdoutTail string     `gorm:"type:text" json:"stdout_tail,omitempty"`
	StderrTail string     `gorm:"type:text" json:"stderr_tail,omitempty"`
}

// TableName specifies the table name for Job
func (Job) TableName() string {
	return "jobs"
}

// Terminal reports whether the job reached a final state
func (j *Job) Terminal() bool {
	return j.Status == JobStatusSucceeded || j.Status == JobStatusFailed
}

// TruncateTail keeps the last OutputTailLimit bytes of s
func TruncateTail(s string) string {
	if len(s) <= OutputTailLimit {
		return s
	}
	return s[len(s)-OutputTailLimit:]
}
