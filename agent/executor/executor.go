// Package executor carries out plan entries on the local machine:
// artifact download and verification, command execution, and the local
// installed-state bookkeeping that makes actions idempotent.
package executor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"fleetdeploy/agent/ledger"
	"fleetdeploy/internal/model"
	"fleetdeploy/internal/protocol"
)

// Runner executes a shell command and returns its exit code and output
// tails. Execution failures that never produced an exit code are
// reported as code 1 with the error text on stderr.
type Runner interface {
	Run(command string) (rc int, stdoutTail, stderrTail string)
}

// Downloader fetches an artifact URL into a local file
type Downloader interface {
	Download(url, dest string) error
}

// Outcome is the result of acting on one plan entry
type Outcome struct {
	Status     string
	ResultCode int
	StdoutTail string
	StderrTail string
}

// Event converts the outcome into a completion report
func (o Outcome) Event() protocol.JobEvent {
	rc := o.ResultCode
	return protocol.JobEvent{
		Phase:      protocol.PhaseCompleted,
		Status:     o.Status,
		ResultCode: &rc,
		StdoutTail: o.StdoutTail,
		StderrTail: o.StderrTail,
	}
}

// Executor acts on plan entries
type Executor struct {
	ledger   *ledger.Ledger
	runner   Runner
	download Downloader
	cacheDir string
	logger   *logrus.Entry
}

// New creates an executor
func New(led *ledger.Ledger, runner Runner, download Downloader, cacheDir string, logger *logrus.Entry) *Executor {
	return &Executor{
		ledger:   led,
		runner:   runner,
		download: download,
		cacheDir: cacheDir,
		logger:   logger.WithField("component", "executor"),
	}
}

// Check consults the local ledger and returns a synthetic success when
// the machine already satisfies the entry's action. A nil outcome means
// the action actually needs to run.
func (e *Executor) Check(entry protocol.PlanEntry) (*Outcome, error) {
	pkg := entry.Package
	version, installed, err := e.ledger.InstalledVersion(pkg.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	switch entry.Action {
	case "install":
		if installed && version == pkg.Version {
			return &Outcome{Status: protocol.StatusSucceeded, StdoutTail: "already installed"}, nil
		}
	case "uninstall":
		if !installed {
			return &Outcome{Status: protocol.StatusSucceeded, StdoutTail: "already uninstalled"}, nil
		}
	}
	return nil, nil
}

// Execute performs the entry's action and records the result in the
// local ledger on success. It never panics outward: anything unexpected
// becomes a Failed outcome with code 1.
func (e *Executor) Execute(entry protocol.PlanEntry) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Errorf("Execution panicked for job %d: %v", entry.JobID, r)
			outcome = Outcome{
				Status:     protocol.StatusFailed,
				ResultCode: 1,
				StderrTail: fmt.Sprintf("execution panicked: %v", r),
			}
		}
	}()

	pkg := entry.Package
	rc, stdout, stderr := e.perform(entry)

	outcome = Outcome{
		ResultCode: rc,
		StdoutTail: model.TruncateTail(stdout),
		StderrTail: model.TruncateTail(stderr),
	}
	if containsCode(successCodes(pkg), rc) {
		outcome.Status = protocol.StatusSucceeded
	} else {
		outcome.Status = protocol.StatusFailed
		return outcome
	}

	var err error
	switch entry.Action {
	case "install":
		err = e.ledger.RecordInstall(pkg.Name, pkg.Version, pkg.ID)
	case "uninstall":
		err = e.ledger.RecordUninstall(pkg.Name)
	}
	if err != nil {
		e.logger.Errorf("Failed to update ledger for job %d: %v", entry.JobID, err)
	}
	return outcome
}

func (e *Executor) perform(entry protocol.PlanEntry) (int, string, string) {
	pkg := entry.Package
	artifactPath := filepath.Join(e.cacheDir, fmt.Sprintf("pkg_%d_%s", pkg.ID, pkg.Version))

	if pkg.ArtifactURL != "" {
		if err := e.ensureArtifact(pkg, artifactPath); err != nil {
			return 1, "", err.Error()
		}
	}

	if pkg.PrecheckCmd != "" {
		rc, out, errOut := e.runner.Run(pkg.PrecheckCmd)
		if rc != 0 {
			return rc, out, errOut
		}
	}

	var base string
	if entry.Action == "install" {
		base = pkg.InstallCmd
	} else {
		base = pkg.UninstallCmd
	}
	if base == "" {
		return 1, "", "no command defined"
	}

	cmd := strings.ReplaceAll(base, "{file}", artifactPath)
	if pkg.SilentArgs != "" {
		cmd = cmd + " " + pkg.SilentArgs
	}

	rc, stdout, stderr := e.runner.Run(cmd)

	// A failing postcheck overrides the main command's result
	if pkg.PostcheckCmd != "" {
		rc2, out2, err2 := e.runner.Run(pkg.PostcheckCmd)
		if rc2 != 0 {
			return rc2, out2, err2
		}
	}
	return rc, stdout, stderr
}

// ensureArtifact downloads the artifact when the cache misses and
// verifies the checksum. A corrupt cached file is removed so the next
// attempt re-downloads it.
func (e *Executor) ensureArtifact(pkg protocol.PackageSpec, path string) error {
	if err := os.MkdirAll(e.cacheDir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		e.logger.Infof("Downloading %s %s", pkg.Name, pkg.Version)
		if err := e.download.Download(pkg.ArtifactURL, path); err != nil {
			return fmt.Errorf("download failed: %w", err)
		}
	}

	if pkg.SHA256 == "" {
		return nil
	}
	sum, err := fileSHA256(path)
	if err != nil {
		return fmt.Errorf("failed to hash artifact: %w", err)
	}
	if !strings.EqualFold(sum, pkg.SHA256) {
		_ = os.Remove(path)
		return fmt.Errorf("checksum mismatch for %s: got %s", pkg.Name, sum)
	}
	return nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func successCodes(pkg protocol.PackageSpec) []int {
	if len(pkg.SuccessCodes) == 0 {
		return []int{0}
	}
	return pkg.SuccessCodes
}

func containsCode(codes []int, rc int) bool {
	for _, c := range codes {
		if c == rc {
			return true
		}
	}
	return false
}
