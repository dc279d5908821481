// Package agent runs the endpoint poll loop: enroll once, then
// repeatedly flush queued reports, fetch the plan and execute it.
package agent

import (
	"errors"
	"os"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"fleetdeploy/agent/client"
	"fleetdeploy/agent/config"
	"fleetdeploy/agent/executor"
	"fleetdeploy/agent/ledger"
	"fleetdeploy/internal/protocol"
)

// Version is the agent build version reported at enrollment
const Version = "1.0.0"

// Agent owns the poll loop
type Agent struct {
	cfg    *config.Config
	client *client.Client
	ledger *ledger.Ledger
	exec   *executor.Executor
	logger *logrus.Entry
}

// New enrolls the machine when it has no identity yet, persists the
// issued credential, and wires up the agent.
func New(cfg *config.Config, logger *logrus.Entry) (*Agent, error) {
	if cfg.Credential == "" || cfg.MachineID == 0 {
		logger.Info("No machine identity, enrolling...")

		hostname, _ := os.Hostname()
		resp, err := client.Enroll(cfg.ServerURL, protocol.EnrollRequest{
			Hostname:     hostname,
			OS:           runtime.GOOS,
			Arch:         runtime.GOARCH,
			AgentVersion: Version,
			Tags:         cfg.Tags,
		})
		if err != nil {
			return nil, err
		}
		if err := cfg.SaveIdentity(resp.MachineID, resp.Credential); err != nil {
			logger.Warnf("Failed to persist identity: %v", err)
		}
		logger.Infof("Enrolled as machine %d", resp.MachineID)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	led, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		return nil, err
	}

	c := client.New(cfg.ServerURL, cfg.Credential)
	exec := executor.New(led, executor.ShellRunner{}, c, cfg.CacheDir(), logger)

	return &Agent{
		cfg:    cfg,
		client: c,
		ledger: led,
		exec:   exec,
		logger: logger.WithField("component", "agent"),
	}, nil
}

// Close releases the agent's local resources
func (a *Agent) Close() error {
	return a.ledger.Close()
}

// Run polls forever. Nothing inside the loop is fatal.
func (a *Agent) Run() {
	a.logger.Infof("Agent started, machine %d, polling %s every %ds",
		a.cfg.MachineID, a.cfg.ServerURL, a.cfg.PollIntervalSec)

	interval := time.Duration(a.cfg.PollIntervalSec) * time.Second
	for {
		a.Tick()
		time.Sleep(interval)
	}
}

// Tick runs one poll cycle
func (a *Agent) Tick() {
	a.flushPending()

	entries, err := a.client.FetchPlan()
	if err != nil {
		a.logger.Errorf("Failed to fetch plan: %v", err)
		return
	}
	if len(entries) == 0 {
		return
	}
	a.logger.Infof("Plan has %d entries", len(entries))

	// Entries run strictly in order; one poorly behaved package must not
	// interleave with the next.
	for _, entry := range entries {
		a.handle(entry)
	}
}

func (a *Agent) handle(entry protocol.PlanEntry) {
	log := a.logger.WithFields(logrus.Fields{
		"job_id":  entry.JobID,
		"package": entry.Package.Name,
		"action":  entry.Action,
	})

	skip, err := a.exec.Check(entry)
	if err != nil {
		log.Errorf("Local state check failed: %v", err)
		return
	}
	if skip != nil {
		log.Info("Local state already satisfies the action")
		a.deliver(entry.JobID, skip.Event())
		return
	}

	if err := a.client.PostJobEvent(entry.JobID, protocol.JobEvent{Phase: protocol.PhaseStart}); err != nil {
		if !errors.Is(err, client.ErrEventConflict) {
			// Server unreachable or refused the claim; leave the job for
			// the next poll rather than run work we cannot report.
			log.Errorf("Failed to report start: %v", err)
			return
		}
	}

	log.Info("Executing")
	outcome := a.exec.Execute(entry)
	log.Infof("Finished with status %s (rc %d)", outcome.Status, outcome.ResultCode)

	a.deliver(entry.JobID, outcome.Event())
}

// deliver sends a completion report, queueing it locally when the server
// is unreachable so it is retried on later polls.
func (a *Agent) deliver(jobID int, ev protocol.JobEvent) {
	err := a.client.PostJobEvent(jobID, ev)
	if err == nil || errors.Is(err, client.ErrEventConflict) {
		return
	}
	a.logger.Warnf("Failed to deliver completion for job %d, queueing: %v", jobID, err)
	if qerr := a.ledger.QueueEvent(jobID, ev); qerr != nil {
		a.logger.Errorf("Failed to queue completion for job %d: %v", jobID, qerr)
	}
}

// flushPending retries queued completion reports in order. A conflict
// means the server already has a terminal record, which counts as
// delivered.
func (a *Agent) flushPending() {
	events, err := a.ledger.PendingEvents()
	if err != nil {
		a.logger.Errorf("Failed to read pending events: %v", err)
		return
	}

	for _, qe := range events {
		err := a.client.PostJobEvent(qe.JobID, qe.Event)
		if err != nil && !errors.Is(err, client.ErrEventConflict) {
			// Still unreachable; keep the rest queued too
			return
		}
		if derr := a.ledger.DeleteEvent(qe.ID); derr != nil {
			a.logger.Errorf("Failed to dequeue event %d: %v", qe.ID, derr)
			return
		}
	}
}
