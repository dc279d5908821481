package sweeper

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"fleetdeploy/internal/model"
)

// Worker periodically marks silent machines offline and reports jobs
// that have been in progress for too long.
type Worker struct {
	ctx           context.Context
	cancel        context.CancelFunc
	db            *gorm.DB
	logger        *logrus.Entry
	interval      time.Duration
	offlineAfter  time.Duration
	stuckJobAfter time.Duration
}

// Config holds the configuration for the sweeper worker
type Config struct {
	DB               *gorm.DB
	Logger           *logrus.Entry
	IntervalSec      int
	OfflineAfterSec  int
	StuckJobAfterSec int
}

// NewWorker creates a new sweeper worker
func NewWorker(cfg *Config) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		ctx:           ctx,
		cancel:        cancel,
		db:            cfg.DB,
		logger:        cfg.Logger.WithField("component", "sweeper"),
		interval:      time.Duration(cfg.IntervalSec) * time.Second,
		offlineAfter:  time.Duration(cfg.OfflineAfterSec) * time.Second,
		stuckJobAfter: time.Duration(cfg.StuckJobAfterSec) * time.Second,
	}
}

// Start begins the periodic sweeps
func (w *Worker) Start() {
	w.logger.Info("Starting sweeper worker...")
	ticker := time.NewTicker(w.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.Sweep()
			case <-w.ctx.Done():
				w.logger.Info("Stopping sweeper worker...")
				return
			}
		}
	}()
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.cancel()
}

// Sweep runs one pass over machines and jobs
func (w *Worker) Sweep() {
	w.sweepMachines()
	w.sweepStuckJobs()
}

func (w *Worker) sweepMachines() {
	cutoff := time.Now().Add(-w.offlineAfter)

	result := w.db.Model(&model.Machine{}).
		Where("status = ? AND (last_seen_at IS NULL OR last_seen_at < ?)",
			model.MachineStatusOnline, cutoff).
		Update("status", model.MachineStatusOffline)
	if result.Error != nil {
		w.logger.Errorf("Failed to sweep machines: %v", result.Error)
		return
	}
	if result.RowsAffected > 0 {
		w.logger.Infof("Marked %d machine(s) offline", result.RowsAffected)
	}
}

// sweepStuckJobs only reports; the agent retries delivery, so the record
// must stay InProgress until a completion event arrives.
func (w *Worker) sweepStuckJobs() {
	cutoff := time.Now().Add(-w.stuckJobAfter)

	var jobs []model.Job
	err := w.db.Where("status = ? AND started_at < ?", model.JobStatusInProgress, cutoff).
		Find(&jobs).Error
	if err != nil {
		w.logger.Errorf("Failed to sweep jobs: %v", err)
		return
	}

	for _, job := range jobs {
		w.logger.WithFields(logrus.Fields{
			"job_id":     job.ID,
			"machine_id": job.MachineID,
			"package_id": job.PackageID,
			"started_at": job.StartedAt,
		}).Warn("Job has been in progress past the stuck threshold")
	}
}
