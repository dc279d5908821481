package service

import (
	"fmt"
	"time"

	"fleetdeploy/internal/model"
	"fleetdeploy/internal/protocol"

	"gorm.io/gorm"
)

// JobService owns the job lifecycle. Jobs move Pending -> InProgress ->
// Succeeded|Failed and never leave a terminal state; a later desired-state
// change produces a new job instead.
type JobService struct {
	db *gorm.DB
}

// NewJobService creates a new job service
func NewJobService(db *gorm.DB) *JobService {
	return &JobService{db: db}
}

// ScheduleTx creates a Pending job for (machine, package, action) inside the
// caller's transaction. It refuses to create a duplicate while another job
// for the pair is still Pending or InProgress.
func (s *JobService) ScheduleTx(tx *gorm.DB, machineID, packageID int, action string) (*model.Job, error) {
	var inflight int64
	err := tx.Model(&model.Job{}).
		Where("machine_id = ? AND package_id = ? AND status IN ?",
			machineID, packageID, []string{model.JobStatusPending, model.JobStatusInProgress}).
		Count(&inflight).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check in-flight jobs: %w", err)
	}
	if inflight > 0 {
		return nil, ErrJobInFlight
	}

	job := &model.Job{
		MachineID: machineID,
		PackageID: packageID,
		Action:    action,
		Status:    model.JobStatusPending,
	}
	if err := tx.Create(job).Error; err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

// RecordEvent applies a lifecycle event reported by an agent.
//
// phase "start" moves Pending -> InProgress, increments the attempt counter
// and stamps started_at. phase "completed" finalises the job with the
// reported status (default Succeeded), result code and bounded output tails.
// Events against a terminal job are rejected with ErrJobTerminal so that
// retried deliveries cannot clobber an already-recorded outcome.
func (s *JobService) RecordEvent(jobID, machineID int, ev protocol.JobEvent) (*model.Job, error) {
	storeMu.Lock()
	defer storeMu.Unlock()

	var job model.Job
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&job, jobID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrJobNotFound
			}
			return err
		}

		if job.MachineID != machineID {
			return ErrWrongMachine
		}

		now := time.Now()
		switch ev.Phase {
		case protocol.PhaseStart:
			if job.Terminal() {
				return ErrJobTerminal
			}
			updates := map[string]interface{}{
				"status":     model.JobStatusInProgress,
				"started_at": now,
				"attempts":   gorm.Expr("attempts + 1"),
			}
			if err := tx.Model(&job).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to record start event: %w", err)
			}
			job.Status = model.JobStatusInProgress
			job.StartedAt = &now
			job.Attempts++
			return nil

		case protocol.PhaseCompleted:
			if job.Terminal() {
				return ErrJobTerminal
			}
			status := ev.Status
			if status == "" {
				status = model.JobStatusSucceeded
			}
			if status != model.JobStatusSucceeded && status != model.JobStatusFailed {
				return ErrInvalidPhase
			}
			updates := map[string]interface{}{
				"status":      status,
				"finished_at": now,
				"result_code": ev.ResultCode,
				"stdout_tail": model.TruncateTail(ev.StdoutTail),
				"stderr_tail": model.TruncateTail(ev.StderrTail),
			}
			if err := tx.Model(&job).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to record completed event: %w", err)
			}
			job.Status = status
			job.FinishedAt = &now
			job.ResultCode = ev.ResultCode
			job.StdoutTail = model.TruncateTail(ev.StdoutTail)
			job.StderrTail = model.TruncateTail(ev.StderrTail)
			return nil

		default:
			return ErrInvalidPhase
		}
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Get returns a job by id
func (s *JobService) Get(jobID int) (*model.Job, error) {
	var job model.Job
	if err := s.db.First(&job, jobID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// ListFilter narrows the job listing
type ListFilter struct {
	MachineID int
	Status    string
	Page      int
	PageSize  int
}

// List returns jobs ordered newest first with optional filters
func (s *JobService) List(f ListFilter) ([]model.Job, int64, error) {
	query := s.db.Model(&model.Job{})
	if f.MachineID > 0 {
		query = query.Where("machine_id = ?", f.MachineID)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 100 {
		f.PageSize = 20
	}

	var jobs []model.Job
	offset := (f.Page - 1) * f.PageSize
	if err := query.Order("id DESC").Offset(offset).Limit(f.PageSize).Find(&jobs).Error; err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}
