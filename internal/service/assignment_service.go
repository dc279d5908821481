package service

import (
	"fmt"
	"sync"

	"fleetdeploy/internal/model"

	"gorm.io/gorm"
)

// storeMu serializes state-mutating operations against the shared store.
// Assignment upsert + job scheduling and job event recording are each one
// logical write; a single writer at a time keeps the at-most-one-in-flight
// invariant without distributed locking (there is one authoritative store).
var storeMu sync.Mutex

// AssignmentService is the desired-state store: it owns the durable
// install/uninstall/hold intent per (machine, package) pair and schedules
// jobs when that intent changes.
type AssignmentService struct {
	db   *gorm.DB
	jobs *JobService
}

// NewAssignmentService creates a new assignment service
func NewAssignmentService(db *gorm.DB, jobs *JobService) *AssignmentService {
	return &AssignmentService{db: db, jobs: jobs}
}

// SetAssignment upserts the desired state for (machine, package). When the
// stored state actually changes to install or uninstall, a job is scheduled
// in the same transaction: both the assignment and the job are committed
// together or rolled back together.
func (s *AssignmentService) SetAssignment(machineID, packageID int, state string) (*model.Assignment, *model.Job, error) {
	if !model.ValidDesiredState(state) {
		return nil, nil, ErrInvalidState
	}

	storeMu.Lock()
	defer storeMu.Unlock()

	var assignment model.Assignment
	var job *model.Job

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&model.Machine{}, machineID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrMachineNotFound
			}
			return err
		}
		if err := tx.First(&model.Package{}, packageID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrPackageNotFound
			}
			return err
		}

		err := tx.Where("machine_id = ? AND package_id = ?", machineID, packageID).
			First(&assignment).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			assignment = model.Assignment{
				MachineID:    machineID,
				PackageID:    packageID,
				DesiredState: state,
			}
			if err := tx.Create(&assignment).Error; err != nil {
				return fmt.Errorf("failed to create assignment: %w", err)
			}
		case err != nil:
			return err
		default:
			if assignment.DesiredState == state {
				// No change, no job
				return nil
			}
			if err := tx.Model(&assignment).Update("desired_state", state).Error; err != nil {
				return fmt.Errorf("failed to update assignment: %w", err)
			}
			assignment.DesiredState = state
		}

		if !model.ActionableState(state) {
			return nil
		}

		scheduled, err := s.jobs.ScheduleTx(tx, machineID, packageID, state)
		if err == ErrJobInFlight {
			// An unclaimed job for the pair already exists; the agent will
			// pick up the new intent through it or through the next change.
			return nil
		}
		if err != nil {
			return err
		}
		job = scheduled
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &assignment, job, nil
}

// List returns all assignments ordered newest first
func (s *AssignmentService) List() ([]model.Assignment, error) {
	var assignments []model.Assignment
	if err := s.db.Order("id DESC").Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}

// ListForMachine returns the assignments for one machine
func (s *AssignmentService) ListForMachine(machineID int) ([]model.Assignment, error) {
	var assignments []model.Assignment
	if err := s.db.Where("machine_id = ?", machineID).Order("id DESC").Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}

// MachinePackage pairs a package with the machine's desired state for it
type MachinePackage struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Version      string `json:"version"`
	Platform     string `json:"platform"`
	DesiredState string `json:"desired_state"`
}

// ListPackagesForMachine returns every package together with the desired
// state the machine has for it (hold when unassigned), optionally filtered
// by platform and a name/version substring.
func (s *AssignmentService) ListPackagesForMachine(machineID int, platform, q string) ([]MachinePackage, error) {
	query := s.db.Table("packages p").
		Select("p.id, p.name, p.version, p.platform, COALESCE(a.desired_state, 'hold') AS desired_state").
		Joins("LEFT JOIN assignments a ON a.package_id = p.id AND a.machine_id = ?", machineID)
	if platform != "" {
		query = query.Where("p.platform = ?", platform)
	}
	if q != "" {
		like := "%" + q + "%"
		query = query.Where("p.name LIKE ? OR p.version LIKE ?", like, like)
	}

	var result []MachinePackage
	if err := query.Order("p.name").Scan(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}
