package service

import (
	"sort"

	"fleetdeploy/internal/model"
	"fleetdeploy/internal/protocol"

	"gorm.io/gorm"
)

// PlanService compiles the ordered work list returned to a polling agent
type PlanService struct {
	db *gorm.DB
}

// NewPlanService creates a new plan service
func NewPlanService(db *gorm.DB) *PlanService {
	return &PlanService{db: db}
}

// ComputePlan joins the machine's assignments against the package catalog
// and the in-flight jobs. Hold assignments are skipped; actionable
// assignments without a non-terminal job are already converged and omitted.
// The action always reflects the current desired state, while the job id is
// the pair's non-terminal job. Entries are ordered by job id so repeated
// polls without a state change return an identical plan.
func (s *PlanService) ComputePlan(machineID int) ([]protocol.PlanEntry, error) {
	var assignments []model.Assignment
	if err := s.db.Where("machine_id = ?", machineID).Find(&assignments).Error; err != nil {
		return nil, err
	}

	entries := make([]protocol.PlanEntry, 0, len(assignments))
	for _, a := range assignments {
		if !model.ActionableState(a.DesiredState) {
			continue
		}

		var job model.Job
		err := s.db.Where("machine_id = ? AND package_id = ? AND status IN ?",
			a.MachineID, a.PackageID, []string{model.JobStatusPending, model.JobStatusInProgress}).
			Order("id DESC").
			First(&job).Error
		if err == gorm.ErrRecordNotFound {
			// Converged: nothing in flight for this pair
			continue
		}
		if err != nil {
			return nil, err
		}

		var pkg model.Package
		if err := s.db.First(&pkg, a.PackageID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				continue
			}
			return nil, err
		}

		entries = append(entries, protocol.PlanEntry{
			JobID:   job.ID,
			Action:  a.DesiredState,
			Package: PackageSpec(&pkg),
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].JobID < entries[j].JobID })
	return entries, nil
}

// PackageSpec converts a package row into its wire representation
func PackageSpec(p *model.Package) protocol.PackageSpec {
	return protocol.PackageSpec{
		ID:           p.ID,
		Name:         p.Name,
		Version:      p.Version,
		Platform:     p.Platform,
		ArtifactURL:  p.ArtifactURL,
		SHA256:       p.SHA256,
		InstallCmd:   p.InstallCmd,
		UninstallCmd: p.UninstallCmd,
		SilentArgs:   p.SilentArgs,
		PrecheckCmd:  p.PrecheckCmd,
		PostcheckCmd: p.PostcheckCmd,
		SuccessCodes: p.SuccessCodeList(),
	}
}
