package model

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// Package represents one version of a deployable software package.
// Rows are immutable once a job references them: a new version means a
// new row, there is no update path.
type Package struct {
	BaseModel
	Name         string         `gorm:"type:varchar(255);not null;index" json:"name"`
	Version      string         `gorm:"type:varchar(64);not null" json:"version"`
	Platform     string         `gorm:"type:varchar(32);not null" json:"platform"`
	ArtifactURL  string         `gorm:"type:varchar(1024)" json:"artifact_url"`
	SHA256       string         `gorm:"type:varchar(64)" json:"sha256"`
	InstallCmd   string         `gorm:"type:text" json:"install_cmd"`
	UninstallCmd string         `gorm:"type:text" json:"uninstall_cmd"`
	SilentArgs   string         `gorm:"type:varchar(512)" json:"silent_args"`
	PrecheckCmd  string         `gorm:"type:text" json:"precheck_cmd"`
	PostcheckCmd string         `gorm:"type:text" json:"postcheck_cmd"`
	SuccessCodes datatypes.JSON `gorm:"type:json" json:"success_codes"`
}

// TableName specifies the table name for Package
func (Package) TableName() string {
	return "packages"
}

// SuccessCodeList decodes the success exit code set, defaulting to {0}
func (p *Package) SuccessCodeList() []int {
	var codes []int
	if len(p.SuccessCodes) > 0 {
		_ = json.Unmarshal(p.SuccessCodes, &codes)
	}
	if len(codes) == 0 {
		return []int{0}
	}
	return codes
}

// SetSuccessCodes encodes the success exit code set
func (p *Package) SetSuccessCodes(codes []int) {
	if codes == nil {
		codes = []int{}
	}
	b, _ := json.Marshal(codes)
	p.SuccessCodes = datatypes.JSON(b)
}
