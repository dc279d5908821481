package model

// Desired state constants
const (
	DesiredStateInstall   = "install"
	DesiredStateUninstall = "uninstall"
	DesiredStateHold      = "hold"
)

// Assignment stores the desired state for one (machine, package) pair
type Assignment struct {
	BaseModel
	MachineID    int    `gorm:"not null;uniqueIndex:uniq_machine_package" json:"machine_id"`
	PackageID    int    `gorm:"not null;uniqueIndex:uniq_machine_package" json:"package_id"`
	DesiredState string `gorm:"type:varchar(16);not null" json:"desired_state"`
}

// TableName specifies the table name for Assignment
func (Assignment) TableName() string {
	return "assignments"
}

// ValidDesiredState reports whether s is one of install/uninstall/hold
func ValidDesiredState(s string) bool {
	return s == DesiredStateInstall || s == DesiredStateUninstall || s == DesiredStateHold
}

// ActionableState reports whether s requires work on the machine
func ActionableState(s string) bool {
	return s == DesiredStateInstall || s == DesiredStateUninstall
}
