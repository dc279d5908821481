package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// MachineStatus represents machine reachability as seen by the server
type MachineStatus string

const (
	MachineStatusOnline  MachineStatus = "online"
	MachineStatusOffline MachineStatus = "offline"
)

// Machine represents an enrolled endpoint. Machines are never deleted;
// re-enrollment by hostname rotates the credential instead of creating
// a duplicate row.
type Machine struct {
	BaseModel
	Hostname          string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"hostname"`
	OS                string         `gorm:"type:varchar(32)" json:"os"`
	Arch              string         `gorm:"type:varchar(32)" json:"arch"`
	Tags              datatypes.JSON `gorm:"type:json" json:"tags"`
	AgentVersion      string         `gorm:"type:varchar(64)" json:"agent_version,omitempty"`
	Credential        string         `gorm:"type:varchar(128);uniqueIndex" json:"-"`
	CredentialRevoked bool           `gorm:"type:tinyint;default:0" json:"credential_revoked"`
	Status            MachineStatus  `gorm:"type:varchar(16);default:'offline'" json:"status"`
	LastSeenAt        *time.Time     `json:"last_seen_at,omitempty"`
}

// TableName specifies the table name for Machine
func (Machine) TableName() string {
	return "machines"
}

// TagList decodes the JSON tags column into a string slice
func (m *Machine) TagList() []string {
	var tags []string
	if len(m.Tags) > 0 {
		_ = json.Unmarshal(m.Tags, &tags)
	}
	return tags
}

// SetTags encodes a string slice into the JSON tags column
func (m *Machine) SetTags(tags []string) {
	if tags == nil {
		tags = []string{}
	}
	b, _ := json.Marshal(tags)
	m.Tags = datatypes.JSON(b)
}
