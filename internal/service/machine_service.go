package service

import (
	"fmt"
	"strings"
	"time"

	"fleetdeploy/internal/model"
	"fleetdeploy/internal/protocol"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MachineService manages the machine inventory and agent credentials
type MachineService struct {
	db *gorm.DB
}

// NewMachineService creates a new machine service
func NewMachineService(db *gorm.DB) *MachineService {
	return &MachineService{db: db}
}

func newCredential() string {
	// Two UUIDs stripped of dashes give a 64-char opaque bearer token
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

// Enroll registers a machine or, when the hostname is already known,
// updates its metadata. Either way a fresh credential is issued: every
// enrollment rotates the token, invalidating the previous one.
func (s *MachineService) Enroll(req protocol.EnrollRequest) (*model.Machine, error) {
	var machine model.Machine

	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("hostname = ?", req.Hostname).First(&machine).Error
		now := time.Now()

		switch {
		case err == gorm.ErrRecordNotFound:
			machine = model.Machine{
				Hostname:     req.Hostname,
				OS:           req.OS,
				Arch:         req.Arch,
				AgentVersion: req.AgentVersion,
				Credential:   newCredential(),
				Status:       model.MachineStatusOnline,
				LastSeenAt:   &now,
			}
			machine.SetTags(req.Tags)
			if err := tx.Create(&machine).Error; err != nil {
				return fmt.Errorf("failed to create machine: %w", err)
			}
			return nil

		case err != nil:
			return err

		default:
			machine.Credential = newCredential()
			machine.CredentialRevoked = false
			machine.Status = model.MachineStatusOnline
			machine.LastSeenAt = &now
			if req.OS != "" {
				machine.OS = req.OS
			}
			if req.Arch != "" {
				machine.Arch = req.Arch
			}
			if req.AgentVersion != "" {
				machine.AgentVersion = req.AgentVersion
			}
			if err := tx.Save(&machine).Error; err != nil {
				return fmt.Errorf("failed to update machine: %w", err)
			}
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	return &machine, nil
}

// AuthenticateByCredential resolves a non-revoked machine credential
func (s *MachineService) AuthenticateByCredential(credential string) (*model.Machine, error) {
	var machine model.Machine
	err := s.db.Where("credential = ? AND credential_revoked = ?", credential, false).
		First(&machine).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrMachineNotFound
		}
		return nil, err
	}
	return &machine, nil
}

// TouchLastSeen updates the last-contact timestamp and flips the machine online
func (s *MachineService) TouchLastSeen(machineID int) error {
	return s.db.Model(&model.Machine{}).Where("id = ?", machineID).
		Updates(map[string]interface{}{
			"last_seen_at": time.Now(),
			"status":       model.MachineStatusOnline,
		}).Error
}

// Get returns a machine by id
func (s *MachineService) Get(machineID int) (*model.Machine, error) {
	var machine model.Machine
	if err := s.db.First(&machine, machineID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrMachineNotFound
		}
		return nil, err
	}
	return &machine, nil
}

// List returns all machines ordered newest first
func (s *MachineService) List() ([]model.Machine, error) {
	var machines []model.Machine
	if err := s.db.Order("id DESC").Find(&machines).Error; err != nil {
		return nil, err
	}
	return machines, nil
}

// Update changes the administrative fields of a machine
func (s *MachineService) Update(machineID int, hostname *string, tags []string) (*model.Machine, error) {
	machine, err := s.Get(machineID)
	if err != nil {
		return nil, err
	}

	if hostname != nil && *hostname != "" {
		machine.Hostname = *hostname
	}
	if tags != nil {
		machine.SetTags(tags)
	}

	if err := s.db.Save(machine).Error; err != nil {
		return nil, fmt.Errorf("failed to update machine: %w", err)
	}
	return machine, nil
}
