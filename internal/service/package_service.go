package service

import (
	"fmt"

	"fleetdeploy/internal/model"

	"gorm.io/gorm"
)

// PackageService manages the package catalog. Packages are immutable once
// created: a new version of a piece of software is a new row, so job
// history keeps pointing at the exact spec it executed.
type PackageService struct {
	db *gorm.DB
}

// NewPackageService creates a new package service
func NewPackageService(db *gorm.DB) *PackageService {
	return &PackageService{db: db}
}

// PackageInput carries the fields for a new catalog entry
type PackageInput struct {
	Name         string `json:"name" binding:"required"`
	Version      string `json:"version" binding:"required"`
	Platform     string `json:"platform" binding:"required"`
	ArtifactURL  string `json:"artifact_url"`
	SHA256       string `json:"sha256"`
	InstallCmd   string `json:"install_cmd"`
	UninstallCmd string `json:"uninstall_cmd"`
	SilentArgs   string `json:"silent_args"`
	PrecheckCmd  string `json:"precheck_cmd"`
	PostcheckCmd string `json:"postcheck_cmd"`
	SuccessCodes []int  `json:"success_codes"`
}

// Create inserts a new package
func (s *PackageService) Create(in PackageInput) (*model.Package, error) {
	pkg := &model.Package{
		Name:         in.Name,
		Version:      in.Version,
		Platform:     in.Platform,
		ArtifactURL:  in.ArtifactURL,
		SHA256:       in.SHA256,
		InstallCmd:   in.InstallCmd,
		UninstallCmd: in.UninstallCmd,
		SilentArgs:   in.SilentArgs,
		PrecheckCmd:  in.PrecheckCmd,
		PostcheckCmd: in.PostcheckCmd,
	}
	pkg.SetSuccessCodes(in.SuccessCodes)

	if err := s.db.Create(pkg).Error; err != nil {
		return nil, fmt.Errorf("failed to create package: %w", err)
	}
	return pkg, nil
}

// Get returns a package by id
func (s *PackageService) Get(packageID int) (*model.Package, error) {
	var pkg model.Package
	if err := s.db.First(&pkg, packageID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrPackageNotFound
		}
		return nil, err
	}
	return &pkg, nil
}

// List returns all packages ordered newest first
func (s *PackageService) List() ([]model.Package, error) {
	var packages []model.Package
	if err := s.db.Order("id DESC").Find(&packages).Error; err != nil {
		return nil, err
	}
	return packages, nil
}
