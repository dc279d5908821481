package service

import (
	"path/filepath"
	"testing"

	"fleetdeploy/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a throwaway sqlite database with the full schema
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	models := []interface{}{
		&model.User{},
		&model.Machine{},
		&model.Package{},
		&model.Assignment{},
		&model.Job{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func seedMachine(t *testing.T, db *gorm.DB, hostname string) *model.Machine {
	t.Helper()
	m := &model.Machine{
		Hostname:   hostname,
		OS:         "linux",
		Arch:       "amd64",
		Credential: "cred-" + hostname,
	}
	m.SetTags([]string{"test"})
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("failed to seed machine: %v", err)
	}
	return m
}

func seedPackage(t *testing.T, db *gorm.DB, name, version string) *model.Package {
	t.Helper()
	p := &model.Package{
		Name:         name,
		Version:      version,
		Platform:     "linux",
		ArtifactURL:  "http://example.com/" + name + ".tar.gz",
		InstallCmd:   "install {file}",
		UninstallCmd: "uninstall " + name,
	}
	p.SetSuccessCodes(nil)
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("failed to seed package: %v", err)
	}
	return p
}

func countNonTerminalJobs(t *testing.T, db *gorm.DB, machineID, packageID int) int64 {
	t.Helper()
	var n int64
	err := db.Model(&model.Job{}).
		Where("machine_id = ? AND package_id = ? AND status IN ?",
			machineID, packageID, []string{model.JobStatusPending, model.JobStatusInProgress}).
		Count(&n).Error
	if err != nil {
		t.Fatalf("failed to count jobs: %v", err)
	}
	return n
}
