package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	v1 "fleetdeploy/api/v1"
	"fleetdeploy/internal/auth"
	"fleetdeploy/internal/cache"
	"fleetdeploy/internal/config"
	"fleetdeploy/internal/db"
	"fleetdeploy/internal/model"
	"fleetdeploy/internal/sweeper"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
		os.Exit(1)
	}
	log.Println("✓ Configuration loaded")

	// 2. Initialize MySQL
	if err := db.InitMySQL(cfg.MySQL.DSN); err != nil {
		log.Fatalf("Failed to initialize MySQL: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3. Run migrations when requested
	if cfg.Migrate {
		if err := db.Migrate(db.DB); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
			os.Exit(1)
		}
	}

	// 4. Initialize Redis
	if err := cache.InitRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
		os.Exit(1)
	}
	defer cache.Close()

	// 5. Initialize JWT
	auth.InitJWT(cfg.JWT.Secret)
	log.Println("✓ JWT initialized")

	// 6. Ensure the bootstrap admin account exists
	if err := ensureAdminUser(cfg); err != nil {
		log.Fatalf("Failed to ensure admin user: %v", err)
		os.Exit(1)
	}

	// 7. Start the background sweeper
	if cfg.Sweeper.Enabled {
		w := sweeper.NewWorker(&sweeper.Config{
			DB:               db.DB,
			Logger:           logrus.NewEntry(logrus.StandardLogger()),
			IntervalSec:      cfg.Sweeper.IntervalSec,
			OfflineAfterSec:  cfg.Sweeper.OfflineAfterSec,
			StuckJobAfterSec: cfg.Sweeper.StuckJobAfterSec,
		})
		w.Start()
		defer w.Stop()
	}

	// 8. Initialize Gin router
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	v1.RegisterRoutes(r, db.DB, cache.Client, cfg)

	log.Printf("✓ Server starting on %s", cfg.HTTPAddr)

	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
		os.Exit(1)
	}
}

// ensureAdminUser creates the configured admin account on first boot.
// An existing account is left untouched so password changes survive restarts.
func ensureAdminUser(cfg *config.Config) error {
	if cfg.Admin.Password == "" {
		log.Println("✓ Admin bootstrap skipped (no password configured)")
		return nil
	}

	var count int64
	if err := db.DB.Model(&model.User{}).
		Where("username = ?", cfg.Admin.Username).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(cfg.Admin.Password)
	if err != nil {
		return err
	}
	user := model.User{
		Username:     cfg.Admin.Username,
		PasswordHash: hash,
		Role:         "admin",
	}
	if err := db.DB.Create(&user).Error; err != nil {
		return err
	}
	log.Printf("✓ Admin user %q created", cfg.Admin.Username)
	return nil
}
