package config

import (
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds the agent configuration. MachineID and Credential start
// empty and are written back after enrollment.
type Config struct {
	ServerURL       string
	MachineID       int
	Credential      string
	PollIntervalSec int
	DataDir         string
	Tags            []string
}

// Load reads the agent config file, with FLEET_ prefixed environment
// variables taking precedence.
func Load() *Config {
	viper.SetConfigName("agent")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/fleetdeploy")
	viper.SetEnvPrefix("FLEET")
	viper.AutomaticEnv()

	viper.SetDefault("ServerURL", "http://localhost:8080")
	viper.SetDefault("PollIntervalSec", 30)
	viper.SetDefault("DataDir", defaultDataDir())

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("No config file found, using defaults")
	}

	return &Config{
		ServerURL:       viper.GetString("ServerURL"),
		MachineID:       viper.GetInt("MachineID"),
		Credential:      viper.GetString("Credential"),
		PollIntervalSec: viper.GetInt("PollIntervalSec"),
		DataDir:         viper.GetString("DataDir"),
		Tags:            viper.GetStringSlice("Tags"),
	}
}

// SaveIdentity persists the issued machine identity so later runs skip
// enrollment.
func (c *Config) SaveIdentity(machineID int, credential string) error {
	c.MachineID = machineID
	c.Credential = credential

	viper.Set("MachineID", machineID)
	viper.Set("Credential", credential)
	if err := viper.WriteConfig(); err != nil {
		// No config file existed yet; create one next to the data dir
		return viper.WriteConfigAs("agent.yaml")
	}
	return nil
}

// LedgerPath returns the location of the agent's local state database
func (c *Config) LedgerPath() string {
	return filepath.Join(c.DataDir, "ledger.db")
}

// CacheDir returns the artifact cache directory
func (c *Config) CacheDir() string {
	return filepath.Join(c.DataDir, "cache")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fleetdeploy"
	}
	return filepath.Join(home, ".fleetdeploy")
}
