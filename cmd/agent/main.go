package main

import (
	"github.com/sirupsen/logrus"

	"fleetdeploy/agent"
	"fleetdeploy/agent/config"
)

func main() {
	logger := logrus.NewEntry(logrus.StandardLogger())

	cfg := config.Load()

	a, err := agent.New(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to start agent: %v", err)
	}
	defer a.Close()

	a.Run()
}
