package service

import "errors"

// Sentinel errors surfaced to the API layer
var (
	ErrMachineNotFound = errors.New("machine not found")
	ErrPackageNotFound = errors.New("package not found")
	ErrJobNotFound     = errors.New("job not found")
	ErrJobTerminal     = errors.New("job already in terminal state")
	ErrJobInFlight     = errors.New("a job for this machine and package is already in flight")
	ErrWrongMachine    = errors.New("job does not belong to this machine")
	ErrInvalidState    = errors.New("invalid desired state")
	ErrInvalidPhase    = errors.New("invalid event phase")
)
