// Package service runs the agent under the host's service manager: the
// Windows service control manager, systemd, or an interactive console.
package service

import "context"

// Name is the registered service name, also used as the event log source.
const Name = "TempAgent"

// Service runs a RunFunc under the platform's service manager.
type Service interface {
	// Run starts the service. It blocks until the service is stopped.
	Run(ctx context.Context) error

	// Stop requests the service to stop.
	Stop() error

	// IsService returns true if running under a service manager.
	IsService() bool
}

// RunFunc is the agent body. It must call ready once sampling is running,
// then block until ctx is cancelled and return after shutdown completed.
// An error returned before ready is a startup failure.
type RunFunc func(ctx context.Context, ready func()) error
