//go:build windows

package service

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"time"

	"golang.org/x/sys/windows/svc"

	"tempagent/internal/logger"
)

// stopTimeout bounds how long the SCM stop request waits for shutdown.
const stopTimeout = 30 * time.Second

// WindowsService implements the Windows service interface.
type WindowsService struct {
	runFunc RunFunc
	cancel  context.CancelFunc
	mu      sync.Mutex
	stopped bool
}

// NewService creates a new platform-specific service.
func NewService(runFunc RunFunc) Service {
	return &WindowsService{
		runFunc: runFunc,
	}
}

// Run starts the service. Outside the SCM it runs in the console until
// Ctrl+C.
func (s *WindowsService) Run(ctx context.Context) error {
	if !s.IsService() {
		log := logger.WithComponent("windows-service")
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()

		s.mu.Lock()
		ctx, s.cancel = context.WithCancel(ctx)
		s.mu.Unlock()
		defer s.cancel()

		return s.runFunc(ctx, func() {
			log.Info().Msg("Running interactively, press Ctrl+C to stop")
		})
	}

	return svc.Run(Name, s)
}

// Stop requests the service to stop.
func (s *WindowsService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil && !s.stopped {
		s.stopped = true
		s.cancel()
	}
	return nil
}

// IsService returns true if running as a Windows service.
func (s *WindowsService) IsService() bool {
	isService, err := svc.IsWindowsService()
	if err != nil {
		return false
	}
	return isService
}

// Execute implements the svc.Handler interface. The service reports Running
// only after the run function signalled readiness, so a failed start shows up
// in the SCM as a service that never started.
func (s *WindowsService) Execute(args []string, r <-chan svc.ChangeRequest, changes chan<- svc.Status) (svcSpecificEC bool, exitCode uint32) {
	log := logger.WithComponent("windows-service")

	const acceptedCommands = svc.AcceptStop | svc.AcceptShutdown

	changes <- svc.Status{State: svc.StartPending}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	readyCh := make(chan struct{})
	var readyOnce sync.Once
	done := make(chan error, 1)
	go func() {
		done <- s.runFunc(ctx, func() { readyOnce.Do(func() { close(readyCh) }) })
	}()

	for {
		select {
		case <-readyCh:
			readyCh = nil
			changes <- svc.Status{State: svc.Running, Accepts: acceptedCommands}
			log.Info().Msg("Windows service started")

		case c := <-r:
			switch c.Cmd {
			case svc.Interrogate:
				changes <- c.CurrentStatus
				// Respond twice as per documentation
				time.Sleep(100 * time.Millisecond)
				changes <- c.CurrentStatus

			case svc.Stop, svc.Shutdown:
				log.Info().Msg("Received stop signal from Windows service control")
				changes <- svc.Status{State: svc.StopPending}
				s.Stop()

				select {
				case <-done:
				case <-time.After(stopTimeout):
					log.Warn().Msg("Timeout waiting for service to stop")
				}

				changes <- svc.Status{State: svc.Stopped}
				return false, 0

			default:
				log.Warn().Int("cmd", int(c.Cmd)).Msg("Unexpected service control command")
			}

		case err := <-done:
			if err != nil {
				log.Error().Err(err).Msg("Service run function exited with error")
				ReportStartupError(Name, err)
				changes <- svc.Status{State: svc.Stopped}
				return true, 1
			}
			changes <- svc.Status{State: svc.Stopped}
			return false, 0
		}
	}
}
