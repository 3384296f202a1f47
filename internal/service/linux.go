//go:build !windows

package service

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"

	"tempagent/internal/logger"
)

// notifyFunc matches daemon.SdNotify.
type notifyFunc func(unsetEnvironment bool, state string) (bool, error)

// LinuxService handles SIGINT/SIGTERM and reports readiness and shutdown to
// systemd when started as a Type=notify unit.
type LinuxService struct {
	runFunc RunFunc
	notify  notifyFunc
	signals chan os.Signal
	cancel  context.CancelFunc
	mu      sync.Mutex
	stopped bool
}

// NewService creates a new platform-specific service.
func NewService(runFunc RunFunc) Service {
	return &LinuxService{
		runFunc: runFunc,
		notify:  daemon.SdNotify,
		signals: make(chan os.Signal, 1),
	}
}

// Run starts the service and handles signals for graceful shutdown.
func (s *LinuxService) Run(ctx context.Context) error {
	log := logger.WithComponent("linux-service")

	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	defer s.cancel()

	signal.Notify(s.signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.signals)

	done := make(chan error, 1)
	go func() {
		done <- s.runFunc(ctx, s.ready)
	}()

	select {
	case sig := <-s.signals:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		s.Stop()

		select {
		case err := <-done:
			return err
		case sig := <-s.signals:
			log.Warn().Str("signal", sig.String()).Msg("Received second signal, forcing exit")
			return nil
		}

	case err := <-done:
		return err
	}
}

func (s *LinuxService) ready() {
	log := logger.WithComponent("linux-service")
	sent, err := s.notify(false, daemon.SdNotifyReady)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to notify systemd")
	}
	log.Info().Bool("systemd_notified", sent).Msg("Service started")
}

// Stop requests the service to stop.
func (s *LinuxService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil && !s.stopped {
		s.stopped = true
		_, _ = s.notify(false, daemon.SdNotifyStopping)
		s.cancel()
	}
	return nil
}

// IsService reports whether stdin is not a terminal, which is the case for
// systemd units.
func (s *LinuxService) IsService() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) == 0
}
