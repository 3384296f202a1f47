// Package scheduler samples the hardware topology on a fixed period and
// persists the relevant temperature readings.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"tempagent/internal/config"
	"tempagent/internal/hardware"
	"tempagent/internal/logger"
	"tempagent/internal/reading"
	"tempagent/internal/writer"
)

// State is the lifecycle state of a Scheduler.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrNotStopped is returned by Start when the scheduler is not stopped.
var ErrNotStopped = errors.New("scheduler is not stopped")

// Options tunes a Scheduler. Zero values select the defaults.
type Options struct {
	Interval    time.Duration
	Categories  hardware.Categories
	AsyncWrites bool
	Clock       clock.Clock
}

// OptionsFromConfig builds Options from the agent configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Interval:    cfg.Interval,
		Categories:  cfg.Hardware.Categories(),
		AsyncWrites: cfg.AsyncWrites,
	}
}

// Scheduler owns the provider and the temperature file for as long as it
// runs. The provider is opened by Start and closed by Stop, after the last
// tick has finished.
type Scheduler struct {
	provider hardware.Provider
	file     *writer.FileWriter
	opts     Options

	mu         sync.Mutex
	state      State
	sink       writer.Writer
	dispatcher *writer.Dispatcher
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a stopped scheduler. Zero Categories means all categories;
// a loaded Config never carries them, since Validate rejects it.
func New(p hardware.Provider, file *writer.FileWriter, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = config.DefaultInterval
	}
	if opts.Categories == (hardware.Categories{}) {
		opts.Categories = hardware.AllCategories()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Scheduler{
		provider: p,
		file:     file,
		opts:     opts,
		sink:     file,
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Start opens the provider, makes sure the temperature file exists and
// starts sampling. The first sample is taken immediately. A provider that
// cannot be opened fails Start and leaves the scheduler stopped.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateStopped {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrNotStopped, st)
	}
	s.state = StateStarting
	s.mu.Unlock()

	log := logger.WithComponent("scheduler")
	log.Info().
		Str("provider", s.provider.Name()).
		Str("file", s.file.Path()).
		Dur("interval", s.opts.Interval).
		Bool("async_writes", s.opts.AsyncWrites).
		Msg("Starting scheduler")

	if err := s.provider.Open(ctx, s.opts.Categories); err != nil {
		s.setState(StateStopped)
		return fmt.Errorf("failed to open %s provider: %w", s.provider.Name(), err)
	}

	// Not fatal: every write recreates the file.
	if err := s.file.EnsureExists(); err != nil {
		log.Error().Err(err).Str("file", s.file.Path()).Msg("Failed to create temperature file")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	ticker := s.opts.Clock.Ticker(s.opts.Interval)

	s.mu.Lock()
	s.cancel = cancel
	s.sink = s.file
	if s.opts.AsyncWrites {
		s.dispatcher = writer.NewDispatcher(s.file)
		s.sink = s.dispatcher
	}
	s.state = StateRunning
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(loopCtx, ticker)
	return nil
}

// Stop cancels sampling, waits for an in-flight sample to finish and then
// closes the provider. It returns the provider's close error. Stop is a
// no-op unless the scheduler is running.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	cancel := s.cancel
	s.mu.Unlock()

	log := logger.WithComponent("scheduler")
	log.Info().Msg("Stopping scheduler, waiting for sampling to finish")

	cancel()
	s.wg.Wait()

	s.mu.Lock()
	d := s.dispatcher
	s.dispatcher = nil
	s.sink = s.file
	s.cancel = nil
	s.mu.Unlock()

	if d != nil {
		d.Close()
	}

	err := s.provider.Close()
	s.setState(StateStopped)

	if err != nil {
		log.Error().Err(err).Msg("Failed to close provider")
		return fmt.Errorf("failed to close %s provider: %w", s.provider.Name(), err)
	}
	log.Info().Msg("Scheduler stopped")
	return nil
}

// RunOnce opens the provider, takes one sample with synchronous writes and
// closes the provider again. The scheduler must be stopped.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateStopped {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrNotStopped, st)
	}
	s.state = StateStarting
	s.mu.Unlock()
	defer s.setState(StateStopped)

	if err := s.provider.Open(ctx, s.opts.Categories); err != nil {
		return fmt.Errorf("failed to open %s provider: %w", s.provider.Name(), err)
	}
	if err := s.file.EnsureExists(); err != nil {
		log := logger.WithComponent("scheduler")
		log.Error().Err(err).Str("file", s.file.Path()).Msg("Failed to create temperature file")
	}

	tickErr := s.Tick(ctx)
	if err := s.provider.Close(); err != nil {
		return errors.Join(tickErr, fmt.Errorf("failed to close %s provider: %w", s.provider.Name(), err))
	}
	return tickErr
}

func (s *Scheduler) run(ctx context.Context, ticker *clock.Ticker) {
	defer s.wg.Done()
	defer ticker.Stop()

	log := logger.WithComponent("scheduler")
	s.sample(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Sampling loop stopped")
			return
		case <-ticker.C:
			s.sample(ctx)
		}
	}
}

// sample runs one tick bounded by the interval and logs its failures.
func (s *Scheduler) sample(ctx context.Context) {
	log := logger.WithComponent("scheduler")

	tickCtx, cancel := context.WithTimeout(ctx, s.opts.Interval)
	defer cancel()

	start := s.opts.Clock.Now()
	err := s.Tick(tickCtx)
	duration := s.opts.Clock.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Error().Err(err).Dur("duration", duration).Msg("Sampling failed")
		return
	}
	log.Debug().Dur("duration", duration).Msg("Sampling completed")
}

// Tick takes one sample: it reads a fresh topology, visits every sensor and
// persists each relevant reading in visit order, so the last relevant sensor
// wins. A failed write does not stop the walk; all failures are returned
// joined.
func (s *Scheduler) Tick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sampling panicked: %v", r)
		}
	}()

	nodes, err := s.provider.Hardware(ctx)
	if err != nil {
		return fmt.Errorf("failed to read hardware from %s provider: %w", s.provider.Name(), err)
	}

	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()

	log := logger.WithComponent("scheduler")
	return hardware.Walk(nodes, func(sensor hardware.Sensor) error {
		r, ok := reading.Extract(sensor)
		if !ok {
			return nil
		}
		log.Info().
			Str("sensor", r.SensorName).
			Float64("celsius", r.Celsius).
			Msg("Temperature sampled")
		return sink.Persist(r)
	})
}
