package writer

import (
	"sync"

	"github.com/rs/zerolog"

	"tempagent/internal/logger"
	"tempagent/internal/reading"
)

// Dispatcher hands readings to a single consumer goroutine that persists
// them through the wrapped Writer. The mailbox holds one reading: a reading
// submitted before the consumer picked up the previous one replaces it, so
// the file converges to the newest submission.
type Dispatcher struct {
	w Writer

	mu      sync.Mutex
	pending *reading.Reading
	closed  bool

	wake chan struct{}
	done chan struct{}
}

// NewDispatcher starts the consumer goroutine. Close must be called to stop it.
func NewDispatcher(w Writer) *Dispatcher {
	d := &Dispatcher{
		w:    w,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go d.run()
	return d
}

// Persist submits r and returns immediately. It satisfies Writer, so the
// scheduler can use a Dispatcher in place of a FileWriter. The returned
// error is always nil; write failures are logged by the consumer.
func (d *Dispatcher) Persist(r reading.Reading) error {
	d.Submit(r)
	return nil
}

// Submit queues r, replacing any reading not yet consumed. Submissions after
// Close are dropped.
func (d *Dispatcher) Submit(r reading.Reading) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.pending = &r
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Close stops accepting readings, persists the pending one if any and waits
// for the consumer to exit. Safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	close(d.wake)
	d.mu.Unlock()

	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	log := logger.WithComponent("dispatcher")

	for range d.wake {
		d.flush(log)
	}
	// wake is closed; pick up a reading submitted just before Close.
	d.flush(log)
}

func (d *Dispatcher) take() (reading.Reading, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return reading.Reading{}, false
	}
	r := *d.pending
	d.pending = nil
	return r, true
}

func (d *Dispatcher) flush(log zerolog.Logger) {
	r, ok := d.take()
	if !ok {
		return
	}
	if err := d.w.Persist(r); err != nil {
		log.Error().Err(err).Str("sensor", r.SensorName).Msg("Failed to persist temperature")
	}
}
