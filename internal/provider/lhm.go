package provider

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"tempagent/internal/hardware"
	"tempagent/internal/logger"
)

const (
	lhmStopTimeout = 5 * time.Second
	lhmMaxBackoff  = 60 * time.Second
	lhmReadBuffer  = 256 * 1024
)

// lhmDocument is one response line of the helper: the full hardware tree as
// LibreHardwareMonitor's Computer reports it.
type lhmDocument struct {
	Hardware []lhmHardware `json:"Hardware"`
	Error    string        `json:"error,omitempty"`
}

type lhmHardware struct {
	Name        string        `json:"Name"`
	Type        string        `json:"Type"`
	Sensors     []lhmSensor   `json:"Sensors"`
	SubHardware []lhmHardware `json:"SubHardware"`
}

type lhmSensor struct {
	Name  string   `json:"Name"`
	Type  string   `json:"Type"`
	Value *float32 `json:"Value"`
}

func (h lhmHardware) node() hardware.Node {
	n := hardware.Node{
		Name: h.Name,
		Kind: hardware.ParseKind(h.Type),
	}
	for _, s := range h.Sensors {
		n.Sensors = append(n.Sensors, hardware.Sensor{
			Name:  s.Name,
			Type:  hardware.ParseSensorType(s.Type),
			Value: s.Value,
		})
	}
	for _, sub := range h.SubHardware {
		n.SubHardware = append(n.SubHardware, sub.node())
	}
	return n
}

// LHM reads the hardware tree from a long-running LhmHelper process.
// Requests are "collect\n" lines on stdin, answered by one JSON document per
// line on stdout. A helper that dies is restarted on the next read with
// exponential backoff.
type LHM struct {
	mu             sync.Mutex
	helperPath     string
	requestTimeout time.Duration
	clock          clock.Clock
	categories     hardware.Categories

	// Helper process state
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	stderr io.ReadCloser

	// Closed (not drained) when the helper exits, safe for multiple reads.
	processExit chan struct{}

	consecutiveFailures int
	lastStartAttempt    time.Time

	ctx    context.Context
	cancel context.CancelFunc
	opened bool
}

// NewLHM creates an LHM provider. An empty helperPath searches the usual
// install locations at Open.
func NewLHM(helperPath string, requestTimeout time.Duration) *LHM {
	return &LHM{
		helperPath:     helperPath,
		requestTimeout: requestTimeout,
		clock:          clock.New(),
	}
}

// Name implements hardware.Provider.
func (p *LHM) Name() string { return "lhm" }

// Open locates and starts the helper and validates it with one request.
func (p *LHM) Open(ctx context.Context, cats hardware.Categories) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.opened {
		return nil
	}

	if p.helperPath == "" {
		path, err := findLhmHelper()
		if err != nil {
			return err
		}
		p.helperPath = path
	}

	p.categories = cats
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.opened = true

	if err := p.startProcess(ctx); err != nil {
		p.opened = false
		p.cancel()
		return fmt.Errorf("failed to start LhmHelper daemon: %w", err)
	}
	return nil
}

// Hardware requests a fresh tree from the helper, restarting it first if it
// has exited.
func (p *LHM) Hardware(ctx context.Context) ([]hardware.Node, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.opened {
		return nil, ErrNotOpen
	}

	log := logger.WithComponent("lhm-provider")

	if !p.isProcessAlive() {
		log.Warn().Msg("LhmHelper process is dead, attempting restart")
		if err := p.restartWithBackoff(ctx); err != nil {
			return nil, err
		}
	}

	doc, err := p.doRequestWithTimeout(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("LhmHelper request failed, stopping process for restart on next call")
		p.consecutiveFailures++
		p.stopProcess()
		return nil, fmt.Errorf("LhmHelper request failed: %w", err)
	}
	if doc.Error != "" {
		return nil, fmt.Errorf("LhmHelper error: %s", doc.Error)
	}
	p.consecutiveFailures = 0

	nodes := make([]hardware.Node, 0, len(doc.Hardware))
	for _, h := range doc.Hardware {
		nodes = append(nodes, h.node())
	}
	nodes = hardware.Filter(nodes, p.categories)

	log.Debug().
		Int("hardware", len(nodes)).
		Int("sensors", hardware.CountSensors(nodes)).
		Msg("LhmHelper data refreshed")
	return nodes, nil
}

// Close shuts the helper down. It closes stdin, waits for a graceful exit
// and kills the process after a timeout.
func (p *LHM) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.opened {
		return nil
	}
	p.opened = false
	p.cancel()
	return p.stopProcess()
}

func (p *LHM) startProcess(ctx context.Context) error {
	log := logger.WithComponent("lhm-provider")

	args := []string{"--daemon"}
	if names := p.categories.Names(); len(names) > 0 {
		args = append(args, "--categories", strings.Join(names, ","))
	}
	cmd := exec.Command(p.helperPath, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start LhmHelper: %w", err)
	}

	p.cmd = cmd
	p.stdin = stdin
	p.stdout = bufio.NewReaderSize(stdout, lhmReadBuffer)
	p.stderr = stderr
	p.processExit = make(chan struct{})

	// Captured by value: a restart replaces p.processExit.
	exitCh := p.processExit
	go func() {
		_ = cmd.Wait()
		close(exitCh)
	}()
	go drainStderr(stderr)

	log.Info().
		Int("pid", cmd.Process.Pid).
		Str("path", p.helperPath).
		Strs("categories", p.categories.Names()).
		Msg("LhmHelper daemon started")

	doc, err := p.doRequestWithTimeout(ctx)
	if err != nil {
		log.Error().Err(err).Msg("LhmHelper initial collection failed")
		p.stopProcess()
		return fmt.Errorf("LhmHelper initial collection failed: %w", err)
	}
	if doc.Error != "" {
		log.Error().Str("error", doc.Error).Msg("LhmHelper initialization error")
		p.stopProcess()
		return fmt.Errorf("LhmHelper initialization error: %s", doc.Error)
	}

	p.consecutiveFailures = 0
	log.Info().Int("hardware", len(doc.Hardware)).Msg("LhmHelper daemon ready")
	return nil
}

// stopProcess must be called with p.mu held.
func (p *LHM) stopProcess() error {
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	log := logger.WithComponent("lhm-provider")
	pid := p.cmd.Process.Pid

	// Closing stdin is the helper's signal to exit.
	if p.stdin != nil {
		p.stdin.Close()
		p.stdin = nil
	}
	if p.stderr != nil {
		p.stderr.Close()
		p.stderr = nil
	}

	var err error
	select {
	case <-p.processExit:
		log.Info().Int("pid", pid).Msg("LhmHelper daemon stopped")
	case <-p.clock.After(lhmStopTimeout):
		log.Warn().Int("pid", pid).Msg("LhmHelper daemon did not exit in time, killing")
		if kerr := p.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
			err = fmt.Errorf("failed to kill LhmHelper: %w", kerr)
		}
		<-p.processExit
	}

	p.cmd = nil
	p.stdout = nil
	return err
}

func drainStderr(r io.Reader) {
	log := logger.WithComponent("lhm-helper")
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		log.Info().Str("stderr", scanner.Text()).Msg("LhmHelper")
	}
}

// doRequestWithTimeout must be called with p.mu held. The pipes are captured
// so a timed-out request cannot race with stopProcess.
func (p *LHM) doRequestWithTimeout(ctx context.Context) (*lhmDocument, error) {
	stdin := p.stdin
	stdout := p.stdout
	if stdin == nil || stdout == nil {
		return nil, fmt.Errorf("LhmHelper pipes not available")
	}

	type result struct {
		doc *lhmDocument
		err error
	}

	ch := make(chan result, 1)
	go func() {
		if _, err := stdin.Write([]byte("collect\n")); err != nil {
			ch <- result{nil, fmt.Errorf("failed to write to LhmHelper stdin: %w", err)}
			return
		}
		line, err := stdout.ReadBytes('\n')
		if err != nil {
			ch <- result{nil, fmt.Errorf("failed to read from LhmHelper stdout: %w", err)}
			return
		}
		var doc lhmDocument
		if err := json.Unmarshal(line, &doc); err != nil {
			ch <- result{nil, fmt.Errorf("failed to parse LhmHelper response (%d bytes): %w", len(line), err)}
			return
		}
		ch <- result{&doc, nil}
	}()

	timer := p.clock.Timer(p.requestTimeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r.doc, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("LhmHelper request cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil, fmt.Errorf("LhmHelper request timed out (%v)", p.requestTimeout)
	}
}

func (p *LHM) isProcessAlive() bool {
	if p.cmd == nil || p.cmd.Process == nil {
		return false
	}
	select {
	case <-p.processExit:
		return false
	default:
		return true
	}
}

// backoff returns the restart delay for the current failure count:
// 1s, 2s, 4s, ... capped at 60s.
func (p *LHM) backoff() time.Duration {
	if p.consecutiveFailures >= 6 {
		return lhmMaxBackoff
	}
	d := time.Duration(1<<p.consecutiveFailures) * time.Second
	if d > lhmMaxBackoff {
		d = lhmMaxBackoff
	}
	return d
}

// restartWithBackoff must be called with p.mu held. The lock is released
// while waiting so Close can proceed.
func (p *LHM) restartWithBackoff(ctx context.Context) error {
	log := logger.WithComponent("lhm-provider")

	backoff := p.backoff()
	if elapsed := p.clock.Since(p.lastStartAttempt); elapsed < backoff {
		wait := backoff - elapsed
		log.Warn().
			Int("consecutive_failures", p.consecutiveFailures).
			Dur("backoff_wait", wait).
			Msg("LhmHelper restart backoff")

		lifetime := p.ctx
		p.mu.Unlock()
		var err error
		select {
		case <-p.clock.After(wait):
		case <-lifetime.Done():
			err = fmt.Errorf("LhmHelper restart cancelled: %w", lifetime.Err())
		case <-ctx.Done():
			err = fmt.Errorf("LhmHelper restart cancelled: %w", ctx.Err())
		}
		p.mu.Lock()
		if err != nil {
			return err
		}
		if !p.opened {
			return fmt.Errorf("LhmHelper closed during restart backoff")
		}
	}

	p.lastStartAttempt = p.clock.Now()
	log.Info().Int("consecutive_failures", p.consecutiveFailures).Msg("Restarting LhmHelper daemon")

	p.stopProcess()
	if err := p.startProcess(ctx); err != nil {
		p.consecutiveFailures++
		return fmt.Errorf("LhmHelper restart failed (attempt %d): %w", p.consecutiveFailures, err)
	}
	return nil
}

func lhmHelperName() string {
	if runtime.GOOS == "windows" {
		return "LhmHelper.exe"
	}
	return "LhmHelper"
}

// findLhmHelper searches for the helper in common locations.
func findLhmHelper() (string, error) {
	name := lhmHelperName()
	candidates := []string{
		name,
		"." + string(filepath.Separator) + name,
		filepath.Join(".", "utils", name),
		filepath.Join(".", "utils", "lhm-helper", name),
	}

	if exePath, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		candidates = append(candidates,
			filepath.Join(exeDir, name),
			filepath.Join(exeDir, "utils", name),
			filepath.Join(exeDir, "utils", "lhm-helper", name),
		)
	}

	if runtime.GOOS == "windows" {
		candidates = append(candidates,
			`C:\Program Files\TempAgent\LhmHelper.exe`,
			`C:\Program Files\TempAgent\utils\LhmHelper.exe`,
			`C:\Program Files\TempAgent\utils\lhm-helper\LhmHelper.exe`,
		)
	}

	for _, path := range candidates {
		if fullPath, err := exec.LookPath(path); err == nil {
			return fullPath, nil
		}
	}
	return "", fmt.Errorf("%s not found in any expected location", name)
}
