package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// blockingWriter simulates a stuck console. Write blocks until Unblock.
type blockingWriter struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	blockCh chan struct{}
}

func newBlockingWriter() *blockingWriter {
	return &blockingWriter{blockCh: make(chan struct{})}
}

func (w *blockingWriter) Write(p []byte) (int, error) {
	<-w.blockCh
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *blockingWriter) Unblock() { close(w.blockCh) }

func (w *blockingWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func TestAsyncWriter_DoesNotBlockCaller(t *testing.T) {
	bw := newBlockingWriter()
	aw := newAsyncWriter(bw, 100)

	done := make(chan struct{})
	go func() {
		_, _ = aw.Write([]byte("hello"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Write blocked on a stuck underlying writer")
	}

	bw.Unblock()
	aw.Close()
	if bw.String() != "hello" {
		t.Errorf("expected %q, got %q", "hello", bw.String())
	}
}

func TestAsyncWriter_DropsWhenBufferFull(t *testing.T) {
	bw := newBlockingWriter()
	aw := newAsyncWriter(bw, 2)
	defer func() {
		bw.Unblock()
		aw.Close()
	}()

	// One message held by drain plus two in the channel fills it.
	for i := 0; i < 4; i++ {
		_, _ = aw.Write([]byte("msg"))
	}

	done := make(chan struct{})
	go func() {
		_, _ = aw.Write([]byte("overflow"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Write blocked on full buffer instead of dropping")
	}
}

func TestAsyncWriter_CloseDrains(t *testing.T) {
	var buf bytes.Buffer
	aw := newAsyncWriter(&buf, 100)
	_, _ = aw.Write([]byte("a"))
	_, _ = aw.Write([]byte("b"))
	aw.Close()

	if buf.String() != "ab" {
		t.Errorf("expected %q, got %q", "ab", buf.String())
	}

	n, err := aw.Write([]byte("late"))
	if err != nil || n != 4 {
		t.Errorf("write after close: n=%d err=%v", n, err)
	}
	aw.Close()
}

func TestInit_WritesFixedFormatFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "nested", "agent.log")
	if err := Init(Config{Level: "info", FilePath: logFile, Format: FormatFixed}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer Close()

	log := WithComponent("test")
	log.Info().Float64("celsius", 55.1).Msg("sampled")
	log.Debug().Msg("hidden at info level")
	Close()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "[INF] [test        ] sampled celsius=55.1") {
		t.Errorf("unexpected log content: %q", content)
	}
	if strings.Contains(content, "hidden") {
		t.Error("debug message written at info level")
	}
}

func TestInit_JSONFormat(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "agent.log")
	if err := Init(Config{Level: "debug", FilePath: logFile, Format: FormatJSON}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	log := WithComponent("test")
	log.Debug().Msg("json line")
	Close()

	data, _ := os.ReadFile(logFile)
	if !strings.Contains(string(data), `"component":"test"`) || !strings.Contains(string(data), `"message":"json line"`) {
		t.Errorf("expected JSON log line, got %q", data)
	}
}

func TestInit_RejectsUnknownFormat(t *testing.T) {
	err := Init(Config{FilePath: filepath.Join(t.TempDir(), "a.log"), Format: "xml"})
	if err == nil || !strings.Contains(err.Error(), "unsupported log format") {
		t.Fatalf("expected format error, got %v", err)
	}
	Close()
}

func TestInit_ReInitKeepsWritingSameFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "agent.log")
	cfg := Config{Level: "info", FilePath: logFile}

	if err := Init(cfg); err != nil {
		t.Fatalf("first Init failed: %v", err)
	}
	firstLog := WithComponent("test")
	firstLog.Info().Msg("first message")

	if err := Init(cfg); err != nil {
		t.Fatalf("second Init failed: %v", err)
	}
	secondLog := WithComponent("test")
	secondLog.Info().Msg("second message")
	Close()

	data, _ := os.ReadFile(logFile)
	for _, want := range []string{"first message", "second message"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log file missing %q", want)
		}
	}
}

func TestSetServiceMode_SuppressesConsole(t *testing.T) {
	SetServiceMode(true)
	defer SetServiceMode(false)

	if err := Init(Config{Level: "info", Console: true}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer Close()

	mu.Lock()
	n := len(openWriters)
	mu.Unlock()
	if n != 0 {
		t.Errorf("expected no console writer in service mode, got %d writers", n)
	}
}
