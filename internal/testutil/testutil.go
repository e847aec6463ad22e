// Package testutil starts the quizdocs server inside tests and captures its output.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"testing"
	"time"
)

const (
	// HealthPath is polled until the server reports itself healthy.
	HealthPath = "/healthz"

	startTimeout  = 10 * time.Second
	stopTimeout   = 10 * time.Second
	probeInterval = 100 * time.Millisecond
	clientTimeout = 2 * time.Second
)

// ErrNotHealthy is returned by WaitHealthy when the deadline passes before /healthz reports ok.
var ErrNotHealthy = errors.New("server did not become healthy")

// SignalCtx returns a context canceled when the test ends or the process is interrupted.
func SignalCtx(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	ctx, stop := signal.NotifyContext(t.Context(), os.Interrupt)
	t.Cleanup(stop)

	return ctx, stop
}

// Listen returns a listener on an OS-assigned localhost port. It is closed when the test ends.
func Listen(t *testing.T) net.Listener {
	t.Helper()

	listenConfig := &net.ListenConfig{}
	ln, err := listenConfig.Listen(t.Context(), "tcp", "localhost:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	return ln
}

// LogWriter sends each write to tb.Log as one line. Safe for concurrent use.
type LogWriter struct {
	tb testing.TB
	mu sync.Mutex
}

// NewLogWriter returns a LogWriter for tb.
func NewLogWriter(tb testing.TB) *LogWriter {
	tb.Helper()

	return &LogWriter{tb: tb}
}

func (w *LogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.tb.Log(string(bytes.TrimRight(p, "\n")))

	return len(p), nil
}

// RunFunc serves on ln until ctx is canceled.
type RunFunc func(ctx context.Context, ln net.Listener) error

// StartServer runs run in the background on a fresh listener and waits for it to become healthy. It returns the
// base URL and a stop function that cancels the server and returns run's error.
func StartServer(ctx context.Context, t *testing.T, run RunFunc) (string, func() error) {
	t.Helper()

	ctx, cancel := context.WithCancel(ctx)
	ln := Listen(t)

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, ln)
	}()

	baseURL := "http://" + ln.Addr().String()
	if err := WaitHealthy(ctx, baseURL, startTimeout); err != nil {
		cancel()
		t.Fatalf("error waiting for server: %v", err)
	}

	return baseURL, func() error {
		cancel()
		select {
		case err := <-errCh:
			return err
		case <-time.After(stopTimeout):
			return errors.New("timeout waiting for server to stop")
		}
	}
}

// WaitHealthy polls baseURL's health endpoint until it answers 200 with status "ok", ctx ends or timeout passes.
func WaitHealthy(ctx context.Context, baseURL string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := &http.Client{Timeout: clientTimeout}
	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		if lastErr = checkHealth(ctx, client, baseURL+HealthPath); lastErr == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrNotHealthy, lastErr)
		case <-ticker.C:
		}
	}
}

func checkHealth(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	res, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", url, err)
	}
	defer func() { _ = res.Body.Close() }()

	var body struct {
		Status string `json:"status"`
	}
	if err = json.NewDecoder(res.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode health response: %w", err)
	}
	if res.StatusCode != http.StatusOK || body.Status != "ok" {
		return fmt.Errorf("health status %d %q", res.StatusCode, body.Status)
	}

	return nil
}
