package daemon_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/why-cli/why/internal/daemon"
	"github.com/why-cli/why/internal/provider"
)

// fakeBackend emits its output word by word.
type fakeBackend struct {
	out string
	err error
}

func (f *fakeBackend) Kind() provider.Kind { return provider.KindLocal }

func (f *fakeBackend) Explain(_ context.Context, _ provider.Request, onToken func(string) bool) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if onToken != nil {
		for _, word := range strings.SplitAfter(f.out, " ") {
			if !onToken(word) {
				break
			}
		}
	}
	return f.out, nil
}

func startServer(t *testing.T, backend provider.Provider, opts ...daemon.ServerOption) (*daemon.Server, string, chan error) {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "why.sock")
	opts = append([]daemon.ServerOption{daemon.WithSocketPath(sock)}, opts...)
	srv := daemon.NewServer(backend, zap.NewNop(), opts...)

	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(sock); err == nil {
			return srv, sock, done
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("daemon did not bind its socket")
	return nil, "", nil
}

func TestPingAndExplain(t *testing.T) {
	srv, sock, done := startServer(t, &fakeBackend{out: "SUMMARY: fine."})
	defer func() { srv.Shutdown(); <-done }()

	c, err := daemon.Dial(sock)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if err := c.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	out, err := c.Explain("something broke", "")
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if out != "SUMMARY: fine." {
		t.Errorf("out = %q", out)
	}
}

func TestExplainStreamDeliversTokensThenComplete(t *testing.T) {
	srv, sock, done := startServer(t, &fakeBackend{out: "one two three"})
	defer func() { srv.Shutdown(); <-done }()

	c, err := daemon.Dial(sock)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	var tokens []string
	out, err := c.ExplainStream("boom", "", func(tok string) {
		tokens = append(tokens, tok)
	})
	if err != nil {
		t.Fatalf("ExplainStream: %v", err)
	}
	if out != "one two three" {
		t.Errorf("out = %q", out)
	}
	if strings.Join(tokens, "") != "one two three" {
		t.Errorf("streamed tokens = %q", tokens)
	}
}

func TestExplainErrorSurfaced(t *testing.T) {
	srv, sock, done := startServer(t, &fakeBackend{err: errors.New("engine exploded")})
	defer func() { srv.Shutdown(); <-done }()

	c, err := daemon.Dial(sock)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if _, err := c.Explain("boom", ""); err == nil || !strings.Contains(err.Error(), "engine exploded") {
		t.Errorf("err = %v, want engine error surfaced", err)
	}
}

func TestStatsCountsRequests(t *testing.T) {
	srv, sock, done := startServer(t, &fakeBackend{out: "ok"})
	defer func() { srv.Shutdown(); <-done }()

	c, err := daemon.Dial(sock)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if _, err := c.Explain("a", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Explain("b", ""); err != nil {
		t.Fatal(err)
	}

	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.RequestsServed != 2 {
		t.Errorf("RequestsServed = %d, want 2", stats.RequestsServed)
	}
	if stats.PID != os.Getpid() {
		t.Errorf("PID = %d, want %d", stats.PID, os.Getpid())
	}
}

func TestShutdownActionStopsServer(t *testing.T) {
	srv, sock, done := startServer(t, &fakeBackend{out: "ok"})
	_ = srv

	c, err := daemon.Dial(sock)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := c.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	c.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after shutdown request")
	}
	if _, err := os.Stat(sock); !errors.Is(err, os.ErrNotExist) {
		t.Error("socket not removed on shutdown")
	}
}

func TestIdleTimeoutStopsServer(t *testing.T) {
	srv, sock, done := startServer(t, &fakeBackend{out: "ok"},
		daemon.WithIdleTimeout(150*time.Millisecond))
	_ = srv

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop after idle timeout")
	}
	if _, err := os.Stat(sock); !errors.Is(err, os.ErrNotExist) {
		t.Error("socket not removed after idle shutdown")
	}
}

func TestActivityResetsIdleTimer(t *testing.T) {
	srv, sock, done := startServer(t, &fakeBackend{out: "ok"},
		daemon.WithIdleTimeout(400*time.Millisecond))
	defer func() { srv.Shutdown(); <-done }()

	// Keep pinging at half the idle timeout; the daemon must stay up.
	endAt := time.Now().Add(1 * time.Second)
	for time.Now().Before(endAt) {
		c, err := daemon.Dial(sock)
		if err != nil {
			t.Fatalf("daemon went away during activity: %v", err)
		}
		if err := c.Ping(); err != nil {
			t.Fatalf("Ping: %v", err)
		}
		c.Close()
		time.Sleep(200 * time.Millisecond)
	}

	select {
	case <-done:
		t.Fatal("daemon shut down despite steady activity")
	default:
	}
}

func TestSecondServerRefusesLiveSocket(t *testing.T) {
	srv, sock, done := startServer(t, &fakeBackend{out: "ok"})
	defer func() { srv.Shutdown(); <-done }()

	second := daemon.NewServer(&fakeBackend{out: "ok"}, zap.NewNop(), daemon.WithSocketPath(sock))
	if err := second.Serve(); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Errorf("second Serve = %v, want ErrAlreadyRunning", err)
	}
}

func TestDialMissingSocketIsUnavailable(t *testing.T) {
	_, err := daemon.Dial(filepath.Join(t.TempDir(), "nope.sock"))
	if !errors.Is(err, daemon.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}
