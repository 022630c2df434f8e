// Package daemon keeps a warm local model behind a Unix socket so repeat
// explanations skip model load time. The protocol is JSON, one object per
// line, in both directions.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SocketPath returns the daemon's Unix socket location:
// $XDG_RUNTIME_DIR/why.sock, or /tmp/why-$UID.sock when the runtime
// directory is unset.
func SocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "why.sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("why-%d.sock", os.Getuid()))
}

// PidPath returns the daemon's pid file, kept alongside the socket.
func PidPath() string {
	sock := SocketPath()
	return sock[:len(sock)-len(".sock")] + ".pid"
}

// ReadPid returns the pid recorded by a running (or crashed) daemon.
func ReadPid() (int, error) {
	data, err := os.ReadFile(PidPath())
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed pid file %s: %w", PidPath(), err)
	}
	return pid, nil
}

// LogPath returns the daemon log file under the why cache directory.
func LogPath() (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving cache directory: %w", err)
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "why", "daemon.log"), nil
}
