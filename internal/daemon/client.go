package daemon

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
)

// ErrUnavailable means no daemon answered on the socket. Callers fall
// back to in-process generation; this error is a routing signal, not a
// failure to surface.
var ErrUnavailable = errors.New("daemon not available")

const (
	connectTimeout = 300 * time.Millisecond
	replyTimeout   = 60 * time.Second
)

// Client talks to a running daemon over its Unix socket.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
	enc     *json.Encoder
}

// Dial connects to the daemon. A missing socket, a refused connection or
// a slow accept all map to ErrUnavailable.
func Dial(socketPath string) (*Client, error) {
	if socketPath == "" {
		socketPath = SocketPath()
	}
	conn, err := net.DialTimeout("unix", socketPath, connectTimeout)
	if err != nil {
		return nil, ErrUnavailable
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64<<10), 4<<20)
	return &Client{conn: conn, scanner: scanner, enc: json.NewEncoder(conn)}, nil
}

// Close closes the connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) send(req Request) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if err := c.enc.Encode(req); err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	return nil
}

func (c *Client) recv() (*Response, error) {
	c.conn.SetReadDeadline(time.Now().Add(replyTimeout))
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}
		return nil, errors.New("daemon closed the connection")
	}
	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	return &resp, nil
}

// Ping checks the daemon is alive.
func (c *Client) Ping() error {
	if err := c.send(Request{Action: ActionPing}); err != nil {
		return err
	}
	resp, err := c.recv()
	if err != nil {
		return err
	}
	if resp.Type != TypePong {
		return fmt.Errorf("unexpected response type %q", resp.Type)
	}
	return nil
}

// Stats fetches the daemon's self-report.
func (c *Client) Stats() (*Stats, error) {
	if err := c.send(Request{Action: ActionStats}); err != nil {
		return nil, err
	}
	resp, err := c.recv()
	if err != nil {
		return nil, err
	}
	if resp.Type != TypeStats || resp.Stats == nil {
		return nil, fmt.Errorf("unexpected response type %q", resp.Type)
	}
	return resp.Stats, nil
}

// Shutdown asks the daemon to exit and waits for the acknowledgement.
func (c *Client) Shutdown() error {
	if err := c.send(Request{Action: ActionShutdown}); err != nil {
		return err
	}
	resp, err := c.recv()
	if err != nil {
		return err
	}
	if resp.Type != TypeShutdownAck {
		return fmt.Errorf("unexpected response type %q", resp.Type)
	}
	return nil
}

// Explain requests a non-streamed explanation and blocks for the full
// text.
func (c *Client) Explain(input, contextText string) (string, error) {
	return c.explain(input, contextText, false, nil)
}

// ExplainStream requests a streamed explanation, forwarding each token to
// onToken, and returns the full text.
func (c *Client) ExplainStream(input, contextText string, onToken func(string)) (string, error) {
	return c.explain(input, contextText, true, onToken)
}

func (c *Client) explain(input, contextText string, stream bool, onToken func(string)) (string, error) {
	err := c.send(Request{
		Action:  ActionExplain,
		Input:   input,
		Context: contextText,
		Stream:  stream,
	})
	if err != nil {
		return "", err
	}

	for {
		resp, err := c.recv()
		if err != nil {
			return "", err
		}
		switch resp.Type {
		case TypeToken:
			if onToken != nil {
				onToken(resp.Content)
			}
		case TypeComplete:
			return resp.Explanation, nil
		case TypeError:
			return "", errors.New(resp.Error)
		default:
			return "", fmt.Errorf("unexpected response type %q", resp.Type)
		}
	}
}

// Spawn starts a daemon in the background by re-executing this binary
// with "daemon start", detached from the current terminal. It does not
// wait for the daemon to come up; callers retry Dial or fall back.
func Spawn() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving executable: %w", err)
	}
	cmd := exec.Command(exe, "daemon", "start")
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = detachAttr()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawning daemon: %w", err)
	}
	return cmd.Process.Release()
}
