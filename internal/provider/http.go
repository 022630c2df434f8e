package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	maxAttempts  = 3
	retryBackoff = 500 * time.Millisecond
)

// errorDetail pulls a human-readable message out of an API error body.
// Both Anthropic ({"error":{"message":...}}) and the chat-completions
// providers use this shape; anything else falls back to the raw body.
func errorDetail(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return strings.TrimSpace(string(body))
}

// doWithRetry posts body to endpoint and returns a streaming 2xx response.
// 401/403 map to AuthError and are never retried. 429 and 5xx are retried
// with doubling backoff up to maxAttempts; every other status is an
// immediate APIError. The caller owns the returned body.
func doWithRetry(ctx context.Context, client *http.Client, kind Kind, endpoint string, body []byte, setHeaders func(*http.Request)) (*http.Response, error) {
	backoff := retryBackoff
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		setHeaders(req)

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp, nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			detail := readDetail(resp)
			return nil, &AuthError{Kind: kind, Status: resp.StatusCode, Detail: detail}
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = &APIError{Kind: kind, Status: resp.StatusCode, Detail: readDetail(resp)}
		default:
			return nil, &APIError{Kind: kind, Status: resp.StatusCode, Detail: readDetail(resp)}
		}
	}
	if lastErr == nil {
		lastErr = errors.New("request failed")
	}
	return nil, lastErr
}

func readDetail(resp *http.Response) string {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	return errorDetail(body)
}

// readSSE consumes a server-sent event stream, calling onData for each
// data payload. A "[DONE]" payload ends the stream cleanly. onData
// returning false stops reading early.
func readSSE(r io.Reader, onData func(data []byte) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)

	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			return nil
		}
		if !onData([]byte(data)) {
			return nil
		}
	}
	err := scanner.Err()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
