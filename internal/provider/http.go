package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// ErrProviderUnavailable marks transient transport-level failures (timeouts,
// connection errors, 5xx, 429). The fallback layer treats these as a signal to
// escalate to the next candidate.
var ErrProviderUnavailable = errors.New("provider unavailable")

const defaultHTTPTimeout = 30 * time.Second

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

// doJSON posts a JSON body and decodes a JSON response into out.
// Non-2xx statuses are normalized: 408/429/5xx wrap ErrProviderUnavailable,
// anything else is a plain request error.
func doJSON(ctx context.Context, client *http.Client, method, url string, headers map[string]string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return normalizeTransportErr(err)
	}
	defer resp.Body.Close()

	if err := normalizeStatus(resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// doRaw posts an opaque body (audio bytes) and returns the raw response body.
func doRaw(ctx context.Context, client *http.Client, method, url, contentType string, headers map[string]string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, normalizeTransportErr(err)
	}
	defer resp.Body.Close()

	if err := normalizeStatus(resp); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

func normalizeTransportErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: request timed out", ErrProviderUnavailable)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: request timed out", ErrProviderUnavailable)
	}
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}

func normalizeStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	sample, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	switch {
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrProviderUnavailable, resp.StatusCode, bytes.TrimSpace(sample))
	default:
		return fmt.Errorf("provider request rejected: status %d: %s", resp.StatusCode, bytes.TrimSpace(sample))
	}
}
