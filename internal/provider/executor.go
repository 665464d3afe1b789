package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Executor is the network strategy injected into every platform adapter.
// In stub mode it fabricates responses through the Simulate helpers and
// never opens a connection; in real mode it performs authenticated JSON
// calls and classifies failures. Keeping the mode here keeps the adapters
// free of per-method mode plumbing.
type Executor struct {
	mode   Mode
	client *http.Client
	logger *zap.Logger
}

func NewExecutor(mode Mode, logger *zap.Logger) *Executor {
	return &Executor{
		mode: mode,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// Stub reports whether provider calls are simulated.
func (e *Executor) Stub() bool {
	return e.mode == ModeStub
}

// Client returns the underlying HTTP client for adapters that need to hand
// it to an SDK.
func (e *Executor) Client() *http.Client {
	return e.client
}

// DoJSON sends a JSON request with bearer auth and decodes the JSON
// response into out (which may be nil). Non-2xx responses come back as a
// *StatusError carrying the retryable classification.
func (e *Executor) DoJSON(ctx context.Context, platform, method, url, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		e.logger.Warn("Provider API call failed",
			zap.String("platform", platform),
			zap.String("url", url),
			zap.Int("status", resp.StatusCode))
		return &StatusError{
			Platform:   platform,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ProbeURL checks whether a public post URL still resolves. 404 and 410
// count as deleted; any other failure is a probe error, not a vote.
func (e *Executor) ProbeURL(ctx context.Context, platform, url string) (Existence, error) {
	if url == "" {
		return "", fmt.Errorf("no remote URL recorded for %s publication", platform)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create probe request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("probe request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return Exists, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return Deleted, nil
	default:
		return "", &StatusError{Platform: platform, StatusCode: resp.StatusCode}
	}
}
