package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MinterGMT/restaking-research-visuals/internal/observability/metrics"
)

// ErrRateLimitExceeded marks an HTTP 429 from the remote API. It is the only
// error class the retry policies in this repo are allowed to retry on.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

type HttpClient interface {
	GetBaseURL() string
	GetDefaultRequestTimeout() time.Duration
	GetHttpClient() *http.Client
}

type HttpClientOptions struct {
	Path string
	// TemplatePath is the path with parameters unexpanded, used as the
	// metrics label so cardinality stays bounded.
	TemplatePath string
	Headers      map[string]string
}

// SendRequest performs one JSON request/response round trip against the
// client's base URL. The input is marshalled as the request body when
// non-nil; the response body is decoded into O.
func SendRequest[I, O any](
	ctx context.Context,
	c HttpClient,
	method string,
	opts *HttpClientOptions,
	input *I,
) (*O, error) {
	url := c.GetBaseURL() + opts.Path

	ctx, cancel := context.WithTimeout(ctx, c.GetDefaultRequestTimeout())
	defer cancel()

	var body io.Reader
	if input != nil {
		payload, err := json.Marshal(input)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.GetHttpClient().Do(req)
	if err != nil {
		metrics.RecordHttpClientRequestDuration(c.GetBaseURL(), method, opts.TemplatePath, 0, time.Since(start))
		return nil, fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()
	metrics.RecordHttpClientRequestDuration(c.GetBaseURL(), method, opts.TemplatePath, resp.StatusCode, time.Since(start))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%s: %w", url, ErrRateLimitExceeded)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode, url, string(respBody))
	}

	var output O
	if err := json.Unmarshal(respBody, &output); err != nil {
		return nil, fmt.Errorf("failed to decode response from %s: %w", url, err)
	}

	return &output, nil
}
