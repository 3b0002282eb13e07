package duneclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/MinterGMT/restaking-research-visuals/internal/clients/client"
	"github.com/MinterGMT/restaking-research-visuals/internal/config"
)

const (
	latestResultPathTemplate = "/api/v1/query/{query_id}/results"
	executePathTemplate      = "/api/v1/query/{query_id}/execute"
	statusPathTemplate       = "/api/v1/execution/{execution_id}/status"
	resultsPathTemplate      = "/api/v1/execution/{execution_id}/results"

	apiKeyHeader = "X-Dune-API-Key"

	// performance tier requested on rate-limit retries; a free-tier key
	// gets further on the large engine once it has already been throttled.
	retryPerformanceTier = "large"
)

type Client struct {
	httpClient *http.Client
	cfg        *config.DuneConfig
}

func New(cfg *config.DuneConfig) *Client {
	if cfg == nil {
		return nil
	}

	return &Client{
		httpClient: &http.Client{},
		cfg:        cfg,
	}
}

func (c *Client) GetBaseURL() string {
	return c.cfg.BaseURL
}

func (c *Client) GetDefaultRequestTimeout() time.Duration {
	return c.cfg.Timeout
}

func (c *Client) GetHttpClient() *http.Client {
	return c.httpClient
}

func (c *Client) headers() map[string]string {
	return map[string]string{apiKeyHeader: c.cfg.APIKey}
}

func (c *Client) GetLatestResult(ctx context.Context, queryID int64) ([]ResultRow, error) {
	callForLatestResult := func() ([]ResultRow, error) {
		type empty struct{}
		opts := &client.HttpClientOptions{
			Path:         fmt.Sprintf("/api/v1/query/%d/results", queryID),
			TemplatePath: latestResultPathTemplate,
			Headers:      c.headers(),
		}

		resp, err := client.SendRequest[empty, resultResponse](ctx, c, http.MethodGet, opts, nil)
		if err != nil {
			return nil, err
		}
		if resp.State != "" && resp.State != StateCompleted {
			return nil, fmt.Errorf("latest result of query %d is in state %s", queryID, resp.State)
		}

		return resp.Result.Rows, nil
	}

	rows, err := clientCallWithRetry(ctx, callForLatestResult, c.cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest result for query %d: %w", queryID, err)
	}

	return rows, nil
}

func (c *Client) RunQuery(ctx context.Context, queryID int64, params map[string]string) ([]ResultRow, error) {
	// bumped to the large tier by the retry hook after a rate-limit error
	performance := ""

	callForRunQuery := func() ([]ResultRow, error) {
		executionID, err := c.execute(ctx, queryID, params, performance)
		if err != nil {
			return nil, err
		}

		state, err := c.waitForExecution(ctx, executionID)
		if err != nil {
			return nil, err
		}
		if state != StateCompleted {
			return nil, fmt.Errorf("execution %s of query %d finished in state %s", executionID, queryID, state)
		}

		return c.results(ctx, executionID)
	}

	rows, err := clientCallWithRetry(ctx, callForRunQuery, c.cfg, func() {
		performance = retryPerformanceTier
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run query %d: %w", queryID, err)
	}

	return rows, nil
}

func (c *Client) execute(ctx context.Context, queryID int64, params map[string]string, performance string) (string, error) {
	opts := &client.HttpClientOptions{
		Path:         fmt.Sprintf("/api/v1/query/%d/execute", queryID),
		TemplatePath: executePathTemplate,
		Headers:      c.headers(),
	}
	input := &executeRequest{
		QueryParameters: params,
		Performance:     performance,
	}

	resp, err := client.SendRequest[executeRequest, executeResponse](ctx, c, http.MethodPost, opts, input)
	if err != nil {
		return "", err
	}
	if resp.ExecutionID == "" {
		return "", fmt.Errorf("execute of query %d returned no execution id", queryID)
	}

	return resp.ExecutionID, nil
}

// waitForExecution polls the execution status until it reaches a terminal
// state or the context is cancelled.
func (c *Client) waitForExecution(ctx context.Context, executionID string) (string, error) {
	type empty struct{}
	opts := &client.HttpClientOptions{
		Path:         fmt.Sprintf("/api/v1/execution/%s/status", executionID),
		TemplatePath: statusPathTemplate,
		Headers:      c.headers(),
	}

	for {
		resp, err := client.SendRequest[empty, statusResponse](ctx, c, http.MethodGet, opts, nil)
		if err != nil {
			return "", err
		}
		if isTerminalState(resp.State) {
			return resp.State, nil
		}

		log.Ctx(ctx).Debug().
			Str("execution_id", executionID).
			Str("state", resp.State).
			Msg("Waiting for query execution to finish")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}
	}
}

func (c *Client) results(ctx context.Context, executionID string) ([]ResultRow, error) {
	type empty struct{}
	opts := &client.HttpClientOptions{
		Path:         fmt.Sprintf("/api/v1/execution/%s/results", executionID),
		TemplatePath: resultsPathTemplate,
		Headers:      c.headers(),
	}

	resp, err := client.SendRequest[empty, resultResponse](ctx, c, http.MethodGet, opts, nil)
	if err != nil {
		return nil, err
	}

	return resp.Result.Rows, nil
}

func clientCallWithRetry[T any](
	ctx context.Context,
	call retry.RetryableFuncWithData[T],
	cfg *config.DuneConfig,
	onRateLimitRetry func(),
) (T, error) {
	result, err := retry.DoWithData(call,
		retry.Context(ctx),
		retry.Attempts(cfg.MaxRetryTimes),
		retry.Delay(cfg.RetryInterval),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// Only rate-limit errors (429) are retryable; anything else is
			// either a bug or a real upstream failure and surfaces at once.
			return errors.Is(err, client.ErrRateLimitExceeded)
		}),
		retry.OnRetry(func(n uint, err error) {
			if onRateLimitRetry != nil {
				onRateLimitRetry()
			}
			log.Ctx(ctx).Warn().
				Uint("attempt", n+1).
				Uint("max_attempts", cfg.MaxRetryTimes).
				Err(err).
				Msg("rate limit exceeded, retrying with exponential backoff")
		}))
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
