package duneclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MinterGMT/restaking-research-visuals/internal/config"
)

func testConfig(baseURL string) *config.DuneConfig {
	return &config.DuneConfig{
		APIKey:        "test-key",
		BaseURL:       baseURL,
		Timeout:       5 * time.Second,
		MaxRetryTimes: 3,
		RetryInterval: 10 * time.Millisecond, // short interval for testing
		PollInterval:  10 * time.Millisecond,
	}
}

func TestGetLatestResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/query/5292464/results", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Dune-API-Key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"execution_id": "01HX",
			"state": "QUERY_STATE_COMPLETED",
			"result": {"rows": [
				{"Operator Name": "P2P", "USD value Delegated": 1250000.5},
				{"Operator Name": "Figment", "USD value Delegated": "980,000"}
			]}
		}`))
	}))
	defer server.Close()

	c := New(testConfig(server.URL))
	rows, err := c.GetLatestResult(context.Background(), 5292464)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "P2P", rows[0].String("Operator Name"))

	values := NumericColumn(rows, "USD value Delegated")
	assert.Equal(t, []float64{1250000.5, 980000}, values)
}

func TestGetLatestResult_RetryOnRateLimit(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		if requestCount <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error": "too many requests"}`))
			return
		}
		_, _ = w.Write([]byte(`{"state": "QUERY_STATE_COMPLETED", "result": {"rows": [{"x": 1}]}}`))
	}))
	defer server.Close()

	c := New(testConfig(server.URL))
	rows, err := c.GetLatestResult(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 3, requestCount, "expected two rate-limited attempts before success")
}

func TestGetLatestResult_NonRetryableError(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(testConfig(server.URL))
	_, err := c.GetLatestResult(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, 1, requestCount, "non-429 errors must not be retried")
}

func TestRunQuery(t *testing.T) {
	statusCalls := 0
	var gotParams map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/execute"):
			assert.Equal(t, http.MethodPost, r.Method)
			var req struct {
				QueryParameters map[string]string `json:"query_parameters"`
				Performance     string            `json:"performance"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			gotParams = req.QueryParameters
			assert.Empty(t, req.Performance, "first attempt must not request the large tier")
			_, _ = w.Write([]byte(`{"execution_id": "01EXEC", "state": "QUERY_STATE_PENDING"}`))
		case strings.HasSuffix(r.URL.Path, "/status"):
			statusCalls++
			state := "QUERY_STATE_EXECUTING"
			if statusCalls >= 2 {
				state = "QUERY_STATE_COMPLETED"
			}
			_, _ = w.Write([]byte(`{"execution_id": "01EXEC", "state": "` + state + `"}`))
		case strings.HasSuffix(r.URL.Path, "/results"):
			_, _ = w.Write([]byte(`{"state": "QUERY_STATE_COMPLETED", "result": {"rows": [{"operator": "a"}, {"operator": "b"}]}}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	c := New(testConfig(server.URL))
	rows, err := c.RunQuery(context.Background(), 5391472, map[string]string{
		"avs_address": "0x870679e138bcdf293b7ff14dd44b70fc97e12fc0",
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, "0x870679e138bcdf293b7ff14dd44b70fc97e12fc0", gotParams["avs_address"])
	assert.GreaterOrEqual(t, statusCalls, 2, "expected at least one poll before completion")
}

func TestRunQuery_FailedExecution(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/execute"):
			_, _ = w.Write([]byte(`{"execution_id": "01EXEC", "state": "QUERY_STATE_PENDING"}`))
		case strings.HasSuffix(r.URL.Path, "/status"):
			_, _ = w.Write([]byte(`{"execution_id": "01EXEC", "state": "QUERY_STATE_FAILED"}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	c := New(testConfig(server.URL))
	_, err := c.RunQuery(context.Background(), 1, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QUERY_STATE_FAILED")
}
