package settings

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var target = Target{
	Service:       "svc",
	Environment:   "ci",
	RepositoryURL: "https://github.com/acme/repo",
	Branch:        "main",
	Commit:        "abc123",
	CommitMessage: "fix things",
}

type request struct {
	Data struct {
		Type       string          `json:"type"`
		Attributes settingsRequest `json:"attributes"`
	} `json:"data"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]ClientOption{WithTimeout(5 * time.Second)}, opts...)
	return NewClient(zerolog.Nop(), srv.URL+"/", "secret", target, opts...)
}

func decode(t *testing.T, r *http.Request) request {
	t.Helper()
	var req request
	body, err := io.ReadAll(r.Body)
	assert.NoError(t, err)
	assert.NoError(t, json.Unmarshal(body, &req))
	return req
}

func TestClientSettings(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, pathSettings, r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("DD-API-KEY"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		req := decode(t, r)
		assert.Equal(t, "ci_app_test_service_libraries_settings", req.Data.Type)
		assert.Equal(t, "svc", req.Data.Attributes.Service)
		assert.Equal(t, "abc123", req.Data.Attributes.SHA)
		assert.Equal(t, "go", req.Data.Attributes.Configurations.RuntimeName)

		_, _ = io.WriteString(w, `{"data": {"attributes": {
			"itr_enabled": true,
			"flaky_test_retries_enabled": true,
			"known_tests_enabled": true,
			"early_flake_detection": {"enabled": true, "slow_test_retries": {"5s": 10}},
			"test_management": {"enabled": true, "attempt_to_fix_retries": 20}
		}}}`)
	})

	s, err := c.Settings(context.Background())
	require.NoError(t, err)
	assert.True(t, s.ITREnabled)
	assert.True(t, s.FlakyRetriesEnabled)
	assert.True(t, s.EarlyFlakeEnabled())
	assert.Equal(t, uint(10), s.EarlyFlakeDetection.SlowTestRetries.Repeats(time.Second))
	assert.Equal(t, TestManagement{Enabled: true, AttemptToFixRetries: 20}, s.TestManagement)
}

func TestClientKnownTests(t *testing.T) {
	t.Run("registry", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, pathKnownTests, r.URL.Path)
			_, _ = io.WriteString(w, `{"data": {"attributes": {"tests": {"mod": {"suite": ["TestA", "TestB"]}}}}}`)
		})
		k, err := c.KnownTests(context.Background())
		require.NoError(t, err)
		assert.Equal(t, KnownTests{"mod": {"suite": {"TestA", "TestB"}}}, k)
	})

	t.Run("empty", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"data": {"attributes": {"tests": {}}}}`)
		})
		_, err := c.KnownTests(context.Background())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("pages are merged", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			req := decode(t, r)
			if !assert.NotNil(t, req.Data.Attributes.PageInfo) {
				return
			}
			assert.Equal(t, knownTestsPageSize, req.Data.Attributes.PageInfo.PageSize)
			switch calls.Add(1) {
			case 1:
				assert.Empty(t, req.Data.Attributes.PageInfo.PageState)
				_, _ = io.WriteString(w, `{"data": {"attributes": {
					"tests": {"mod": {"s": ["TestA", "TestC"]}},
					"page_info": {"cursor": "page-2", "size": 2, "has_next": true}}}}`)
			default:
				assert.Equal(t, "page-2", req.Data.Attributes.PageInfo.PageState)
				_, _ = io.WriteString(w, `{"data": {"attributes": {
					"tests": {"mod": {"s": ["TestB", "TestC"]}, "other": {"s": ["TestD"]}},
					"page_info": {"size": 2, "has_next": false}}}}`)
			}
		})
		k, err := c.KnownTests(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, KnownTests{
			"mod":   {"s": {"TestA", "TestB", "TestC"}},
			"other": {"s": {"TestD"}},
		}, k)
	})

	t.Run("next page without cursor", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			_, _ = io.WriteString(w, `{"data": {"attributes": {
				"tests": {"mod": {"s": ["TestA"]}},
				"page_info": {"size": 1, "has_next": true}}}}`)
		})
		_, err := c.KnownTests(context.Background())
		assert.ErrorContains(t, err, "without a new cursor")
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestClientManagedTests(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathManagedTests, r.URL.Path)
		req := decode(t, r)
		assert.Equal(t, "fix things", req.Data.Attributes.CommitMessage)
		_, _ = io.WriteString(w, `{"data": {"attributes": {"modules": {"mod": {"suites": {"suite": {"tests": {
			"TestQ": {"properties": {"quarantined": true}},
			"TestF": {"properties": {"attempt_to_fix": true}}
		}}}}}}}}`)
	})

	m, err := c.ManagedTests(context.Background())
	require.NoError(t, err)
	props, ok := m.Properties("mod", "suite", "TestQ")
	assert.True(t, ok)
	assert.Equal(t, TestProperties{Quarantined: true}, props)
	props, _ = m.Properties("mod", "suite", "TestF")
	assert.True(t, props.AttemptToFix)
}

func TestClientSkippableTests(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathSkippable, r.URL.Path)
		_, _ = io.WriteString(w, `{
			"meta": {"correlation_id": "corr-1"},
			"data": [
				{"type": "test", "attributes": {"module": "mod", "suite": "suite", "name": "TestA"}},
				{"type": "suite", "attributes": {"module": "mod", "suite": "suite"}}
			]
		}`)
	})

	s, err := c.SkippableTests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SkippableTests{
		CorrelationID: "corr-1",
		Tests:         []SkippableTest{{Module: "mod", Suite: "suite", Name: "TestA"}},
	}, s)
}

func TestClientSearchCommits(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathSearchCommits, r.URL.Path)
		var body struct {
			Meta struct {
				RepositoryURL string `json:"repository_url"`
			} `json:"meta"`
			Data []commitResource `json:"data"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, target.RepositoryURL, body.Meta.RepositoryURL)
		assert.Len(t, body.Data, 2)
		_, _ = io.WriteString(w, `{"data": [{"type": "commit", "id": "aaa"}]}`)
	})

	known, err := c.SearchCommits(context.Background(), []string{"aaa", "bbb"})
	require.NoError(t, err)
	assert.Equal(t, []string{"aaa"}, known)
}

func TestClientRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"data": {"attributes": {"flaky_test_retries_enabled": true}}}`)
	}, WithRetries(2))

	s, err := c.Settings(context.Background())
	require.NoError(t, err)
	assert.True(t, s.FlakyRetriesEnabled)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, "bad key")
	}, WithRetries(0))

	_, err := c.Settings(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
