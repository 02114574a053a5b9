package settings

// This file contains the HTTP client for the remote settings service.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

const (
	pathSettings      = "/api/v2/libraries/tests/services/setting"
	pathKnownTests    = "/api/v2/ci/libraries/tests"
	pathManagedTests  = "/api/v2/test/libraries/test-management/tests"
	pathSkippable     = "/api/v2/ci/tests/skippable"
	pathSearchCommits = "/api/v2/git/repository/search_commits"
)

const (
	knownTestsPageSize = 2000
	// knownTestsMaxPages bounds the pagination if the service keeps
	// answering with has_next.
	knownTestsMaxPages = 1000
)

// ErrNotFound is returned when the service answers without usable data.
var ErrNotFound = errors.New("no data returned")

// Service is the remote API used by the feature setup.
type Service interface {
	Settings(ctx context.Context) (Settings, error)
	KnownTests(ctx context.Context) (KnownTests, error)
	ManagedTests(ctx context.Context) (ManagedTests, error)
	SkippableTests(ctx context.Context) (SkippableTests, error)
	SearchCommits(ctx context.Context, commits []string) ([]string, error)
}

// Target identifies the repository and service the requests are made for.
type Target struct {
	Service       string
	Environment   string
	RepositoryURL string
	Branch        string
	Commit        string
	CommitMessage string
}

type Client struct {
	logger  zerolog.Logger
	http    *retryablehttp.Client
	baseURL string
	apiKey  string
	target  Target
}

var _ Service = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRetries sets the maximum number of retried requests.
func WithRetries(max int) ClientOption {
	return func(c *Client) {
		c.http.RetryMax = max
	}
}

// WithTimeout sets the timeout of a single request attempt.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.http.HTTPClient.Timeout = timeout
	}
}

func NewClient(logger zerolog.Logger, baseURL, apiKey string, target Target, opts ...ClientOption) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.HTTPClient = cleanhttp.DefaultPooledClient()
	httpClient.HTTPClient.Timeout = 15 * time.Second
	httpClient.RetryMax = 3
	httpClient.RetryWaitMin = 200 * time.Millisecond
	httpClient.RetryWaitMax = 2 * time.Second
	httpClient.Logger = leveledLogger{logger: logger}

	c := &Client{
		logger:  logger,
		http:    httpClient,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		target:  target,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type resource[T any] struct {
	Type       string `json:"type"`
	ID         string `json:"id,omitempty"`
	Attributes T      `json:"attributes"`
}

type configurations struct {
	OSPlatform     string `json:"os.platform,omitempty"`
	OSArchitecture string `json:"os.architecture,omitempty"`
	RuntimeName    string `json:"runtime.name,omitempty"`
	RuntimeVersion string `json:"runtime.version,omitempty"`
}

type settingsRequest struct {
	Service        string         `json:"service"`
	Env            string         `json:"env"`
	RepositoryURL  string         `json:"repository_url"`
	Branch         string         `json:"branch"`
	SHA            string         `json:"sha"`
	TestLevel      string         `json:"test_level,omitempty"`
	CommitMessage  string         `json:"commit_message,omitempty"`
	Configurations configurations `json:"configurations"`
	PageInfo       *pageRequest   `json:"page_info,omitempty"`
}

type pageRequest struct {
	PageSize  int    `json:"page_size"`
	PageState string `json:"page_state,omitempty"`
}

type pageResponse struct {
	Cursor  string `json:"cursor"`
	Size    int    `json:"size"`
	HasNext bool   `json:"has_next"`
}

func (c *Client) newRequest(kind string) resource[settingsRequest] {
	return resource[settingsRequest]{
		Type: kind,
		ID:   "1",
		Attributes: settingsRequest{
			Service:       c.target.Service,
			Env:           c.target.Environment,
			RepositoryURL: c.target.RepositoryURL,
			Branch:        c.target.Branch,
			SHA:           c.target.Commit,
			TestLevel:     "test",
			Configurations: configurations{
				OSPlatform:     runtime.GOOS,
				OSArchitecture: runtime.GOARCH,
				RuntimeName:    "go",
				RuntimeVersion: runtime.Version(),
			},
		},
	}
}

// Settings fetches the remote library configuration.
func (c *Client) Settings(ctx context.Context) (Settings, error) {
	var resp envelope[resource[Settings]]
	if err := c.post(ctx, pathSettings, envelope[resource[settingsRequest]]{Data: c.newRequest("ci_app_test_service_libraries_settings")}, &resp); err != nil {
		return Settings{}, fmt.Errorf("failed to fetch settings: %w", err)
	}
	return resp.Data.Attributes, nil
}

type knownTestsPage struct {
	Tests    KnownTests   `json:"tests"`
	PageInfo pageResponse `json:"page_info"`
}

// KnownTests fetches the registry of tests seen before, following the
// page cursor until the service reports no further page.
func (c *Client) KnownTests(ctx context.Context) (KnownTests, error) {
	var tests KnownTests
	cursor := ""
	for page := 1; ; page++ {
		req := c.newRequest("ci_app_libraries_tests_request")
		req.Attributes.PageInfo = &pageRequest{PageSize: knownTestsPageSize, PageState: cursor}

		var resp envelope[resource[knownTestsPage]]
		if err := c.post(ctx, pathKnownTests, envelope[resource[settingsRequest]]{Data: req}, &resp); err != nil {
			return nil, fmt.Errorf("failed to fetch known tests page %d: %w", page, err)
		}
		info := resp.Data.Attributes.PageInfo
		tests = tests.Merge(resp.Data.Attributes.Tests)
		c.logger.Debug().Int("page", page).Int("size", info.Size).Bool("has_next", info.HasNext).Msg("Known tests page fetched")

		if !info.HasNext {
			break
		}
		if info.Cursor == "" || info.Cursor == cursor {
			return nil, fmt.Errorf("failed to fetch known tests page %d: next page announced without a new cursor", page+1)
		}
		if page >= knownTestsMaxPages {
			return nil, fmt.Errorf("failed to fetch known tests: more than %d pages", knownTestsMaxPages)
		}
		cursor = info.Cursor
	}
	if tests.Count() == 0 {
		return nil, fmt.Errorf("failed to fetch known tests: %w", ErrNotFound)
	}
	return tests, nil
}

// ManagedTests fetches the test management registry.
func (c *Client) ManagedTests(ctx context.Context) (ManagedTests, error) {
	req := c.newRequest("ci_app_libraries_tests_request")
	req.Attributes.CommitMessage = c.target.CommitMessage
	var resp envelope[resource[ManagedTests]]
	if err := c.post(ctx, pathManagedTests, envelope[resource[settingsRequest]]{Data: req}, &resp); err != nil {
		return ManagedTests{}, fmt.Errorf("failed to fetch managed tests: %w", err)
	}
	if len(resp.Data.Attributes.Modules) == 0 {
		return ManagedTests{}, fmt.Errorf("failed to fetch managed tests: %w", ErrNotFound)
	}
	return resp.Data.Attributes, nil
}

type skippableResponse struct {
	Meta struct {
		CorrelationID string `json:"correlation_id"`
	} `json:"meta"`
	Data []resource[SkippableTest] `json:"data"`
}

// SkippableTests fetches the tests the impact analysis allows to skip.
func (c *Client) SkippableTests(ctx context.Context) (SkippableTests, error) {
	var resp skippableResponse
	if err := c.post(ctx, pathSkippable, envelope[resource[settingsRequest]]{Data: c.newRequest("test_params")}, &resp); err != nil {
		return SkippableTests{}, fmt.Errorf("failed to fetch skippable tests: %w", err)
	}
	out := SkippableTests{CorrelationID: resp.Meta.CorrelationID}
	for _, r := range resp.Data {
		if r.Type != "test" {
			continue
		}
		out.Tests = append(out.Tests, r.Attributes)
	}
	return out, nil
}

type commitResource struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// SearchCommits returns the subset of commits the backend already knows.
func (c *Client) SearchCommits(ctx context.Context, commits []string) ([]string, error) {
	body := struct {
		Meta struct {
			RepositoryURL string `json:"repository_url"`
		} `json:"meta"`
		Data []commitResource `json:"data"`
	}{}
	body.Meta.RepositoryURL = c.target.RepositoryURL
	for _, sha := range commits {
		body.Data = append(body.Data, commitResource{Type: "commit", ID: sha})
	}

	var resp struct {
		Data []commitResource `json:"data"`
	}
	if err := c.post(ctx, pathSearchCommits, body, &resp); err != nil {
		return nil, fmt.Errorf("failed to search commits: %w", err)
	}
	known := make([]string, 0, len(resp.Data))
	for _, r := range resp.Data {
		known = append(known, r.ID)
	}
	return known, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("DD-API-KEY", c.apiKey)

	c.logger.Debug().Str("path", path).Int("bytes", len(payload)).Msg("Sending request")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// leveledLogger adapts zerolog to retryablehttp.LeveledLogger.
type leveledLogger struct {
	logger zerolog.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}
