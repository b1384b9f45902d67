package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/listenupapp/tagsync/internal/ratelimit"
)

const (
	// DefaultBaseURL is the public gist API.
	DefaultBaseURL = "https://api.github.com"

	defaultRPS     = 2.0
	defaultBurst   = 5
	defaultTimeout = 30 * time.Second

	// Cap on a single response body.
	maxBodySize = 32 << 20
)

// Options configures an HTTPClient.
type Options struct {
	BaseURL string
	Timeout time.Duration
	RPS     float64
	Burst   int
	// Tokens supplies the access token. Requests go out unauthenticated when
	// it is nil or has no token.
	Tokens oauth2.TokenSource
}

// HTTPClient is a rate-limited client for a gist-style document API.
type HTTPClient struct {
	http    *http.Client
	baseURL *url.URL
	tokens  oauth2.TokenSource
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger
	maxBody int64
}

var _ Service = (*HTTPClient)(nil)

// NewHTTPClient creates a client.
func NewHTTPClient(opts Options, logger *slog.Logger) (*HTTPClient, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RPS <= 0 {
		opts.RPS = defaultRPS
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultBurst
	}
	if logger == nil {
		logger = slog.Default()
	}

	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid remote base url %q", opts.BaseURL)
	}

	return &HTTPClient{
		http:    &http.Client{Timeout: opts.Timeout},
		baseURL: base,
		tokens:  opts.Tokens,
		limiter: ratelimit.New(opts.RPS, opts.Burst),
		logger:  logger,
		maxBody: maxBodySize,
	}, nil
}

// Close releases resources held by the client.
func (c *HTTPClient) Close() {
	c.limiter.Stop()
}

type gistFile struct {
	Filename  string `json:"filename"`
	Content   string `json:"content"`
	Size      int    `json:"size"`
	Truncated bool   `json:"truncated"`
	RawURL    string `json:"raw_url"`
}

type gistResponse struct {
	ID          string              `json:"id"`
	Description string              `json:"description"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Files       map[string]gistFile `json:"files"`
}

type fileContent struct {
	Content string `json:"content"`
}

type gistRequest struct {
	Description string                 `json:"description,omitempty"`
	Public      *bool                  `json:"public,omitempty"`
	Files       map[string]fileContent `json:"files"`
}

// Get implements Service. Truncated files are fetched from their raw URL.
func (c *HTTPClient) Get(ctx context.Context, id string) (*Document, error) {
	body, err := c.doRequest(ctx, http.MethodGet, c.gistURL(id), nil)
	if err != nil {
		return nil, wrapError("get", id, err)
	}

	var resp gistResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, wrapError("get", id, fmt.Errorf("decode response: %w", err))
	}

	doc := &Document{
		ID:          resp.ID,
		Description: resp.Description,
		UpdatedAt:   resp.UpdatedAt,
		Files:       make(map[string]File, len(resp.Files)),
	}
	for name, f := range resp.Files {
		file := File{Name: name, Content: f.Content, Size: f.Size, Truncated: f.Truncated, RawURL: f.RawURL}
		if f.Truncated && f.RawURL != "" {
			raw, err := c.doRequest(ctx, http.MethodGet, f.RawURL, nil)
			if err != nil {
				return nil, wrapError("raw", id, fmt.Errorf("%s: %w", name, err))
			}
			file.Content = string(raw)
			file.Truncated = false
		}
		doc.Files[name] = file
	}
	return doc, nil
}

// Update implements Service.
func (c *HTTPClient) Update(ctx context.Context, id string, files map[string]string) error {
	req := gistRequest{Files: toFileContents(files)}
	if _, err := c.doRequest(ctx, http.MethodPatch, c.gistURL(id), req); err != nil {
		return wrapError("update", id, err)
	}
	return nil
}

// Create implements Service. The document is private.
func (c *HTTPClient) Create(ctx context.Context, description string, files map[string]string) (string, error) {
	public := false
	req := gistRequest{Description: description, Public: &public, Files: toFileContents(files)}

	body, err := c.doRequest(ctx, http.MethodPost, c.baseURL.JoinPath("gists").String(), req)
	if err != nil {
		return "", wrapError("create", "", err)
	}
	var resp gistResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", wrapError("create", "", fmt.Errorf("decode response: %w", err))
	}
	if resp.ID == "" {
		return "", wrapError("create", "", fmt.Errorf("response carried no document id"))
	}
	return resp.ID, nil
}

func (c *HTTPClient) gistURL(id string) string {
	return c.baseURL.JoinPath("gists", id).String()
}

func toFileContents(files map[string]string) map[string]fileContent {
	out := make(map[string]fileContent, len(files))
	for name, content := range files {
		out[name] = fileContent{Content: content}
	}
	return out
}

// doRequest executes an HTTP request with rate limiting.
func (c *HTTPClient) doRequest(ctx context.Context, method, rawURL string, payload any) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	if err := c.limiter.Wait(ctx, u.Host); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "tagsync/1.0")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// Raw file URLs come from remote payloads; credentials only go to the API host.
	if u.Host == c.baseURL.Host {
		c.authorize(req)
	}

	c.logger.Debug("remote request",
		"method", method,
		"path", u.Path,
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(respBody)) > c.maxBody {
		return nil, fmt.Errorf("%w: over %d bytes", ErrTooLarge, c.maxBody)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return respBody, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, ErrBadRequest
	case resp.StatusCode >= 500:
		return nil, ErrServer
	default:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.tokens == nil {
		return
	}
	tok, err := c.tokens.Token()
	if err != nil {
		c.logger.Debug("remote request without credentials", "reason", err)
		return
	}
	tok.SetAuthHeader(req)
}
