// Package identity adapts the external authentication service to the
// blobstore.IdentityResolver interface.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/apdi/blobstore/pkg/blobstore"
)

const defaultTimeout = 5 * time.Second

// Client resolves tokens against the auth HTTP API. The API exposes
// GET {base}/v1/token/{token}, returning the token owner on success and
// 401/404 for tokens it does not recognize.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client, e.g. to set a custom timeout.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// NewClient creates a resolver backed by the auth API at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid auth API URL %q", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type tokenResponse struct {
	User string `json:"user"`
}

func (c *Client) ResolveToken(ctx context.Context, token string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/token/%s", c.baseURL, url.PathEscape(token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth service unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body tokenResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return "", fmt.Errorf("decoding auth response: %w", err)
		}
		if body.User == "" {
			return "", fmt.Errorf("auth service returned empty user")
		}
		return body.User, nil
	case http.StatusUnauthorized, http.StatusNotFound:
		return "", blobstore.ErrInvalidToken
	default:
		return "", fmt.Errorf("auth service returned status %d", resp.StatusCode)
	}
}

// StaticResolver resolves tokens from a fixed map. Used by tests and
// single-process deployments without an auth service.
type StaticResolver struct {
	tokens map[string]string
}

// NewStatic creates a resolver over a token -> username map.
func NewStatic(tokens map[string]string) *StaticResolver {
	copied := make(map[string]string, len(tokens))
	for token, user := range tokens {
		copied[token] = user
	}
	return &StaticResolver{tokens: copied}
}

func (s *StaticResolver) ResolveToken(ctx context.Context, token string) (string, error) {
	user, ok := s.tokens[token]
	if !ok {
		return "", blobstore.ErrInvalidToken
	}
	return user, nil
}
