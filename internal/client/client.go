// Package client is the REST client for the xltoken backend. A Client is
// built from an explicit Config and passed to its users; there is no
// package-level instance.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/xltoken-dashboard/pkg/utils"
)

// DefaultAuthHeader is the header the backend reads the session token from.
// It is literally named "Bearer", not an Authorization: Bearer scheme.
const DefaultAuthHeader = "Bearer"

// messageTokenInvalid is the backend body message for a rejected session.
const messageTokenInvalid = "token invalid"

// TokenSource supplies the current session token; "" means logged out.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource
type TokenFunc func() string

// Token implements TokenSource
func (f TokenFunc) Token() string { return f() }

// Config holds client configuration
type Config struct {
	BaseURL    string        `json:"base_url"`
	Timeout    time.Duration `json:"timeout"`
	AuthHeader string        `json:"auth_header"`
	UserAgent  string        `json:"user_agent"`

	// OnUnauthorized runs when the backend rejects the session token.
	OnUnauthorized func() `json:"-"`

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client `json:"-"`
}

// Client talks to the backend REST API
type Client struct {
	baseURL    *url.URL
	authHeader string
	userAgent  string
	httpClient *http.Client
	tokens     TokenSource
	onUnauth   func()
	logger     *logrus.Entry
}

// New creates a client
func New(cfg Config, tokens TokenSource) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, utils.NewAppError(utils.ErrCodeConfiguration, "API base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, utils.NewAppError(utils.ErrCodeConfiguration, "invalid API base URL", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.AuthHeader == "" {
		cfg.AuthHeader = DefaultAuthHeader
	}
	if tokens == nil {
		tokens = TokenFunc(func() string { return "" })
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     30 * time.Second,
			},
		}
	}

	return &Client{
		baseURL:    base,
		authHeader: cfg.AuthHeader,
		userAgent:  cfg.UserAgent,
		httpClient: httpClient,
		tokens:     tokens,
		onUnauth:   cfg.OnUnauthorized,
		logger:     utils.ComponentLogger("api_client"),
	}, nil
}

// BaseURL returns the configured backend URL
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// errorBody is the backend error envelope
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

type request struct {
	method string
	path   string
	body   interface{}
	// auth marks endpoints that need a session token
	auth bool
}

// do sends req and decodes a 2xx JSON body into out when out is non-nil.
func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	token := c.tokens.Token()
	if req.auth && token == "" {
		return utils.NewAppError(utils.ErrCodeUnauthorized, "not logged in")
	}

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return utils.NewAppError(utils.ErrCodeInternal, "failed to encode request", err.Error())
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL.String()+req.path, body)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeInternal, "failed to build request", err.Error())
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if token != "" {
		httpReq.Header.Set(c.authHeader, token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"method": req.method,
			"path":   req.path,
			"error":  err,
		}).Error("Request error")
		return utils.NewAppError(utils.ErrCodeConnection, "backend request failed", err.Error())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeConnection, "failed to read response", err.Error()).WithStatus(resp.StatusCode)
	}

	c.logger.WithFields(logrus.Fields{
		"method":   req.method,
		"path":     req.path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("Backend request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.handleError(req, resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return utils.NewAppError(utils.ErrCodeUpstream, "unexpected response body", err.Error()).WithStatus(resp.StatusCode)
	}
	return nil
}

func (c *Client) handleError(req request, status int, data []byte) error {
	var eb errorBody
	_ = json.Unmarshal(data, &eb)
	message := eb.Message
	if message == "" {
		message = eb.Error
	}

	c.logger.WithFields(logrus.Fields{
		"method":  req.method,
		"path":    req.path,
		"status":  status,
		"message": message,
	}).Warn("Response error")

	if status == http.StatusUnauthorized || message == messageTokenInvalid {
		if c.onUnauth != nil {
			c.onUnauth()
		}
		if message == "" {
			message = "session expired"
		}
		return utils.NewAppError(utils.ErrCodeUnauthorized, message).WithStatus(status)
	}

	if message == "" {
		message = http.StatusText(status)
	}
	code := utils.ErrCodeUpstream
	if status == http.StatusNotFound {
		code = utils.ErrCodeNotFound
	}
	return utils.NewAppError(code, message, fmt.Sprintf("%s %s returned %d", req.method, req.path, status)).WithStatus(status)
}

// Message extracts the backend message carried by err, falling back to
// err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
