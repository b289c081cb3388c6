package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/smartdevs17/xltoken-dashboard/internal/models"
	"github.com/smartdevs17/xltoken-dashboard/pkg/utils"
)

// LoginResponse is returned by /auth/login
type LoginResponse struct {
	Token   string `json:"token"`
	Message string `json:"message,omitempty"`
}

// dataEnvelope wraps single-object responses
type dataEnvelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Login exchanges credentials for a session token
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var resp LoginResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   map[string]string{"username": username, "password": password},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, utils.NewAppError(utils.ErrCodeUnauthorized, "login response carried no token")
	}
	return &resp, nil
}

// GetTokenLogTransactions fetches every transaction log entry
func (c *Client) GetTokenLogTransactions(ctx context.Context) ([]models.LogEntry, error) {
	var entries []models.LogEntry
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/xltoken/gettokenlogtransactions", auth: true}, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.LogEntry{}
	}
	return entries, nil
}

// GetTokens lists every managed token
func (c *Client) GetTokens(ctx context.Context) ([]models.Token, error) {
	var tokens []models.Token
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/xltoken/gettoken", auth: true}, &tokens); err != nil {
		return nil, err
	}
	if tokens == nil {
		tokens = []models.Token{}
	}
	return tokens, nil
}

// CreateToken issues a new token. custom selects the endpoint that honours
// a caller-supplied transaction limit.
func (c *Client) CreateToken(ctx context.Context, req models.CreateTokenRequest, custom bool) (*models.Token, error) {
	path := "/api/xltoken/createtoken"
	if custom {
		path = "/api/xltoken/createtokencustom"
	}
	var env dataEnvelope
	if err := c.do(ctx, request{method: http.MethodPost, path: path, body: req, auth: true}, &env); err != nil {
		return nil, err
	}
	return decodeToken(env.Data)
}

// RevokeToken marks a token inactive and returns the new active flag
func (c *Client) RevokeToken(ctx context.Context, id string) (bool, error) {
	var env struct {
		Data struct {
			IsActive bool `json:"isactive"`
		} `json:"data"`
	}
	if err := c.do(ctx, request{method: http.MethodPut, path: "/api/xltoken/revoketoken/" + url.PathEscape(id), auth: true}, &env); err != nil {
		return false, err
	}
	return env.Data.IsActive, nil
}

// UpdateToken extends a token's expiry (days from now) and optionally its limit
func (c *Client) UpdateToken(ctx context.Context, id string, req models.UpdateTokenRequest) (*models.Token, error) {
	var env dataEnvelope
	if err := c.do(ctx, request{method: http.MethodPut, path: "/api/xltoken/updatetoken/" + url.PathEscape(id), body: req, auth: true}, &env); err != nil {
		return nil, err
	}
	return decodeToken(env.Data)
}

// DeleteToken permanently removes a token
func (c *Client) DeleteToken(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/api/xltoken/deletetoken/" + url.PathEscape(id), auth: true}, nil)
}

// CheckToken looks a token up through the public checker. The backend
// returns the token either under "data" or as the root object.
func (c *Client) CheckToken(ctx context.Context, token string) (*models.Token, string, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/public/xltoken/publicchecktoken",
		body:   map[string]string{"token": token},
	}, &raw)
	if err != nil {
		return nil, "", err
	}

	var env dataEnvelope
	_ = json.Unmarshal(raw, &env)

	body := env.Data
	if len(body) == 0 || string(body) == "null" {
		body = raw
	}
	t, err := decodeToken(body)
	if err != nil {
		return nil, env.Message, err
	}
	return t, env.Message, nil
}

// GetInformation lists announcement entries. public uses the endpoint that
// needs no session.
func (c *Client) GetInformation(ctx context.Context, public bool) ([]models.Information, error) {
	path := "/api/xlinformation/getinformation"
	if public {
		path = "/api/public/xlinformation/getinformation"
	}
	var infos []models.Information
	if err := c.do(ctx, request{method: http.MethodGet, path: path, auth: !public}, &infos); err != nil {
		return nil, err
	}
	if infos == nil {
		infos = []models.Information{}
	}
	return infos, nil
}

// CreateInformation posts a new announcement
func (c *Client) CreateInformation(ctx context.Context, text string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/xlinformation/createinformation",
		body:   map[string]string{"information": text},
		auth:   true,
	}, nil)
}

// UpdateInformation replaces an announcement's text
func (c *Client) UpdateInformation(ctx context.Context, id, text string) error {
	return c.do(ctx, request{
		method: http.MethodPut,
		path:   "/api/xlinformation/updateinformation/" + url.PathEscape(id),
		body:   map[string]string{"information": text},
		auth:   true,
	}, nil)
}

// DeleteInformation removes an announcement
func (c *Client) DeleteInformation(ctx context.Context, id string) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/api/xlinformation/deleteinformation/" + url.PathEscape(id),
		auth:   true,
	}, nil)
}

func decodeToken(data json.RawMessage) (*models.Token, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var t models.Token
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeUpstream, "unexpected token payload", err.Error())
	}
	return &t, nil
}
