package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/xltoken-dashboard/internal/models"
	"github.com/smartdevs17/xltoken-dashboard/pkg/utils"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, token string, onUnauth func()) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:        srv.URL,
		Timeout:        2 * time.Second,
		OnUnauthorized: onUnauth,
	}, TokenFunc(func() string { return token }))
	require.NoError(t, err)
	return c
}

func TestNewValidatesBaseURL(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.True(t, utils.IsCode(err, utils.ErrCodeConfiguration))

	_, err = New(Config{BaseURL: "not a url"}, nil)
	assert.True(t, utils.IsCode(err, utils.ErrCodeConfiguration))
}

func TestGetTokenLogTransactionsSendsAuthHeader(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/xltoken/gettokenlogtransactions", r.URL.Path)
		assert.Equal(t, "session-token", r.Header.Get("Bearer"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"_id":"a","username":"alice","createdAt":"2024-05-01T10:00:00.000Z"},
			{"_id":"b","username":"bob","createdAt":"garbage"}
		]`))
	}, "session-token", nil)

	entries, err := c.GetTokenLogTransactions(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].ID)
	assert.True(t, entries[0].Valid())
	assert.False(t, entries[1].Valid())
	assert.Equal(t, "garbage", entries[1].RawCreatedAt)
}

func TestAuthenticatedCallWithoutTokenFailsFast(t *testing.T) {
	var hits int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}, "", nil)

	_, err := c.GetTokens(context.Background())
	assert.True(t, utils.IsCode(err, utils.ErrCodeUnauthorized))
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestUnauthorizedStatusInvokesCallback(t *testing.T) {
	var called int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"jwt expired"}`))
	}, "tok", func() { atomic.AddInt32(&called, 1) })

	_, err := c.GetTokens(context.Background())
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.ErrCodeUnauthorized))
	assert.Equal(t, "jwt expired", Message(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&called))
}

func TestTokenInvalidMessageInvokesCallback(t *testing.T) {
	var called int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"token invalid"}`))
	}, "tok", func() { atomic.AddInt32(&called, 1) })

	_, err := c.GetTokenLogTransactions(context.Background())
	assert.True(t, utils.IsCode(err, utils.ErrCodeUnauthorized))
	assert.Equal(t, int32(1), atomic.LoadInt32(&called))
}

func TestUpstreamErrorCarriesMessage(t *testing.T) {
	var called int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"username already exists"}`))
	}, "tok", func() { atomic.AddInt32(&called, 1) })

	_, err := c.CreateToken(context.Background(), models.CreateTokenRequest{Username: "x", ExpiredDays: 1}, false)
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.ErrCodeUpstream))
	assert.Equal(t, "username already exists", Message(err))
	assert.Zero(t, atomic.LoadInt32(&called))
}

func TestCreateTokenPayloadAndEndpoint(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/xltoken/createtokencustom", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice", body["username"])
		assert.Equal(t, float64(30), body["expired"])
		assert.Equal(t, float64(500), body["transactionslimit"])

		_, _ = w.Write([]byte(`{"data":{"_id":"t1","username":"alice","token":"abc","isactive":true,"transactionslimit":500}}`))
	}, "tok", nil)

	tok, err := c.CreateToken(context.Background(), models.CreateTokenRequest{
		Username: "alice", ExpiredDays: 30, TransactionsLimit: 500,
	}, true)
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, "t1", tok.ID)
	assert.True(t, tok.IsActive)
}

func TestRevokeToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/xltoken/revoketoken/t1", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"isactive":false}}`))
	}, "tok", nil)

	active, err := c.RevokeToken(context.Background(), "t1")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestUpdateTokenSendsDayCount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/xltoken/updatetoken/t1", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(30), body["expiredAt"])
		_, _ = w.Write([]byte(`{"data":{"_id":"t1","isactive":true,"expiredAt":"2030-01-01T00:00:00Z"}}`))
	}, "tok", nil)

	tok, err := c.UpdateToken(context.Background(), "t1", models.UpdateTokenRequest{ExpiredDays: 30})
	require.NoError(t, err)
	assert.Equal(t, 2030, tok.ExpiredAt.Year())
}

func TestUpdateTokenLimitPresence(t *testing.T) {
	var bodies []map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		_, _ = w.Write([]byte(`{"data":{"_id":"t1","isactive":true}}`))
	}, "tok", nil)

	zero := 0
	_, err := c.UpdateToken(context.Background(), "t1", models.UpdateTokenRequest{ExpiredDays: 5, TransactionsLimit: &zero})
	require.NoError(t, err)
	_, err = c.UpdateToken(context.Background(), "t1", models.UpdateTokenRequest{ExpiredDays: 5})
	require.NoError(t, err)

	require.Len(t, bodies, 2)
	limit, ok := bodies[0]["transactionslimit"]
	assert.True(t, ok)
	assert.Equal(t, float64(0), limit)
	assert.NotContains(t, bodies[1], "transactionslimit")
}

func TestCheckTokenAcceptsBothShapes(t *testing.T) {
	wrapped := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Bearer"))
		_, _ = w.Write([]byte(`{"message":"Token ditemukan","data":{"_id":"t1","username":"alice","isactive":true}}`))
	}, "", nil)
	tok, msg, err := wrapped.CheckToken(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "alice", tok.Username)
	assert.Equal(t, "Token ditemukan", msg)

	root := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"_id":"t2","username":"bob","isactive":false}`))
	}, "", nil)
	tok, _, err = root.CheckToken(context.Background(), "def")
	require.NoError(t, err)
	assert.Equal(t, "bob", tok.Username)
}

func TestPublicInformationNeedsNoSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/public/xlinformation/getinformation", r.URL.Path)
		_, _ = w.Write([]byte(`[{"_id":"i1","information":"maintenance tonight","createdAt":"2024-05-01T00:00:00Z"}]`))
	}, "", nil)

	infos, err := c.GetInformation(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "maintenance tonight", infos[0].Information)
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		_, _ = w.Write([]byte(`{"token":"jwt-value"}`))
	}, "", nil)

	resp, err := c.Login(context.Background(), "admin", "secret")
	require.NoError(t, err)
	assert.Equal(t, "jwt-value", resp.Token)
}

func TestConnectionErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: base, Timeout: time.Second}, TokenFunc(func() string { return "tok" }))
	require.NoError(t, err)

	_, err = c.GetTokenLogTransactions(context.Background())
	assert.True(t, utils.IsCode(err, utils.ErrCodeConnection))
}
