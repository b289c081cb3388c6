package models

import (
	"encoding/json"
	"math"
	"time"
)

// TokenStatus is the display state of a token
type TokenStatus string

const (
	TokenStatusActive         TokenStatus = "ACTIVE"
	TokenStatusRevoked        TokenStatus = "REVOKED"
	TokenStatusExpired        TokenStatus = "EXPIRED"
	TokenStatusLimitExhausted TokenStatus = "LIMIT_EXHAUSTED"
)

// Token is a time-boxed, transaction-limited access credential.
type Token struct {
	ID                string    `json:"_id"`
	Username          string    `json:"username"`
	Token             string    `json:"token"`
	IsActive          bool      `json:"isactive"`
	TransactionsLimit int       `json:"transactionslimit"`
	CreatedAt         time.Time `json:"createdAt"`
	ExpiredAt         time.Time `json:"expiredAt"`
}

// UnmarshalJSON tolerates "id" in place of "_id" and unparseable dates.
func (t *Token) UnmarshalJSON(data []byte) error {
	var raw struct {
		MongoID           string          `json:"_id"`
		ID                string          `json:"id"`
		Username          string          `json:"username"`
		Token             string          `json:"token"`
		IsActive          bool            `json:"isactive"`
		TransactionsLimit int             `json:"transactionslimit"`
		CreatedAt         json.RawMessage `json:"createdAt"`
		ExpiredAt         json.RawMessage `json:"expiredAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	t.ID = raw.ID
	if raw.MongoID != "" {
		t.ID = raw.MongoID
	}
	t.Username = raw.Username
	t.Token = raw.Token
	t.IsActive = raw.IsActive
	t.TransactionsLimit = raw.TransactionsLimit
	t.CreatedAt, _ = parseTimestamp(raw.CreatedAt)
	t.ExpiredAt, _ = parseTimestamp(raw.ExpiredAt)
	return nil
}

// Status derives the badge shown for the token at the given time. An
// unparseable expiry never counts as expired.
func (t Token) Status(now time.Time) TokenStatus {
	switch {
	case !t.IsActive:
		return TokenStatusRevoked
	case !t.ExpiredAt.IsZero() && t.ExpiredAt.Before(now):
		return TokenStatusExpired
	case t.TransactionsLimit <= 0:
		return TokenStatusLimitExhausted
	default:
		return TokenStatusActive
	}
}

// DaysRemaining returns the whole days until expiry, rounded up. Negative
// once the token has expired.
func (t Token) DaysRemaining(now time.Time) int {
	return int(math.Ceil(t.ExpiredAt.Sub(now).Hours() / 24))
}

// CreateTokenRequest is the payload for creating a token
type CreateTokenRequest struct {
	Username          string `json:"username"`
	ExpiredDays       int    `json:"expired"`
	TransactionsLimit int    `json:"transactionslimit,omitempty"`
}

// UpdateTokenRequest extends a token; ExpiredDays is a day count, not a date.
// A nil TransactionsLimit leaves the limit unchanged; zero is sent as zero.
type UpdateTokenRequest struct {
	ExpiredDays       int  `json:"expiredAt"`
	TransactionsLimit *int `json:"transactionslimit,omitempty"`
}

// TokenCheckResult is the public checker response
type TokenCheckResult struct {
	Token         *Token      `json:"token,omitempty"`
	Status        TokenStatus `json:"status,omitempty"`
	DaysRemaining int         `json:"days_remaining"`
	Message       string      `json:"message,omitempty"`
}
