package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/smartdevs17/xltoken-dashboard/pkg/utils"
)

// Claims is the subset of the session JWT payload the dashboard displays.
// The signature is never checked here; the backend remains the authority.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// ParseClaims decodes a JWT payload without verifying its signature.
func ParseClaims(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "malformed session token", err.Error())
	}
	if claims.Username == "" {
		claims.Username = claims.Subject
	}
	return claims, nil
}

// ExpiresAtTime returns the token expiry, zero when absent
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Expired reports whether the token carries an expiry before now
func (c *Claims) Expired(now time.Time) bool {
	exp := c.ExpiresAtTime()
	return !exp.IsZero() && exp.Before(now)
}
