// Package tokens manages the admin token list and the announcement board,
// reconciling the local cache after each successful backend mutation.
package tokens

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/xltoken-dashboard/internal/models"
	"github.com/smartdevs17/xltoken-dashboard/pkg/utils"
)

// API is the part of the backend client the boards use
type API interface {
	GetTokens(ctx context.Context) ([]models.Token, error)
	CreateToken(ctx context.Context, req models.CreateTokenRequest, custom bool) (*models.Token, error)
	RevokeToken(ctx context.Context, id string) (bool, error)
	UpdateToken(ctx context.Context, id string, req models.UpdateTokenRequest) (*models.Token, error)
	DeleteToken(ctx context.Context, id string) error
	CheckToken(ctx context.Context, token string) (*models.Token, string, error)

	GetInformation(ctx context.Context, public bool) ([]models.Information, error)
	CreateInformation(ctx context.Context, text string) error
	UpdateInformation(ctx context.Context, id, text string) error
	DeleteInformation(ctx context.Context, id string) error
}

// Board caches the token list
type Board struct {
	api    API
	mu     sync.RWMutex
	tokens []models.Token
	loaded bool
	now    func() time.Time
	logger *logrus.Entry
}

// NewBoard creates a token board
func NewBoard(api API) *Board {
	return &Board{
		api:    api,
		now:    time.Now,
		logger: utils.ComponentLogger("token_board"),
	}
}

// Refresh refetches the token list, newest first. On failure the cache is
// left untouched.
func (b *Board) Refresh(ctx context.Context) ([]models.Token, error) {
	list, err := b.api.GetTokens(ctx)
	if err != nil {
		b.logger.WithError(err).Warn("Failed to fetch tokens")
		return nil, err
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})

	b.mu.Lock()
	b.tokens = list
	b.loaded = true
	b.mu.Unlock()

	return b.Tokens(), nil
}

// Tokens returns a copy of the cached list
func (b *Board) Tokens() []models.Token {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.Token, len(b.tokens))
	copy(out, b.tokens)
	return out
}

// Loaded reports whether the list has been fetched at least once
func (b *Board) Loaded() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loaded
}

// Active returns cached tokens that are not revoked
func (b *Board) Active() []models.Token {
	return b.partition(true)
}

// Revoked returns cached tokens that are revoked
func (b *Board) Revoked() []models.Token {
	return b.partition(false)
}

func (b *Board) partition(active bool) []models.Token {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.Token, 0)
	for _, t := range b.tokens {
		if t.IsActive == active {
			out = append(out, t)
		}
	}
	return out
}

// Search returns cached tokens whose username contains term, ignoring case
func (b *Board) Search(term string) []models.Token {
	needle := strings.ToLower(term)
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.Token, 0)
	for _, t := range b.tokens {
		if strings.Contains(strings.ToLower(t.Username), needle) {
			out = append(out, t)
		}
	}
	return out
}

// Create issues a token and refetches the list
func (b *Board) Create(ctx context.Context, req models.CreateTokenRequest) (*models.Token, error) {
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "username must not be empty")
	}
	if req.ExpiredDays <= 0 {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "expiry must be greater than 0 days")
	}
	if req.TransactionsLimit < 0 {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "transaction limit must not be negative")
	}

	created, err := b.api.CreateToken(ctx, req, req.TransactionsLimit > 0)
	if err != nil {
		return nil, err
	}
	b.logger.WithFields(logrus.Fields{
		"username":     req.Username,
		"expired_days": req.ExpiredDays,
	}).Info("Token created")

	if _, err := b.Refresh(ctx); err != nil {
		return created, err
	}
	return created, nil
}

// Revoke marks a token inactive and patches the cached entry from the response.
func (b *Board) Revoke(ctx context.Context, id string) error {
	active, err := b.api.RevokeToken(ctx, id)
	if err != nil {
		return err
	}

	b.mu.Lock()
	for i := range b.tokens {
		if b.tokens[i].ID == id {
			b.tokens[i].IsActive = active
		}
	}
	b.mu.Unlock()

	b.logger.WithField("token_id", id).Info("Token revoked")
	return nil
}

// Extend sets a new expiry days from now and optionally a new limit. The
// cached entry is replaced from the response, or the list is refetched when
// the backend returns no token.
func (b *Board) Extend(ctx context.Context, id string, days int, limit *int) (*models.Token, error) {
	if days <= 0 {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "expiry must be greater than 0 days")
	}
	if limit != nil && *limit < 0 {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "transaction limit must not be negative")
	}

	updated, err := b.api.UpdateToken(ctx, id, models.UpdateTokenRequest{ExpiredDays: days, TransactionsLimit: limit})
	if err != nil {
		return nil, err
	}
	b.logger.WithFields(logrus.Fields{"token_id": id, "days": days}).Info("Token extended")

	if updated == nil || updated.ID == "" {
		_, err := b.Refresh(ctx)
		return nil, err
	}

	b.mu.Lock()
	for i := range b.tokens {
		if b.tokens[i].ID == updated.ID {
			b.tokens[i] = *updated
		}
	}
	b.mu.Unlock()
	return updated, nil
}

// Delete removes a token permanently and drops it from the cache
func (b *Board) Delete(ctx context.Context, id string) error {
	if err := b.api.DeleteToken(ctx, id); err != nil {
		return err
	}

	b.mu.Lock()
	kept := b.tokens[:0]
	for _, t := range b.tokens {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	b.tokens = kept
	b.mu.Unlock()

	b.logger.WithField("token_id", id).Info("Token deleted")
	return nil
}

// Check looks a token up through the public checker
func (b *Board) Check(ctx context.Context, token string) (*models.TokenCheckResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "token must not be empty")
	}

	found, message, err := b.api.CheckToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if found == nil || found.Username == "" {
		if message == "" {
			message = "token is valid but its data is incomplete"
		}
		return &models.TokenCheckResult{Message: message}, nil
	}

	now := b.now()
	if message == "" {
		message = "token found"
	}
	return &models.TokenCheckResult{
		Token:         found,
		Status:        found.Status(now),
		DaysRemaining: found.DaysRemaining(now),
		Message:       message,
	}, nil
}
