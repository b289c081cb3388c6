package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/xltoken-dashboard/internal/models"
	"github.com/smartdevs17/xltoken-dashboard/pkg/utils"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) GetTokens(ctx context.Context) ([]models.Token, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]models.Token)
	return list, args.Error(1)
}

func (m *mockAPI) CreateToken(ctx context.Context, req models.CreateTokenRequest, custom bool) (*models.Token, error) {
	args := m.Called(ctx, req, custom)
	t, _ := args.Get(0).(*models.Token)
	return t, args.Error(1)
}

func (m *mockAPI) RevokeToken(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockAPI) UpdateToken(ctx context.Context, id string, req models.UpdateTokenRequest) (*models.Token, error) {
	args := m.Called(ctx, id, req)
	t, _ := args.Get(0).(*models.Token)
	return t, args.Error(1)
}

func (m *mockAPI) DeleteToken(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockAPI) CheckToken(ctx context.Context, token string) (*models.Token, string, error) {
	args := m.Called(ctx, token)
	t, _ := args.Get(0).(*models.Token)
	return t, args.String(1), args.Error(2)
}

func (m *mockAPI) GetInformation(ctx context.Context, public bool) ([]models.Information, error) {
	args := m.Called(ctx, public)
	list, _ := args.Get(0).([]models.Information)
	return list, args.Error(1)
}

func (m *mockAPI) CreateInformation(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}

func (m *mockAPI) UpdateInformation(ctx context.Context, id, text string) error {
	return m.Called(ctx, id, text).Error(0)
}

func (m *mockAPI) DeleteInformation(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

var day = 24 * time.Hour

func sampleTokens() []models.Token {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return []models.Token{
		{ID: "old", Username: "alice", IsActive: true, CreatedAt: base, ExpiredAt: base.Add(30 * day)},
		{ID: "new", Username: "Bob", IsActive: true, CreatedAt: base.Add(2 * day), ExpiredAt: base.Add(60 * day)},
		{ID: "mid", Username: "carol", IsActive: false, CreatedAt: base.Add(day), ExpiredAt: base.Add(10 * day)},
	}
}

func loadedBoard(t *testing.T) (*Board, *mockAPI) {
	t.Helper()
	api := new(mockAPI)
	api.On("GetTokens", mock.Anything).Return(sampleTokens(), nil).Once()

	b := NewBoard(api)
	_, err := b.Refresh(context.Background())
	require.NoError(t, err)
	return b, api
}

func ids(list []models.Token) []string {
	out := make([]string, len(list))
	for i, t := range list {
		out[i] = t.ID
	}
	return out
}

func TestRefreshSortsNewestFirst(t *testing.T) {
	b, api := loadedBoard(t)
	assert.True(t, b.Loaded())
	assert.Equal(t, []string{"new", "mid", "old"}, ids(b.Tokens()))
	assert.Equal(t, []string{"new", "old"}, ids(b.Active()))
	assert.Equal(t, []string{"mid"}, ids(b.Revoked()))
	assert.Equal(t, []string{"new"}, ids(b.Search("bo")))
	api.AssertExpectations(t)
}

func TestRefreshFailureKeepsCache(t *testing.T) {
	b, api := loadedBoard(t)
	api.On("GetTokens", mock.Anything).Return(nil, utils.NewAppError(utils.ErrCodeConnection, "down")).Once()

	_, err := b.Refresh(context.Background())
	assert.Error(t, err)
	assert.Len(t, b.Tokens(), 3)
}

func TestRevokePatchesCache(t *testing.T) {
	b, api := loadedBoard(t)
	api.On("RevokeToken", mock.Anything, "old").Return(false, nil).Once()

	require.NoError(t, b.Revoke(context.Background(), "old"))
	assert.Equal(t, []string{"new"}, ids(b.Active()))
	assert.ElementsMatch(t, []string{"mid", "old"}, ids(b.Revoked()))
	api.AssertExpectations(t)
}

func TestRevokeFailureLeavesCache(t *testing.T) {
	b, api := loadedBoard(t)
	api.On("RevokeToken", mock.Anything, "old").Return(false, utils.NewAppError(utils.ErrCodeUpstream, "nope")).Once()

	assert.Error(t, b.Revoke(context.Background(), "old"))
	assert.Len(t, b.Active(), 2)
}

func TestDeleteDropsFromCache(t *testing.T) {
	b, api := loadedBoard(t)
	api.On("DeleteToken", mock.Anything, "mid").Return(nil).Once()

	require.NoError(t, b.Delete(context.Background(), "mid"))
	assert.Equal(t, []string{"new", "old"}, ids(b.Tokens()))
}

func TestCreateValidatesAndRefetches(t *testing.T) {
	b, api := loadedBoard(t)
	ctx := context.Background()

	_, err := b.Create(ctx, models.CreateTokenRequest{Username: "  ", ExpiredDays: 5})
	assert.True(t, utils.IsCode(err, utils.ErrCodeValidation))
	_, err = b.Create(ctx, models.CreateTokenRequest{Username: "dave", ExpiredDays: 0})
	assert.True(t, utils.IsCode(err, utils.ErrCodeValidation))

	req := models.CreateTokenRequest{Username: "dave", ExpiredDays: 7}
	created := &models.Token{ID: "dave-1", Username: "dave", IsActive: true}
	api.On("CreateToken", mock.Anything, req, false).Return(created, nil).Once()
	api.On("GetTokens", mock.Anything).Return(append(sampleTokens(), *created), nil).Once()

	got, err := b.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "dave-1", got.ID)
	assert.Len(t, b.Tokens(), 4)
	api.AssertExpectations(t)
}

func TestCreateWithLimitUsesCustomEndpoint(t *testing.T) {
	api := new(mockAPI)
	req := models.CreateTokenRequest{Username: "erin", ExpiredDays: 30, TransactionsLimit: 100}
	api.On("CreateToken", mock.Anything, req, true).Return(&models.Token{ID: "e"}, nil).Once()
	api.On("GetTokens", mock.Anything).Return([]models.Token{}, nil).Once()

	_, err := NewBoard(api).Create(context.Background(), req)
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestExtendReplacesCachedToken(t *testing.T) {
	b, api := loadedBoard(t)
	updated := &models.Token{ID: "mid", Username: "carol", IsActive: true, ExpiredAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}
	api.On("UpdateToken", mock.Anything, "mid", models.UpdateTokenRequest{ExpiredDays: 30}).Return(updated, nil).Once()

	got, err := b.Extend(context.Background(), "mid", 30, nil)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
	assert.Empty(t, b.Revoked())

	_, err = b.Extend(context.Background(), "mid", 0, nil)
	assert.True(t, utils.IsCode(err, utils.ErrCodeValidation))

	negative := -1
	_, err = b.Extend(context.Background(), "mid", 5, &negative)
	assert.True(t, utils.IsCode(err, utils.ErrCodeValidation))
}

func TestExtendSendsZeroLimit(t *testing.T) {
	b, api := loadedBoard(t)
	zero := 0
	updated := &models.Token{ID: "mid", Username: "carol", IsActive: true, ExpiredAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}
	api.On("UpdateToken", mock.Anything, "mid", models.UpdateTokenRequest{ExpiredDays: 7, TransactionsLimit: &zero}).Return(updated, nil).Once()

	_, err := b.Extend(context.Background(), "mid", 7, &zero)
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestExtendRefetchesWithoutResponseBody(t *testing.T) {
	b, api := loadedBoard(t)
	limit := 50
	api.On("UpdateToken", mock.Anything, "old", models.UpdateTokenRequest{ExpiredDays: 10, TransactionsLimit: &limit}).Return(nil, nil).Once()
	api.On("GetTokens", mock.Anything).Return(sampleTokens()[:1], nil).Once()

	_, err := b.Extend(context.Background(), "old", 10, &limit)
	require.NoError(t, err)
	assert.Len(t, b.Tokens(), 1)
	api.AssertExpectations(t)
}

func TestCheck(t *testing.T) {
	api := new(mockAPI)
	b := NewBoard(api)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	found := &models.Token{Username: "alice", IsActive: true, TransactionsLimit: 5, ExpiredAt: now.Add(36 * time.Hour)}
	api.On("CheckToken", mock.Anything, "abc").Return(found, "Token ditemukan", nil).Once()
	api.On("CheckToken", mock.Anything, "partial").Return(&models.Token{}, "", nil).Once()

	res, err := b.Check(context.Background(), " abc ")
	require.NoError(t, err)
	assert.Equal(t, models.TokenStatusActive, res.Status)
	assert.Equal(t, 2, res.DaysRemaining)
	assert.Equal(t, "Token ditemukan", res.Message)

	res, err = b.Check(context.Background(), "partial")
	require.NoError(t, err)
	assert.Nil(t, res.Token)
	assert.NotEmpty(t, res.Message)

	_, err = b.Check(context.Background(), "")
	assert.True(t, utils.IsCode(err, utils.ErrCodeValidation))
}

func TestInfoBoard(t *testing.T) {
	api := new(mockAPI)
	ib := NewInfoBoard(api)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	infos := []models.Information{
		{ID: "a", Information: "first", CreatedAt: base},
		{ID: "b", Information: "second", CreatedAt: base.Add(day)},
	}
	api.On("GetInformation", mock.Anything, false).Return(infos, nil)
	api.On("CreateInformation", mock.Anything, "third").Return(nil).Once()
	api.On("UpdateInformation", mock.Anything, "a", "edited").Return(nil).Once()
	api.On("DeleteInformation", mock.Anything, "b").Return(nil).Once()

	list, err := ib.List(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "b", list[0].ID)

	_, err = ib.Create(ctx, "  third ")
	require.NoError(t, err)
	_, err = ib.Update(ctx, "a", "edited")
	require.NoError(t, err)
	_, err = ib.Delete(ctx, "b")
	require.NoError(t, err)

	_, err = ib.Create(ctx, "   ")
	assert.True(t, utils.IsCode(err, utils.ErrCodeValidation))
	api.AssertExpectations(t)
}
