package query

import (
	"context"
	"testing"

	"savings-intents-go/internal/models"
	"savings-intents-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStore implements the read side of store.IntentStore
type MockStore struct {
	store.IntentStore
	mock.Mock
}

func (m *MockStore) GetIntentById(ctx context.Context, intentId string) (*models.IntentWithOwner, error) {
	args := m.Called(ctx, intentId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IntentWithOwner), args.Error(1)
}

func (m *MockStore) GetIntentByReference(ctx context.Context, reference string) (*models.IntentWithOwner, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IntentWithOwner), args.Error(1)
}

func (m *MockStore) ListIntents(ctx context.Context, filter store.IntentFilter) ([]models.IntentWithOwner, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]models.IntentWithOwner), args.Int(1), args.Error(2)
}

func (m *MockStore) CountIntentsByStatus(ctx context.Context, filter store.IntentFilter) (map[models.IntentStatus]int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(map[models.IntentStatus]int), args.Error(1)
}

var (
	owner    = models.Principal{UserId: "user-1", Role: models.RoleUser}
	stranger = models.Principal{UserId: "user-2", Role: models.RoleUser}
	admin    = models.Principal{UserId: "admin-1", Role: models.RoleAdmin}
)

func sampleIntent() *models.IntentWithOwner {
	return &models.IntentWithOwner{
		Intent: models.Intent{
			Id:              "intent-1",
			ReferenceNumber: "DEP-20250101120000-ABCDEF12",
			UserId:          "user-1",
			Type:            models.IntentDeposit,
			Amount:          decimal.NewFromInt(50000),
			Status:          models.StatusCompleted,
			AdminNotes:      "checked",
		},
		AccountNumber: "ACC-1",
		OwnerName:     "Awa Sow",
	}
}

func TestGetById_Ownership(t *testing.T) {
	ctx := context.Background()
	m := &MockStore{}
	m.On("GetIntentById", ctx, "intent-1").Return(sampleIntent(), nil)
	svc := NewService(m)

	in, err := svc.GetById(ctx, owner, "intent-1")
	require.NoError(t, err)
	assert.Equal(t, "ACC-1", in.AccountNumber)

	_, err = svc.GetById(ctx, admin, "intent-1")
	require.NoError(t, err)

	in, err = svc.GetById(ctx, stranger, "intent-1")
	assert.ErrorIs(t, err, store.ErrForbidden)
	assert.Nil(t, in)
}

func TestGetByReference_NotFound(t *testing.T) {
	ctx := context.Background()
	m := &MockStore{}
	m.On("GetIntentByReference", ctx, "DEP-NONE").Return(nil, store.ErrNotFound)

	_, err := NewService(m).GetByReference(ctx, admin, "DEP-NONE")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestList_ScopesNonAdminToOwnIntents(t *testing.T) {
	ctx := context.Background()
	m := &MockStore{}
	m.On("ListIntents", ctx, store.IntentFilter{UserId: "user-1", Status: models.StatusCompleted, Limit: 10, Offset: 10}).
		Return([]models.IntentWithOwner{*sampleIntent()}, 11, nil)
	m.On("CountIntentsByStatus", ctx, store.IntentFilter{UserId: "user-1", Limit: 10, Offset: 10}).
		Return(map[models.IntentStatus]int{
			models.StatusPending:    2,
			models.StatusProcessing: 1,
			models.StatusCompleted:  11,
			models.StatusCancelled:  3,
		}, nil)

	response, err := NewService(m).List(ctx, owner, ListParams{Status: "completed", Page: 2, Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, models.Pagination{Page: 2, Limit: 10, Total: 11, TotalPages: 2}, response.Pagination)
	assert.Equal(t, models.StatusCounts{Pending: 2, Initiated: 1, Succeeded: 11, Cancelled: 3}, response.Counts)
	require.Len(t, response.Items, 1)
	assert.Empty(t, response.Items[0].AdminNotes, "admin notes are hidden from owners")
	m.AssertExpectations(t)
}

func TestList_AdminSeesEveryone(t *testing.T) {
	ctx := context.Background()
	m := &MockStore{}
	m.On("ListIntents", ctx, store.IntentFilter{Limit: maxLimit}).Return([]models.IntentWithOwner{*sampleIntent()}, 1, nil)
	m.On("CountIntentsByStatus", ctx, store.IntentFilter{Limit: maxLimit}).Return(map[models.IntentStatus]int{}, nil)

	response, err := NewService(m).List(ctx, admin, ListParams{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 1, response.Pagination.Page)
	assert.Equal(t, maxLimit, response.Pagination.Limit)
	assert.Equal(t, "checked", response.Items[0].AdminNotes)
	assert.NotNil(t, response.Items[0].Metadata)
}

func TestList_Rejections(t *testing.T) {
	svc := NewService(&MockStore{})

	_, err := svc.List(context.Background(), owner, ListParams{UserId: "user-2"})
	assert.ErrorIs(t, err, store.ErrForbidden)

	_, err = svc.List(context.Background(), owner, ListParams{Status: "SETTLED"})
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = svc.List(context.Background(), models.Principal{}, ListParams{})
	assert.ErrorIs(t, err, store.ErrForbidden)
}

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		page, limit         int
		wantPage, wantLimit int
	}{
		{0, 0, 1, defaultLimit},
		{-3, -1, 1, defaultLimit},
		{4, 50, 4, 50},
		{1, maxLimit, 1, maxLimit},
		{1, maxLimit + 1, 1, maxLimit},
		{2, 150, 2, maxLimit},
	}
	for _, tt := range tests {
		page, limit := normalizePage(tt.page, tt.limit)
		assert.Equal(t, tt.wantPage, page)
		assert.Equal(t, tt.wantLimit, limit)
	}
}
