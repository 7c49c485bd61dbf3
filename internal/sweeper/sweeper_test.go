package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"savings-intents-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLister struct {
	mock.Mock
}

func (m *MockLister) ListPendingIntentsBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Intent, error) {
	args := m.Called(ctx, cutoff, limit)
	return args.Get(0).([]models.Intent), args.Error(1)
}

type MockExpirer struct {
	mock.Mock
}

func (m *MockExpirer) ExpireStale(ctx context.Context, intentId string, window time.Duration) (bool, error) {
	args := m.Called(ctx, intentId, window)
	return args.Bool(0), args.Error(1)
}

func newTestSweeper(lister *MockLister, expirer *MockExpirer, now time.Time) *Sweeper {
	s := New(Config{Store: lister, Intents: expirer, Window: time.Hour, Interval: time.Minute, BatchSize: 10})
	s.now = func() time.Time { return now }
	return s
}

func TestSweepOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	lister := &MockLister{}
	lister.On("ListPendingIntentsBefore", ctx, now.Add(-time.Hour), 10).Return([]models.Intent{
		{Id: "a", ReferenceNumber: "DEP-A"},
		{Id: "b", ReferenceNumber: "DEP-B"},
		{Id: "c", ReferenceNumber: "DEP-C"},
	}, nil)

	expirer := &MockExpirer{}
	expirer.On("ExpireStale", ctx, "a", time.Hour).Return(true, nil)
	expirer.On("ExpireStale", ctx, "b", time.Hour).Return(false, nil)
	expirer.On("ExpireStale", ctx, "c", time.Hour).Return(false, errors.New("store unavailable"))

	expired, err := newTestSweeper(lister, expirer, now).SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	expirer.AssertNumberOfCalls(t, "ExpireStale", 3)
}

func TestSweepOnce_ListFailure(t *testing.T) {
	ctx := context.Background()
	lister := &MockLister{}
	lister.On("ListPendingIntentsBefore", ctx, mock.Anything, 10).Return([]models.Intent(nil), errors.New("locked"))

	_, err := newTestSweeper(lister, &MockExpirer{}, time.Now()).SweepOnce(ctx)
	assert.Error(t, err)
}

func TestSweepOnce_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lister := &MockLister{}
	lister.On("ListPendingIntentsBefore", ctx, mock.Anything, 10).Return([]models.Intent{{Id: "a"}}, nil)
	expirer := &MockExpirer{}

	expired, err := newTestSweeper(lister, expirer, time.Now()).SweepOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, expired)
	expirer.AssertNotCalled(t, "ExpireStale", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartStop(t *testing.T) {
	swept := make(chan struct{}, 1)
	lister := &MockLister{}
	lister.On("ListPendingIntentsBefore", mock.Anything, mock.Anything, 10).
		Return([]models.Intent{}, nil).
		Run(func(mock.Arguments) {
			select {
			case swept <- struct{}{}:
			default:
			}
		})

	s := New(Config{Store: lister, Intents: &MockExpirer{}, Window: time.Hour, Interval: 5 * time.Millisecond, BatchSize: 10})
	s.Start(context.Background())

	select {
	case <-swept:
	case <-time.After(time.Second):
		t.Fatal("sweeper never ran")
	}
	s.Stop()
	s.Stop()
}

func TestStart_Disabled(t *testing.T) {
	s := New(Config{Store: &MockLister{}, Intents: &MockExpirer{}})
	s.Start(context.Background())
	s.Stop()
}
