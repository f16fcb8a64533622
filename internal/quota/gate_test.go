package quota

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalhq/signal/internal/accounts"
	"github.com/signalhq/signal/pkg/logging"
)

type fakePlans struct {
	plan  string
	calls int
}

func (f *fakePlans) Plan(context.Context, string) (string, error) {
	f.calls++
	return f.plan, nil
}

type fakeCounter struct {
	count     int
	calls     int
	lastSince time.Time
}

func (f *fakeCounter) CountCompletedResponses(_ context.Context, _ string, since time.Time) (int, error) {
	f.calls++
	f.lastSince = since
	return f.count, nil
}

func testGate(t *testing.T, plans *fakePlans, counts *fakeCounter) (*Gate, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	gate := NewGate(plans, counts, client, 3, time.Minute, logging.New("error", "test"))
	gate.now = func() time.Time { return time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC) }
	return gate, mr
}

func TestVisibleLimitFreePlan(t *testing.T) {
	gate, _ := testGate(t, &fakePlans{plan: accounts.PlanFree}, &fakeCounter{})

	limit, err := gate.VisibleLimit(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 3, limit)
}

func TestVisibleLimitPremiumIsUnlimited(t *testing.T) {
	gate, _ := testGate(t, &fakePlans{plan: accounts.PlanPremium}, &fakeCounter{})

	limit, err := gate.VisibleLimit(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, Unlimited, limit)
}

func TestPlanIsCached(t *testing.T) {
	plans := &fakePlans{plan: accounts.PlanFree}
	gate, _ := testGate(t, plans, &fakeCounter{})

	for i := 0; i < 5; i++ {
		_, err := gate.VisibleLimit(context.Background(), "acct-1")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, plans.calls, "plan should come from cache after the first lookup")
}

func TestPlanCacheExpires(t *testing.T) {
	plans := &fakePlans{plan: accounts.PlanFree}
	gate, mr := testGate(t, plans, &fakeCounter{})

	_, err := gate.VisibleLimit(context.Background(), "acct-1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = gate.VisibleLimit(context.Background(), "acct-1")
	require.NoError(t, err)

	assert.Equal(t, 2, plans.calls)
}

func TestAllowanceUsesRollingWindow(t *testing.T) {
	counts := &fakeCounter{count: 2}
	gate, _ := testGate(t, &fakePlans{plan: accounts.PlanFree}, counts)

	a, err := gate.Allowance(context.Background(), "acct-1")
	require.NoError(t, err)

	assert.Equal(t, Allowance{Plan: accounts.PlanFree, Limit: 3, Used: 2}, a)
	assert.Equal(t, time.Date(2026, 7, 11, 12, 0, 0, 0, time.UTC), counts.lastSince)
}

func TestAllowanceCountIsCached(t *testing.T) {
	counts := &fakeCounter{count: 1}
	gate, _ := testGate(t, &fakePlans{plan: accounts.PlanFree}, counts)

	for i := 0; i < 3; i++ {
		_, err := gate.Allowance(context.Background(), "acct-1")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, counts.calls)
}

func TestAllowanceExceeded(t *testing.T) {
	assert.False(t, Allowance{Limit: 3, Used: 2}.Exceeded())
	assert.True(t, Allowance{Limit: 3, Used: 3}.Exceeded())
	assert.False(t, Allowance{Limit: Unlimited, Used: 1000}.Exceeded())
}

func TestInvalidateDropsCache(t *testing.T) {
	plans := &fakePlans{plan: accounts.PlanFree}
	counts := &fakeCounter{count: 1}
	gate, _ := testGate(t, plans, counts)

	_, err := gate.Allowance(context.Background(), "acct-1")
	require.NoError(t, err)

	gate.Invalidate(context.Background(), "acct-1")

	_, err = gate.Allowance(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 2, plans.calls)
	assert.Equal(t, 2, counts.calls)
}

func TestGateWithoutRedis(t *testing.T) {
	plans := &fakePlans{plan: accounts.PlanPremium}
	gate := NewGate(plans, &fakeCounter{}, nil, 3, time.Minute, logging.New("error", "test"))

	limit, err := gate.VisibleLimit(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, Unlimited, limit)
}
