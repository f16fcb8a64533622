// Package quota enforces the per-plan cap on how many completed
// responses a free account can read. Counts come from the signal store
// over a rolling window and are cached briefly in redis, since the
// dashboard polls this on every list.
package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/signalhq/signal/internal/accounts"
	"github.com/signalhq/signal/pkg/logging"
)

// Unlimited is the VisibleLimit value for plans without a cap.
const Unlimited = -1

const rollingWindow = 30 * 24 * time.Hour

// PlanSource resolves an account's billing plan.
type PlanSource interface {
	Plan(ctx context.Context, accountID string) (string, error)
}

// ResponseCounter counts completed responses for an account since a
// given instant.
type ResponseCounter interface {
	CountCompletedResponses(ctx context.Context, accountID string, since time.Time) (int, error)
}

// Allowance is one account's quota snapshot.
type Allowance struct {
	Plan  string `json:"plan"`
	Limit int    `json:"limit"` // Unlimited for premium
	Used  int    `json:"used"`  // completed responses in the rolling window
}

// Exceeded reports whether the account is at or over its cap.
func (a Allowance) Exceeded() bool {
	return a.Limit != Unlimited && a.Used >= a.Limit
}

// Gate answers quota questions. redis is optional; without it every
// call hits the plan source and counter directly.
type Gate struct {
	plans     PlanSource
	counts    ResponseCounter
	cache     *redis.Client
	freeLimit int
	cacheTTL  time.Duration
	logger    *logging.Logger
	now       func() time.Time
}

func NewGate(plans PlanSource, counts ResponseCounter, cache *redis.Client, freeLimit int, cacheTTL time.Duration, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.Default()
	}
	if freeLimit <= 0 {
		freeLimit = 3
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &Gate{
		plans:     plans,
		counts:    counts,
		cache:     cache,
		freeLimit: freeLimit,
		cacheTTL:  cacheTTL,
		logger:    logger,
		now:       time.Now,
	}
}

// VisibleLimit returns how many completed responses the account may
// read: Unlimited for premium, the free cap otherwise.
func (g *Gate) VisibleLimit(ctx context.Context, accountID string) (int, error) {
	plan, err := g.plan(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if plan == accounts.PlanPremium {
		return Unlimited, nil
	}
	return g.freeLimit, nil
}

// Allowance returns the full quota snapshot for the account, including
// the cached rolling-window usage count.
func (g *Gate) Allowance(ctx context.Context, accountID string) (Allowance, error) {
	limit, err := g.VisibleLimit(ctx, accountID)
	if err != nil {
		return Allowance{}, err
	}
	plan := accounts.PlanFree
	if limit == Unlimited {
		plan = accounts.PlanPremium
	}

	used, err := g.used(ctx, accountID)
	if err != nil {
		return Allowance{}, err
	}
	return Allowance{Plan: plan, Limit: limit, Used: used}, nil
}

func (g *Gate) plan(ctx context.Context, accountID string) (string, error) {
	key := "quota:plan:" + accountID
	if g.cache != nil {
		if v, err := g.cache.Get(ctx, key).Result(); err == nil && v != "" {
			return v, nil
		}
	}

	plan, err := g.plans.Plan(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("quota: plan lookup: %w", err)
	}
	if g.cache != nil {
		if err := g.cache.Set(ctx, key, plan, g.cacheTTL).Err(); err != nil {
			g.logger.Warn("quota plan cache write failed", "error", err)
		}
	}
	return plan, nil
}

func (g *Gate) used(ctx context.Context, accountID string) (int, error) {
	key := "quota:used:" + accountID
	if g.cache != nil {
		if v, err := g.cache.Get(ctx, key).Result(); err == nil {
			if n, convErr := strconv.Atoi(v); convErr == nil {
				return n, nil
			}
		}
	}

	since := g.now().Add(-rollingWindow)
	n, err := g.counts.CountCompletedResponses(ctx, accountID, since)
	if err != nil {
		return 0, fmt.Errorf("quota: response count: %w", err)
	}
	if g.cache != nil {
		if err := g.cache.Set(ctx, key, strconv.Itoa(n), g.cacheTTL).Err(); err != nil {
			g.logger.Warn("quota count cache write failed", "error", err)
		}
	}
	return n, nil
}

// Invalidate drops cached quota state for an account, called after a
// plan change so the new allowance shows immediately.
func (g *Gate) Invalidate(ctx context.Context, accountID string) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Del(ctx, "quota:plan:"+accountID, "quota:used:"+accountID).Err(); err != nil {
		g.logger.Warn("quota cache invalidation failed", "account_id", accountID, "error", err)
	}
}
