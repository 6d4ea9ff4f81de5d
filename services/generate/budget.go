package generate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stacksos/aicore/pkg/cache"
)

// Gate decides whether a call is admitted under the tenant's usage
// ceilings, and accrues spend after successful calls. Implementations
// own the atomicity of their counters under concurrent callers.
type Gate interface {
	// Enforce returns a *BudgetExceededError when a ceiling is
	// exhausted, nil when the call is admitted.
	Enforce(ctx context.Context, cfg RuntimeConfig, callType string) error

	// RecordSpend accrues cost against the tenant's daily budget.
	RecordSpend(ctx context.Context, cfg RuntimeConfig, costUSD float64) error
}

// RedisGate enforces budgets with Redis counters: a fixed one-hour
// window for call counts and a per-day accumulator for spend, both
// keyed by tenant.
type RedisGate struct {
	client *cache.Client
}

// NewRedisGate creates a gate backed by the given Redis client.
func NewRedisGate(client *cache.Client) *RedisGate {
	return &RedisGate{client: client}
}

func callsKey(tenant string, now time.Time) string {
	return fmt.Sprintf("budget:calls:%s:%s", tenant, now.UTC().Format("2006010215"))
}

func spendKey(tenant string, now time.Time) string {
	return fmt.Sprintf("budget:usd:%s:%s", tenant, now.UTC().Format("20060102"))
}

// Enforce checks the hourly call ceiling and the daily spend ceiling,
// in that order. The call counter is incremented as part of the check,
// so a refused call still consumed one slot; that bias is deliberate,
// it keeps the counter atomic without a Lua script.
func (g *RedisGate) Enforce(ctx context.Context, cfg RuntimeConfig, callType string) error {
	now := time.Now()

	if limit := cfg.Budgets.MaxCallsPerHour; limit > 0 {
		key := callsKey(cfg.Tenant, now)
		count, err := g.client.Incr(ctx, key)
		if err != nil {
			return fmt.Errorf("budget counter unavailable: %w", err)
		}
		if count == 1 {
			// First call this window; expire after two hours so
			// stale windows clean themselves up.
			_ = g.client.Expire(ctx, key, 2*time.Hour)
		}
		if count > int64(limit) {
			return &BudgetExceededError{
				Tenant:  cfg.Tenant,
				Ceiling: "calls_per_hour",
				Limit:   float64(limit),
				Used:    float64(count),
			}
		}
	}

	if limit := cfg.Budgets.MaxUSDPerDay; limit > 0 {
		spent, err := g.client.GetFloat(ctx, spendKey(cfg.Tenant, now))
		if err != nil {
			return fmt.Errorf("budget counter unavailable: %w", err)
		}
		if spent >= limit {
			return &BudgetExceededError{
				Tenant:  cfg.Tenant,
				Ceiling: "usd_per_day",
				Limit:   limit,
				Used:    spent,
			}
		}
	}

	return nil
}

// RecordSpend accrues cost against the daily accumulator. The key
// expires after 48 hours.
func (g *RedisGate) RecordSpend(ctx context.Context, cfg RuntimeConfig, costUSD float64) error {
	if costUSD <= 0 {
		return nil
	}
	key := spendKey(cfg.Tenant, time.Now())
	total, err := g.client.IncrByFloat(ctx, key, costUSD)
	if err != nil {
		return fmt.Errorf("failed to record spend: %w", err)
	}
	if total == costUSD {
		_ = g.client.Expire(ctx, key, 48*time.Hour)
	}
	return nil
}

// MemoryGate mirrors RedisGate semantics in-process. Used by tests and
// the one-shot CLI, where counters do not need to outlive the process.
type MemoryGate struct {
	mu    sync.Mutex
	calls map[string]int64
	spend map[string]float64
	now   func() time.Time
}

// NewMemoryGate creates an in-memory gate.
func NewMemoryGate() *MemoryGate {
	return &MemoryGate{
		calls: make(map[string]int64),
		spend: make(map[string]float64),
		now:   time.Now,
	}
}

func (g *MemoryGate) Enforce(ctx context.Context, cfg RuntimeConfig, callType string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()

	if limit := cfg.Budgets.MaxCallsPerHour; limit > 0 {
		key := callsKey(cfg.Tenant, now)
		g.calls[key]++
		if g.calls[key] > int64(limit) {
			return &BudgetExceededError{
				Tenant:  cfg.Tenant,
				Ceiling: "calls_per_hour",
				Limit:   float64(limit),
				Used:    float64(g.calls[key]),
			}
		}
	}

	if limit := cfg.Budgets.MaxUSDPerDay; limit > 0 {
		spent := g.spend[spendKey(cfg.Tenant, now)]
		if spent >= limit {
			return &BudgetExceededError{
				Tenant:  cfg.Tenant,
				Ceiling: "usd_per_day",
				Limit:   limit,
				Used:    spent,
			}
		}
	}

	return nil
}

func (g *MemoryGate) RecordSpend(ctx context.Context, cfg RuntimeConfig, costUSD float64) error {
	if costUSD <= 0 {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.spend[spendKey(cfg.Tenant, g.now())] += costUSD
	return nil
}

// NopGate admits everything. Useful when budgets are enforced
// elsewhere.
type NopGate struct{}

func (NopGate) Enforce(ctx context.Context, cfg RuntimeConfig, callType string) error { return nil }

func (NopGate) RecordSpend(ctx context.Context, cfg RuntimeConfig, costUSD float64) error {
	return nil
}
