// Package dashboard builds the composite dashboard response from several
// tables. Sections are fetched concurrently and the result is cached per
// period, range, role and limit until a mutation invalidates it.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"accounting/internal/cache"
	"accounting/internal/core"
	"accounting/internal/log"
	"accounting/internal/storage"
)

const (
	DefaultCacheTTL     = 5 * time.Minute
	DefaultCacheSize    = 100
	DefaultRecentLimit  = 10
	defaultTrendMonths  = 6
	freshnessLive       = "live"
	freshnessCached     = "cached"
	budgetWarnThreshold = 0.8
)

type Config struct {
	CacheTTL     time.Duration
	CacheSize    int
	LowCashFloor decimal.Decimal
	Now          func() time.Time
	Logger       *log.Logger
}

// Request selects the summary to build.
type Request struct {
	Period    string
	StartDate string
	EndDate   string
	Role      core.Role
	Limit     int
}

func (r Request) key(w Window, limit int) string {
	return fmt.Sprintf("%s|%s|%s|%s|%d", r.Period, w.Start, w.End, r.Role, limit)
}

type Aggregator struct {
	store  storage.Store
	cache  *cache.LRUCache[Summary]
	floor  decimal.Decimal
	now    func() time.Time
	logger *log.Logger
}

func New(store storage.Store, cfg Config) *Aggregator {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	return &Aggregator{
		store:  store,
		cache:  cache.NewLRUCache[Summary](cfg.CacheSize, cfg.CacheTTL).WithClock(cfg.Now),
		floor:  cfg.LowCashFloor,
		now:    cfg.Now,
		logger: cfg.Logger.WithComponent(log.ComponentDashboard),
	}
}

// Cache exposes the summary cache so a cache.Manager can sweep it.
func (a *Aggregator) Cache() *cache.LRUCache[Summary] { return a.cache }

// Invalidate drops every cached summary. It is registered as a change hook
// on the services.
func (a *Aggregator) Invalidate(ctx context.Context, resource core.Resource) {
	n := a.cache.Size()
	a.cache.Purge()
	if n > 0 {
		a.logger.DebugContext(ctx, "Dashboard cache invalidated", "resource", resource.String(), "entries", n)
	}
}

// Summary returns the dashboard for req. Any failing section fails the whole
// summary.
func (a *Aggregator) Summary(ctx context.Context, req Request) (Summary, error) {
	now := a.now()
	w, err := ResolvePeriod(req.Period, req.StartDate, req.EndDate, now)
	if err != nil {
		return Summary{}, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	key := req.key(w, limit)
	if s, ok := a.cache.Get(key); ok {
		s.Metadata.DataFreshness = freshnessCached
		return s, nil
	}

	s := Summary{Timestamp: now, Period: w.info()}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { s.KPIs, err = a.kpis(gctx, w); return })
	g.Go(func() (err error) { s.MonthlyTrend, err = a.monthlyTrend(gctx, now); return })
	g.Go(func() (err error) { s.ExpensesByCategory, err = a.expensesByCategory(gctx, w); return })
	g.Go(func() (err error) { s.RecentTransactions, err = a.recentTransactions(gctx, limit); return })
	g.Go(func() (err error) { s.Alerts, err = a.alerts(gctx, now); return })
	g.Go(func() (err error) { s.Cards, err = a.cards(gctx); return })
	g.Go(func() (err error) { s.BudgetStatus, err = a.budgetStatus(gctx, w); return })
	if err := g.Wait(); err != nil {
		a.logger.ErrorContext(ctx, "Dashboard aggregation failed",
			log.NewFields().WithError(err).WithOperation(log.OpRead).ToSlice()...)
		return Summary{}, core.Store("dashboard summary", err)
	}

	ttl := a.cache.TTL()
	s.Metadata = Metadata{
		DataFreshness:        freshnessLive,
		CachedAt:             now,
		CacheUntil:           now.Add(ttl),
		CacheDurationSeconds: int(ttl.Seconds()),
		Permissions: Permissions{
			CanEdit:   req.Role == core.RoleAdmin,
			CanExport: true,
			CanDelete: req.Role == core.RoleAdmin,
		},
		UserRole: req.Role,
	}
	a.cache.Set(key, s)
	return s, nil
}

func (a *Aggregator) KPIs(ctx context.Context, req Request) (KPIs, error) {
	s, err := a.Summary(ctx, req)
	return s.KPIs, err
}

func (a *Aggregator) ExpensesByCategory(ctx context.Context, req Request) ([]CategoryPoint, error) {
	s, err := a.Summary(ctx, req)
	return s.ExpensesByCategory, err
}

func (a *Aggregator) BudgetStatus(ctx context.Context, req Request) (BudgetStatus, error) {
	s, err := a.Summary(ctx, req)
	return s.BudgetStatus, err
}

func (a *Aggregator) MonthlyTrend(ctx context.Context, req Request) ([]TrendPoint, error) {
	s, err := a.Summary(ctx, req)
	return s.MonthlyTrend, err
}
