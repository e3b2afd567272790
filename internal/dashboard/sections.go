package dashboard

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"accounting/internal/core"
	"accounting/internal/storage"
)

var hundred = decimal.NewFromInt(100)

func (a *Aggregator) sum(ctx context.Context, table, column string, filters ...storage.Filter) (decimal.Decimal, error) {
	rows, err := a.store.Select(ctx, table, storage.Query{Columns: []string{column}, Filters: filters})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Decimal(column))
	}
	return total, nil
}

func (a *Aggregator) cashOnHand(ctx context.Context) (decimal.Decimal, error) {
	rows, err := a.store.Select(ctx, core.ResourceCashBalance.Table(), storage.Query{
		Columns: []string{"amount"},
		Order:   []storage.Order{storage.Desc("recorded_at")},
		Limit:   1,
	})
	if err != nil || len(rows) == 0 {
		return decimal.Zero, err
	}
	return rows[0].Decimal("amount"), nil
}

func (a *Aggregator) activeBudgets(ctx context.Context, filters ...storage.Filter) ([]core.Budget, error) {
	rows, err := a.store.Select(ctx, core.ResourceBudgets.Table(), storage.Query{
		Filters: append([]storage.Filter{storage.Eq("is_active", true)}, filters...),
	})
	if err != nil {
		return nil, err
	}
	out := make([]core.Budget, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.Budget{
			ID:           r.String("id"),
			CategoryID:   r.String("category_id"),
			CategoryName: r.String("category_name"),
			BudgetLimit:  r.Decimal("budget_limit"),
			Spent:        r.Decimal("spent"),
			Month:        r.Date("month"),
			IsActive:     true,
		})
	}
	return out, nil
}

func cashInRange(start, end string, txType string) []storage.Filter {
	f := []storage.Filter{
		storage.Gte("transaction_date", start),
		storage.Lte("transaction_date", end),
	}
	if txType != "" {
		f = append(f, storage.Eq("transaction_type", txType))
	}
	return f
}

func (a *Aggregator) kpis(ctx context.Context, w Window) (KPIs, error) {
	var k KPIs
	var err error
	cash := core.ResourceCashTransactions.Table()

	if k.TotalExpenses, err = a.sum(ctx, cash, "amount", cashInRange(w.Start, w.End, core.TransactionExpense)...); err != nil {
		return k, err
	}
	if k.TotalIncome, err = a.sum(ctx, cash, "amount", cashInRange(w.Start, w.End, core.TransactionIncome)...); err != nil {
		return k, err
	}
	k.AvailableBalance = k.TotalIncome.Sub(k.TotalExpenses)

	if k.CardsInUse, err = a.store.Count(ctx, core.ResourceCards.Table(), storage.Eq("is_active", true)); err != nil {
		return k, err
	}
	if k.CardBalances, err = a.sum(ctx, core.ResourceCards.Table(), "card_limit"); err != nil {
		return k, err
	}
	if k.PendingBills, err = a.store.Count(ctx, core.ResourceBills.Table(), storage.Eq("status", core.BillPending)); err != nil {
		return k, err
	}
	if k.CashOnHand, err = a.cashOnHand(ctx); err != nil {
		return k, err
	}
	if k.ActiveEmployees, err = a.store.Count(ctx, core.ResourceEmployees.Table(), storage.Eq("is_active", true)); err != nil {
		return k, err
	}
	if k.TotalPayroll, err = a.sum(ctx, core.ResourceSalaries.Table(), "net_salary",
		storage.Eq("status", core.SalaryPaid),
		storage.Gte("paid_date", w.Start),
		storage.Lte("paid_date", w.End),
	); err != nil {
		return k, err
	}

	budgets, err := a.activeBudgets(ctx)
	if err != nil {
		return k, err
	}
	k.BudgetUtilization = budgetUtilization(budgets)
	return k, nil
}

// budgetUtilization sums spent/limit over budgets with a positive limit and
// divides by the count of all given budgets, as a percentage with 2 decimals.
func budgetUtilization(budgets []core.Budget) float64 {
	if len(budgets) == 0 {
		return 0
	}
	ratio := decimal.Zero
	for _, b := range budgets {
		if b.BudgetLimit.IsPositive() {
			ratio = ratio.Add(b.Spent.Div(b.BudgetLimit))
		}
	}
	return core.Float(ratio.Div(decimal.NewFromInt(int64(len(budgets)))).Mul(hundred).Round(2))
}

// monthlyTrend always covers the six months ending with the current one,
// whatever period was requested.
func (a *Aggregator) monthlyTrend(ctx context.Context, now time.Time) ([]TrendPoint, error) {
	months := trendMonths(now, defaultTrendMonths)
	from, to := months[0][0], months[len(months)-1][1]

	rows, err := a.store.Select(ctx, core.ResourceCashTransactions.Table(), storage.Query{
		Columns: []string{"amount", "transaction_type", "transaction_date"},
		Filters: cashInRange(from, to, ""),
	})
	if err != nil {
		return nil, err
	}
	budgets, err := a.activeBudgets(ctx, storage.Gte("month", from), storage.Lte("month", to))
	if err != nil {
		return nil, err
	}

	points := make([]TrendPoint, len(months))
	idx := make(map[string]int, len(months))
	for i, m := range months {
		key := m[0][:7]
		points[i] = TrendPoint{Month: key, Expenses: decimal.Zero, Income: decimal.Zero, Budget: decimal.Zero}
		idx[key] = i
	}
	for _, r := range rows {
		d := r.Date("transaction_date")
		if len(d) < 7 {
			continue
		}
		i, ok := idx[d[:7]]
		if !ok {
			continue
		}
		if r.String("transaction_type") == core.TransactionIncome {
			points[i].Income = points[i].Income.Add(r.Decimal("amount"))
		} else {
			points[i].Expenses = points[i].Expenses.Add(r.Decimal("amount"))
		}
	}
	for _, b := range budgets {
		if len(b.Month) < 7 {
			continue
		}
		if i, ok := idx[b.Month[:7]]; ok {
			points[i].Budget = points[i].Budget.Add(b.BudgetLimit)
		}
	}
	return points, nil
}

func (a *Aggregator) expensesByCategory(ctx context.Context, w Window) ([]CategoryPoint, error) {
	rows, err := a.store.Select(ctx, core.ResourceCashTransactions.Table(), storage.Query{
		Columns: []string{"amount", "category"},
		Filters: cashInRange(w.Start, w.End, core.TransactionExpense),
	})
	if err != nil {
		return nil, err
	}
	return categoryBreakdown(rows), nil
}

func categoryBreakdown(rows []storage.Row) []CategoryPoint {
	out := []CategoryPoint{}
	if len(rows) == 0 {
		return out
	}
	byCat := map[string]decimal.Decimal{}
	var order []string
	total := decimal.Zero
	for _, r := range rows {
		cat := r.String("category")
		if cat == "" {
			cat = "Uncategorized"
		}
		if _, ok := byCat[cat]; !ok {
			order = append(order, cat)
			byCat[cat] = decimal.Zero
		}
		amt := r.Decimal("amount")
		byCat[cat] = byCat[cat].Add(amt)
		total = total.Add(amt)
	}
	for _, cat := range order {
		p := CategoryPoint{Category: cat, Amount: byCat[cat], Trend: "stable"}
		if total.IsPositive() {
			p.Percentage = math.Round(core.Float(byCat[cat].Div(total))*1000) / 10
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount.GreaterThan(out[j].Amount) })
	return out
}

// recentTransactions takes up to half the limit from bills and half from
// cash, resolves creator names, and merges them newest first.
func (a *Aggregator) recentTransactions(ctx context.Context, limit int) ([]RecentTransaction, error) {
	half := limit / 2
	if half < 1 {
		half = 1
	}

	billRows, err := a.store.Select(ctx, core.ResourceBills.Table(), storage.Query{
		Order: []storage.Order{storage.Desc("bill_date"), storage.Desc("created_at")},
		Limit: half,
	})
	if err != nil {
		return nil, err
	}
	cashRows, err := a.store.Select(ctx, core.ResourceCashTransactions.Table(), storage.Query{
		Order: []storage.Order{storage.Desc("transaction_date"), storage.Desc("created_at")},
		Limit: half,
	})
	if err != nil {
		return nil, err
	}

	items := make([]RecentTransaction, 0, len(billRows)+len(cashRows))
	for _, r := range billRows {
		category := r.String("category_id")
		if category == "" {
			category = "Other"
		}
		items = append(items, RecentTransaction{
			ID:          r.String("id"),
			Type:        "bill",
			Description: r.String("vendor"),
			Amount:      r.Decimal("amount"),
			Date:        r.Date("bill_date"),
			Status:      r.String("status"),
			Category:    category,
			createdAt:   r.Time("created_at"),
			creatorID:   r.String("created_by"),
		})
	}
	for _, r := range cashRows {
		category := r.String("category")
		if category == "" {
			category = "Other"
		}
		items = append(items, RecentTransaction{
			ID:          r.String("id"),
			Type:        r.String("transaction_type"),
			Description: r.String("description"),
			Amount:      r.Decimal("amount"),
			Date:        r.Date("transaction_date"),
			Status:      "approved",
			Category:    category,
			createdAt:   r.Time("created_at"),
			creatorID:   r.String("created_by"),
		})
	}

	names, err := a.userNames(ctx, items)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].CreatedBy = names[items[i].creatorID]
		if items[i].CreatedBy == "" {
			items[i].CreatedBy = "System"
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Date != items[j].Date {
			return items[i].Date > items[j].Date
		}
		return items[i].createdAt.After(items[j].createdAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (a *Aggregator) userNames(ctx context.Context, items []RecentTransaction) (map[string]string, error) {
	seen := map[string]bool{}
	var ids []string
	for _, it := range items {
		if it.creatorID != "" && !seen[it.creatorID] {
			seen[it.creatorID] = true
			ids = append(ids, it.creatorID)
		}
	}
	names := map[string]string{}
	if len(ids) == 0 {
		return names, nil
	}
	rows, err := a.store.Select(ctx, core.ResourceUsers.Table(), storage.Query{
		Columns: []string{"id", "first_name", "last_name"},
		Filters: []storage.Filter{storage.In("id", ids...)},
	})
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		names[r.String("id")] = core.User{FirstName: r.String("first_name"), LastName: r.String("last_name")}.FullName()
	}
	return names, nil
}

func (a *Aggregator) alerts(ctx context.Context, now time.Time) (Alerts, error) {
	var al Alerts
	budgets, err := a.activeBudgets(ctx)
	if err != nil {
		return al, err
	}
	al.BudgetAlerts = budgetAlerts(budgets)

	bills := core.ResourceBills.Table()
	if al.PendingApprovals, err = a.store.Count(ctx, bills, storage.Eq("status", core.BillPending)); err != nil {
		return al, err
	}
	if al.OverdueBills, err = a.store.Count(ctx, bills,
		storage.Neq("status", core.BillPaid),
		storage.Lt("bill_date", core.Today(now)),
	); err != nil {
		return al, err
	}
	cash, err := a.cashOnHand(ctx)
	if err != nil {
		return al, err
	}
	al.LowCashBalance = cash.LessThan(a.floor)
	return al, nil
}

func budgetAlerts(budgets []core.Budget) []BudgetAlert {
	out := []BudgetAlert{}
	for _, b := range budgets {
		if !b.BudgetLimit.IsPositive() {
			continue
		}
		pct := int(b.Spent.Div(b.BudgetLimit).Mul(hundred).Round(0).IntPart())
		if pct < 80 {
			continue
		}
		severity := "medium"
		if pct >= 100 {
			severity = "high"
		}
		out = append(out, BudgetAlert{
			ID:         b.ID,
			Category:   b.Label(),
			Current:    b.Spent,
			Limit:      b.BudgetLimit,
			Percentage: pct,
			Severity:   severity,
			Message:    b.Label() + " budget at " + decimal.NewFromInt(int64(pct)).String() + "% utilization",
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Percentage > out[j].Percentage })
	return out
}

func (a *Aggregator) cards(ctx context.Context) (CardSummary, error) {
	rows, err := a.store.Select(ctx, core.ResourceCards.Table(), storage.Query{
		Columns: []string{"is_active", "card_limit", "balance"},
	})
	if err != nil {
		return CardSummary{}, err
	}
	cs := CardSummary{TotalCards: len(rows), TotalLimit: decimal.Zero}
	balances := decimal.Zero
	for _, r := range rows {
		if r.Bool("is_active") {
			cs.ActiveCards++
		}
		cs.TotalLimit = cs.TotalLimit.Add(r.Decimal("card_limit"))
		balances = balances.Add(r.Decimal("balance"))
	}
	cs.TotalUsed = decimal.Max(decimal.Zero, cs.TotalLimit.Sub(balances))
	cs.Available = decimal.Max(decimal.Zero, cs.TotalLimit.Sub(cs.TotalUsed))
	return cs, nil
}

// budgetStatus buckets active budgets anchored inside the window by
// utilization.
func (a *Aggregator) budgetStatus(ctx context.Context, w Window) (BudgetStatus, error) {
	budgets, err := a.activeBudgets(ctx,
		storage.Gte("month", w.Start[:7]+"-01"),
		storage.Lte("month", w.End),
	)
	if err != nil {
		return BudgetStatus{}, err
	}
	st := BudgetStatus{Total: len(budgets)}
	for _, b := range budgets {
		if !b.BudgetLimit.IsPositive() {
			continue
		}
		u := b.Utilization()
		switch {
		case u >= 1.0:
			st.Exceeded++
		case u >= budgetWarnThreshold:
			st.Warning++
		default:
			st.OnTrack++
		}
	}
	return st, nil
}
