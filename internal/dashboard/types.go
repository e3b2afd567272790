package dashboard

import (
	"time"

	"github.com/shopspring/decimal"

	"accounting/internal/core"
)

type PeriodInfo struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Label     string `json:"label"`
}

type KPIs struct {
	TotalExpenses     decimal.Decimal `json:"total_expenses"`
	TotalIncome       decimal.Decimal `json:"total_income"`
	AvailableBalance  decimal.Decimal `json:"available_balance"`
	BudgetUtilization float64         `json:"budget_utilization"`
	CardsInUse        int             `json:"cards_in_use"`
	PendingBills      int             `json:"pending_bills"`
	CardBalances      decimal.Decimal `json:"card_balances"`
	CashOnHand        decimal.Decimal `json:"cash_on_hand"`
	TotalPayroll      decimal.Decimal `json:"total_payroll"`
	ActiveEmployees   int             `json:"active_employees"`
}

type TrendPoint struct {
	Month    string          `json:"month"`
	Expenses decimal.Decimal `json:"expenses"`
	Income   decimal.Decimal `json:"income"`
	Budget   decimal.Decimal `json:"budget"`
}

type CategoryPoint struct {
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage float64         `json:"percentage"`
	Trend      string          `json:"trend"`
}

type RecentTransaction struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	Status      string          `json:"status"`
	Category    string          `json:"category"`
	CreatedBy   string          `json:"created_by"`

	createdAt time.Time
	creatorID string
}

type BudgetAlert struct {
	ID         string          `json:"id"`
	Category   string          `json:"category"`
	Current    decimal.Decimal `json:"current"`
	Limit      decimal.Decimal `json:"limit"`
	Percentage int             `json:"percentage"`
	Severity   string          `json:"severity"`
	Message    string          `json:"message"`
}

type Alerts struct {
	BudgetAlerts     []BudgetAlert `json:"budget_alerts"`
	PendingApprovals int           `json:"pending_approvals"`
	OverdueBills     int           `json:"overdue_bills"`
	LowCashBalance   bool          `json:"low_cash_balance"`
}

type CardSummary struct {
	TotalCards  int             `json:"total_cards"`
	ActiveCards int             `json:"active_cards"`
	TotalLimit  decimal.Decimal `json:"total_limit"`
	TotalUsed   decimal.Decimal `json:"total_used"`
	Available   decimal.Decimal `json:"available"`
}

type BudgetStatus struct {
	OnTrack  int `json:"on_track"`
	Warning  int `json:"warning"`
	Exceeded int `json:"exceeded"`
	Total    int `json:"total"`
}

type Permissions struct {
	CanEdit   bool `json:"can_edit"`
	CanExport bool `json:"can_export"`
	CanDelete bool `json:"can_delete"`
}

type Metadata struct {
	DataFreshness        string      `json:"data_freshness"`
	CachedAt             time.Time   `json:"cached_at"`
	CacheUntil           time.Time   `json:"cache_until"`
	CacheDurationSeconds int         `json:"cache_duration_seconds"`
	Permissions          Permissions `json:"permissions"`
	UserRole             core.Role   `json:"user_role"`
}

// Summary is the composite dashboard response.
type Summary struct {
	Timestamp          time.Time           `json:"timestamp"`
	Period             PeriodInfo          `json:"period"`
	KPIs               KPIs                `json:"kpis"`
	MonthlyTrend       []TrendPoint        `json:"monthly_trend"`
	ExpensesByCategory []CategoryPoint     `json:"expenses_by_category"`
	RecentTransactions []RecentTransaction `json:"recent_transactions"`
	Alerts             Alerts              `json:"alerts"`
	Cards              CardSummary         `json:"cards"`
	BudgetStatus       BudgetStatus        `json:"budget_status"`
	Metadata           Metadata            `json:"metadata"`
}
