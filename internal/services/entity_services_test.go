package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accounting/internal/core"
)

func TestCardService_DeleteWithBillsConflicts(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	cardID := e.card(t, "4111")

	_, err := e.set.Bills.Create(ctx, Input{"vendor": "ACME", "amount": 10.0, "card_id": cardID}, "u1")
	require.NoError(t, err)

	_, err = e.set.Cards.Delete(ctx, cardID, "admin-1")
	var ce *core.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "Cannot delete card with associated bills. Deactivate instead.", ce.Message)

	card, err := e.set.Cards.Deactivate(ctx, cardID, "admin-1")
	require.NoError(t, err)
	assert.False(t, card.IsActive)

	active, err := e.set.Cards.Active(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestCardService_CreateRules(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.card(t, "4111")

	_, err := e.set.Cards.Create(ctx, Input{"card_number": "4111", "card_holder": "X", "bank": "B"}, "a")
	var ce *core.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "Card number already exists", ce.Message)

	_, err = e.set.Cards.Create(ctx, Input{"card_number": "4999", "card_holder": "X", "bank": "B", "card_type": "gold"}, "a")
	var ve *core.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "card_type", ve.Field)

	other := e.card(t, "4222")
	_, err = e.set.Cards.Update(ctx, other, Input{"card_number": "4111"}, "a")
	assert.True(t, errors.As(err, &ce))

	msg, err := e.set.Cards.Delete(ctx, other, "a")
	require.NoError(t, err)
	assert.Equal(t, "Card deleted successfully", msg)
}

func TestCardService_BalanceAndStats(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	cardID := e.card(t, "4111")

	for _, amt := range []float64{100, 250} {
		_, err := e.set.Bills.Create(ctx, Input{"vendor": "ACME", "amount": amt, "card_id": cardID}, "u1")
		require.NoError(t, err)
	}

	b, err := e.set.Cards.Balance(ctx, cardID)
	require.NoError(t, err)
	assert.Equal(t, 2, b.TotalTransactions)
	assert.Equal(t, "350", b.TotalSpent.String())
	assert.Equal(t, "4650", b.AvailableLimit.String())

	_, err = e.set.Cards.SetBalance(ctx, cardID, "1000", "admin-1")
	require.NoError(t, err)

	st, err := e.set.Cards.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalCards)
	assert.Equal(t, 1, st.ActiveCards)
	assert.Equal(t, "4000", st.TotalAvailable.String())
}

func TestSalaryService_NetSalary(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	empID := e.employee(t, "ada@example.com")

	sal, err := e.set.Salaries.Create(ctx, Input{
		"employee_id": empID,
		"month":       "2025-01",
		"base_salary": 50000.0,
		"allowances":  2000.0,
		"deductions":  1500.0,
		"net_salary":  1.0,
	}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "50500", sal.NetSalary.String())
	assert.Equal(t, core.SalaryPending, sal.Status)

	updated, err := e.set.Salaries.Update(ctx, sal.ID, Input{"deductions": 500.0}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "51500", updated.NetSalary.String(), "missing components keep stored values")

	paid, err := e.set.Salaries.MarkPaid(ctx, sal.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, core.SalaryPaid, paid.Status)
	assert.Equal(t, "2025-07-15", paid.PaidDate)

	list, err := e.set.Salaries.ByEmployee(ctx, empID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ada Lovelace", list[0].EmployeeName)

	st, err := e.set.Salaries.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.PaidCount)
	assert.True(t, st.TotalPayroll.Equal(decimal.NewFromInt(51500)))
}

func TestSalaryService_CreateValidation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	empID := e.employee(t, "ada@example.com")

	tests := []struct {
		name  string
		in    Input
		field string
	}{
		{"missing employee", Input{"month": "2025-01"}, "employee_id"},
		{"unknown employee", Input{"employee_id": "nope", "month": "2025-01"}, "employee_id"},
		{"missing month", Input{"employee_id": empID}, "month"},
		{"bad month", Input{"employee_id": empID, "month": "January"}, "month"},
		{"negative base", Input{"employee_id": empID, "month": "2025-01", "base_salary": -1.0}, "base_salary"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.set.Salaries.Create(ctx, tt.in, "admin-1")
			var ve *core.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestEmployeeService_Delete(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	t.Run("with salary history", func(t *testing.T) {
		empID := e.employee(t, "paid@example.com")
		_, err := e.set.Salaries.Create(ctx, Input{"employee_id": empID, "month": "2025-01", "base_salary": 100.0}, "a")
		require.NoError(t, err)

		msg, err := e.set.Employees.Delete(ctx, empID, "a")
		require.NoError(t, err)
		assert.Equal(t, "Employee deactivated successfully", msg)

		emp, err := e.set.Employees.Get(ctx, empID)
		require.NoError(t, err)
		assert.False(t, emp.IsActive)
	})

	t.Run("without salaries", func(t *testing.T) {
		empID := e.employee(t, "new@example.com")

		msg, err := e.set.Employees.Delete(ctx, empID, "a")
		require.NoError(t, err)
		assert.Equal(t, "Employee deleted successfully", msg)

		_, err = e.set.Employees.Get(ctx, empID)
		var nf *core.NotFoundError
		assert.True(t, errors.As(err, &nf))
	})
}

func TestEmployeeService_CreateRules(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.employee(t, "ada@example.com")

	_, err := e.set.Employees.Create(ctx, Input{"first_name": "A", "last_name": "B", "email": "ADA@example.com"}, "a")
	var ce *core.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "Employee with this email already exists", ce.Message)

	_, err = e.set.Employees.Create(ctx, Input{"first_name": "A", "last_name": "B", "email": "not-an-email"}, "a")
	var ve *core.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "email", ve.Field)

	st, err := e.set.Employees.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Total)
	assert.Equal(t, "50000", st.TotalBaseSalary.String())
}

func TestBudgetService_Alerts(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	mk := func(name string, limit, spent float64) string {
		b, err := e.set.Budgets.Create(ctx, Input{"category_name": name, "budget_limit": limit}, "a")
		require.NoError(t, err)
		_, err = e.set.Budgets.UpdateSpent(ctx, b.ID, spent, "a")
		require.NoError(t, err)
		return b.ID
	}
	full := mk("Travel", 1000, 1000)
	mk("Office", 1000, 850)
	mk("Food", 1000, 100)
	inactive := mk("Old", 100, 500)
	_, err := e.set.Budgets.Update(ctx, inactive, Input{"is_active": false}, "a")
	require.NoError(t, err)

	alerts, err := e.set.Budgets.Alerts(ctx, 0.8)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "Travel", alerts[0].CategoryName)
	assert.InDelta(t, 1.0, alerts[0].Utilization, 1e-9)

	alerts, err = e.set.Budgets.Alerts(ctx, 1.01)
	require.NoError(t, err)
	assert.Empty(t, alerts, "a budget at exactly 100% is below 1.01")

	alerts, err = e.set.Budgets.Alerts(ctx, 1.0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, full, alerts[0].ID)
}

func TestBudgetService_CreateDefaults(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	b, err := e.set.Budgets.Create(ctx, Input{"category_name": "Travel", "budget_limit": 500.0, "spent": 400.0}, "a")
	require.NoError(t, err)
	assert.Equal(t, "2025-07-01", b.Month)
	assert.Equal(t, core.PeriodMonthly, b.Period)
	assert.True(t, b.Spent.IsZero())
	assert.True(t, b.IsActive)

	b, err = e.set.Budgets.Create(ctx, Input{"category_id": "c1", "budget_limit": 500.0, "month": "2025-03-17"}, "a")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", b.Month)

	_, err = e.set.Budgets.Create(ctx, Input{"budget_limit": 500.0}, "a")
	var ve *core.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "category_name", ve.Field)
}

func TestPettyService_Ownership(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	exp, err := e.set.Petty.Create(ctx, Input{"description": "Coffee", "amount": 4.5}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "2025-07-15", exp.ExpenseDate)

	_, err = e.set.Petty.Update(ctx, exp.ID, Input{"amount": 5.0}, Actor{ID: "user-2", Role: core.RoleUser})
	var pe *core.PermissionError
	require.True(t, errors.As(err, &pe))

	updated, err := e.set.Petty.Update(ctx, exp.ID, Input{"amount": 5.0}, Actor{ID: "user-1", Role: core.RoleUser})
	require.NoError(t, err)
	assert.Equal(t, "5", updated.Amount.String())

	_, err = e.set.Petty.Delete(ctx, exp.ID, Actor{ID: "user-2", Role: core.RoleUser})
	require.True(t, errors.As(err, &pe))

	msg, err := e.set.Petty.Delete(ctx, exp.ID, Actor{ID: "admin", Role: core.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, "Petty expense deleted successfully", msg)
}

func TestPettyService_MonthlySummary(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	for _, in := range []Input{
		{"description": "Taxi", "amount": 30.0, "category": "travel", "expense_date": "2025-06-02"},
		{"description": "Bus", "amount": 10.0, "category": "travel", "expense_date": "2025-06-20"},
		{"description": "Pens", "amount": 5.0, "expense_date": "2025-06-30"},
		{"description": "July", "amount": 99.0, "expense_date": "2025-07-01"},
	} {
		_, err := e.set.Petty.Create(ctx, in, "u1")
		require.NoError(t, err)
	}

	sum, err := e.set.Petty.MonthlySummary(ctx, 2025, 6)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Count)
	assert.Equal(t, "45", sum.Total.String())
	require.Len(t, sum.ByCategory, 2)
	assert.Equal(t, "travel", sum.ByCategory[0].Category)
	assert.Equal(t, 2, sum.ByCategory[0].Count)
	assert.Equal(t, "uncategorized", sum.ByCategory[1].Category)

	_, err = e.set.Petty.MonthlySummary(ctx, 2025, 13)
	assert.Error(t, err)
}

func TestCashService_StatsAndBalance(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	tx, err := e.set.Cash.Create(ctx, Input{"amount": 100.0}, "u1")
	require.NoError(t, err)
	assert.Equal(t, core.TransactionExpense, tx.TransactionType)
	assert.Equal(t, "Cash transaction", tx.Description)

	_, err = e.set.Cash.Create(ctx, Input{"amount": 250.0, "transaction_type": "income"}, "u1")
	require.NoError(t, err)

	_, err = e.set.Cash.Create(ctx, Input{"amount": 1.0, "transaction_type": "gift"}, "u1")
	assert.Error(t, err)

	st, err := e.set.Cash.Stats(ctx, CashFilter{})
	require.NoError(t, err)
	assert.Equal(t, "150", st.NetBalance.String())
	assert.Equal(t, 2, st.TransactionCount)

	latest, err := e.set.Cash.LatestBalance(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	_, err = e.set.Cash.RecordBalance(ctx, 12000.0, "count", "admin-1")
	require.NoError(t, err)
	latest, err = e.set.Cash.LatestBalance(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "12000", latest.Amount.String())
}

func TestReminderService_TodayAndUpcoming(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	for _, in := range []Input{
		{"title": "Late", "reminder_date": "2025-07-15", "reminder_time": "17:00"},
		{"title": "Early", "reminder_date": "2025-07-15", "reminder_time": "09:00", "recipients": []any{"a@example.com"}},
		{"title": "Soon", "reminder_date": "2025-07-20"},
		{"title": "Far", "reminder_date": "2025-09-01"},
	} {
		_, err := e.set.Reminders.Create(ctx, in, "a")
		require.NoError(t, err)
	}

	today, err := e.set.Reminders.Today(ctx)
	require.NoError(t, err)
	require.Len(t, today, 2)
	assert.Equal(t, "Early", today[0].Title)
	assert.Equal(t, []string{"email"}, today[0].NotificationMethods)
	assert.Equal(t, []string{"a@example.com"}, today[0].Recipients)

	upcoming, err := e.set.Reminders.Upcoming(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, upcoming, 3)

	_, err = e.set.Reminders.Create(ctx, Input{"title": "x", "reminder_date": "2025-07-15", "reminder_time": "25:00"}, "a")
	assert.Error(t, err)
}
