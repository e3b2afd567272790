package services

import (
	"accounting/internal/core"
	"accounting/internal/storage"
)

func toBill(r storage.Row) core.Bill {
	return core.Bill{
		ID:             r.String("id"),
		Vendor:         r.String("vendor"),
		BillNumber:     r.String("bill_number"),
		Amount:         r.Decimal("amount"),
		BillDate:       r.Date("bill_date"),
		DueDate:        r.Date("due_date"),
		Description:    r.String("description"),
		Status:         r.String("status"),
		CategoryID:     r.String("category_id"),
		CardID:         r.StringPtr("card_id"),
		AttachmentURL:  r.String("attachment_url"),
		AttachmentType: r.String("attachment_type"),
		CreatedBy:      r.String("created_by"),
		CreatedAt:      r.Time("created_at"),
		UpdatedAt:      r.Time("updated_at"),
	}
}

func toCard(r storage.Row) core.Card {
	return core.Card{
		ID:         r.String("id"),
		CardNumber: r.String("card_number"),
		CardHolder: r.String("card_holder"),
		CardType:   r.String("card_type"),
		Bank:       r.String("bank"),
		ExpiryDate: r.String("expiry_date"),
		CardLimit:  r.Decimal("card_limit"),
		Balance:    r.Decimal("balance"),
		IsActive:   r.Bool("is_active"),
		CreatedAt:  r.Time("created_at"),
		UpdatedAt:  r.Time("updated_at"),
	}
}

func toCashTransaction(r storage.Row) core.CashTransaction {
	return core.CashTransaction{
		ID:              r.String("id"),
		TransactionDate: r.Date("transaction_date"),
		Description:     r.String("description"),
		Amount:          r.Decimal("amount"),
		TransactionType: r.String("transaction_type"),
		Category:        r.String("category"),
		CategoryID:      r.String("category_id"),
		Notes:           r.String("notes"),
		CreatedBy:       r.String("created_by"),
		CreatedAt:       r.Time("created_at"),
		UpdatedAt:       r.Time("updated_at"),
	}
}

func toCashBalance(r storage.Row) core.CashBalance {
	return core.CashBalance{
		ID:         r.String("id"),
		Amount:     r.Decimal("amount"),
		Notes:      r.String("notes"),
		RecordedAt: r.Time("recorded_at"),
		CreatedBy:  r.String("created_by"),
	}
}

func toSalary(r storage.Row) core.Salary {
	return core.Salary{
		ID:         r.String("id"),
		EmployeeID: r.String("employee_id"),
		Month:      r.String("month"),
		BaseSalary: r.Decimal("base_salary"),
		Allowances: r.Decimal("allowances"),
		Deductions: r.Decimal("deductions"),
		NetSalary:  r.Decimal("net_salary"),
		Status:     r.String("status"),
		PaidDate:   r.Date("paid_date"),
		CreatedBy:  r.String("created_by"),
		CreatedAt:  r.Time("created_at"),
		UpdatedAt:  r.Time("updated_at"),
	}
}

func toPettyExpense(r storage.Row) core.PettyExpense {
	return core.PettyExpense{
		ID:          r.String("id"),
		Description: r.String("description"),
		Amount:      r.Decimal("amount"),
		Category:    r.String("category"),
		ExpenseDate: r.Date("expense_date"),
		CreatedBy:   r.String("created_by"),
		CreatedAt:   r.Time("created_at"),
		UpdatedAt:   r.Time("updated_at"),
	}
}

func toBudget(r storage.Row) core.Budget {
	return core.Budget{
		ID:           r.String("id"),
		CategoryID:   r.String("category_id"),
		CategoryName: r.String("category_name"),
		BudgetLimit:  r.Decimal("budget_limit"),
		Spent:        r.Decimal("spent"),
		Period:       r.String("period"),
		Month:        r.Date("month"),
		IsActive:     r.Bool("is_active"),
		CreatedBy:    r.String("created_by"),
		CreatedAt:    r.Time("created_at"),
		UpdatedAt:    r.Time("updated_at"),
	}
}

func toReminder(r storage.Row) core.Reminder {
	return core.Reminder{
		ID:                  r.String("id"),
		Title:               r.String("title"),
		Description:         r.String("description"),
		ReminderDate:        r.Date("reminder_date"),
		ReminderTime:        r.String("reminder_time"),
		Type:                r.String("type"),
		RelatedID:           r.String("related_id"),
		NotificationMethods: r.Strings("notification_methods"),
		Recipients:          r.Strings("recipients"),
		IsActive:            r.Bool("is_active"),
		IsSent:              r.Bool("is_sent"),
		CreatedBy:           r.String("created_by"),
		CreatedAt:           r.Time("created_at"),
		UpdatedAt:           r.Time("updated_at"),
	}
}

func toEmployee(r storage.Row) core.Employee {
	return core.Employee{
		ID:           r.String("id"),
		FirstName:    r.String("first_name"),
		LastName:     r.String("last_name"),
		Email:        r.String("email"),
		Designation:  r.String("designation"),
		DepartmentID: r.String("department_id"),
		BaseSalary:   r.Decimal("base_salary"),
		JoinDate:     r.Date("join_date"),
		IsActive:     r.Bool("is_active"),
		CreatedAt:    r.Time("created_at"),
		UpdatedAt:    r.Time("updated_at"),
	}
}

// ToUser is exported for the auth package, which shares the users table.
func ToUser(r storage.Row) core.User {
	return core.User{
		ID:           r.String("id"),
		Email:        r.String("email"),
		PasswordHash: r.String("password"),
		FirstName:    r.String("first_name"),
		LastName:     r.String("last_name"),
		Role:         core.Role(r.String("role")),
		IsActive:     r.Bool("is_active"),
		LastLoginAt:  r.TimePtr("last_login_at"),
		CreatedAt:    r.Time("created_at"),
		UpdatedAt:    r.Time("updated_at"),
	}
}

func mapRows[T any](rows []storage.Row, fn func(storage.Row) T) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		out = append(out, fn(r))
	}
	return out
}
