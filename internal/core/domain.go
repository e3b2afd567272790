package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Resource names double as table names.
type Resource string

const (
	ResourceBills            Resource = "bills"
	ResourceCards            Resource = "cards"
	ResourceCashTransactions Resource = "cash_transactions"
	ResourceCashBalance      Resource = "cash_balance"
	ResourceSalaries         Resource = "salaries"
	ResourcePettyExpenses    Resource = "petty_expenses"
	ResourceBudgets          Resource = "budgets"
	ResourceReminders        Resource = "reminders"
	ResourceEmployees        Resource = "employees"
	ResourceUsers            Resource = "users"
	ResourceSessions         Resource = "sessions"
)

func (r Resource) Table() string { return string(r) }

func (r Resource) String() string { return string(r) }

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

const (
	BillPending  = "pending"
	BillApproved = "approved"
	BillPaid     = "paid"
	BillRejected = "rejected"
	BillOverdue  = "overdue"

	CardCredit = "credit"
	CardDebit  = "debit"

	TransactionIncome  = "income"
	TransactionExpense = "expense"

	SalaryPending = "pending"
	SalaryPaid    = "paid"

	PeriodMonthly   = "monthly"
	PeriodQuarterly = "quarterly"
	PeriodYearly    = "yearly"
)

func OneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

type (
	Bill struct {
		ID             string          `json:"id"`
		Vendor         string          `json:"vendor"`
		BillNumber     string          `json:"bill_number"`
		Amount         decimal.Decimal `json:"amount"`
		BillDate       string          `json:"bill_date"`
		DueDate        string          `json:"due_date"`
		Description    string          `json:"description"`
		Status         string          `json:"status"`
		CategoryID     string          `json:"category_id"`
		CardID         *string         `json:"card_id"`
		AttachmentURL  string          `json:"attachment_url"`
		AttachmentType string          `json:"attachment_type"`
		CreatedBy      string          `json:"created_by"`
		CreatedAt      time.Time       `json:"created_at"`
		UpdatedAt      time.Time       `json:"updated_at"`
	}

	Card struct {
		ID         string          `json:"id"`
		CardNumber string          `json:"card_number"`
		CardHolder string          `json:"card_holder"`
		CardType   string          `json:"card_type"`
		Bank       string          `json:"bank"`
		ExpiryDate string          `json:"expiry_date"`
		CardLimit  decimal.Decimal `json:"card_limit"`
		Balance    decimal.Decimal `json:"balance"`
		IsActive   bool            `json:"is_active"`
		CreatedAt  time.Time       `json:"created_at"`
		UpdatedAt  time.Time       `json:"updated_at"`
	}

	CashTransaction struct {
		ID              string          `json:"id"`
		TransactionDate string          `json:"transaction_date"`
		Description     string          `json:"description"`
		Amount          decimal.Decimal `json:"amount"`
		TransactionType string          `json:"transaction_type"`
		Category        string          `json:"category"`
		CategoryID      string          `json:"category_id"`
		Notes           string          `json:"notes"`
		CreatedBy       string          `json:"created_by"`
		CreatedAt       time.Time       `json:"created_at"`
		UpdatedAt       time.Time       `json:"updated_at"`
	}

	CashBalance struct {
		ID         string          `json:"id"`
		Amount     decimal.Decimal `json:"amount"`
		Notes      string          `json:"notes"`
		RecordedAt time.Time       `json:"recorded_at"`
		CreatedBy  string          `json:"created_by"`
	}

	Salary struct {
		ID           string          `json:"id"`
		EmployeeID   string          `json:"employee_id"`
		EmployeeName string          `json:"employee_name,omitempty"`
		Month        string          `json:"month"`
		BaseSalary   decimal.Decimal `json:"base_salary"`
		Allowances   decimal.Decimal `json:"allowances"`
		Deductions   decimal.Decimal `json:"deductions"`
		NetSalary    decimal.Decimal `json:"net_salary"`
		Status       string          `json:"status"`
		PaidDate     string          `json:"paid_date"`
		CreatedBy    string          `json:"created_by"`
		CreatedAt    time.Time       `json:"created_at"`
		UpdatedAt    time.Time       `json:"updated_at"`
	}

	PettyExpense struct {
		ID          string          `json:"id"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category"`
		ExpenseDate string          `json:"expense_date"`
		CreatedBy   string          `json:"created_by"`
		CreatedAt   time.Time       `json:"created_at"`
		UpdatedAt   time.Time       `json:"updated_at"`
	}

	Budget struct {
		ID           string          `json:"id"`
		CategoryID   string          `json:"category_id"`
		CategoryName string          `json:"category_name"`
		BudgetLimit  decimal.Decimal `json:"budget_limit"`
		Spent        decimal.Decimal `json:"spent"`
		Period       string          `json:"period"`
		Month        string          `json:"month"`
		IsActive     bool            `json:"is_active"`
		CreatedBy    string          `json:"created_by"`
		CreatedAt    time.Time       `json:"created_at"`
		UpdatedAt    time.Time       `json:"updated_at"`
	}

	Reminder struct {
		ID                  string    `json:"id"`
		Title               string    `json:"title"`
		Description         string    `json:"description"`
		ReminderDate        string    `json:"reminder_date"`
		ReminderTime        string    `json:"reminder_time"`
		Type                string    `json:"type"`
		RelatedID           string    `json:"related_id"`
		NotificationMethods []string  `json:"notification_methods"`
		Recipients          []string  `json:"recipients"`
		IsActive            bool      `json:"is_active"`
		IsSent              bool      `json:"is_sent"`
		CreatedBy           string    `json:"created_by"`
		CreatedAt           time.Time `json:"created_at"`
		UpdatedAt           time.Time `json:"updated_at"`
	}

	Employee struct {
		ID           string          `json:"id"`
		FirstName    string          `json:"first_name"`
		LastName     string          `json:"last_name"`
		Email        string          `json:"email"`
		Designation  string          `json:"designation"`
		DepartmentID string          `json:"department_id"`
		BaseSalary   decimal.Decimal `json:"base_salary"`
		JoinDate     string          `json:"join_date"`
		IsActive     bool            `json:"is_active"`
		CreatedAt    time.Time       `json:"created_at"`
		UpdatedAt    time.Time       `json:"updated_at"`
	}

	User struct {
		ID           string     `json:"id"`
		Email        string     `json:"email"`
		PasswordHash string     `json:"-"`
		FirstName    string     `json:"first_name"`
		LastName     string     `json:"last_name"`
		Role         Role       `json:"role"`
		IsActive     bool       `json:"is_active"`
		LastLoginAt  *time.Time `json:"last_login_at"`
		CreatedAt    time.Time  `json:"created_at"`
		UpdatedAt    time.Time  `json:"updated_at"`
	}

	Session struct {
		ID               string    `json:"id"`
		UserID           string    `json:"user_id"`
		RefreshTokenHash string    `json:"-"`
		IPAddress        string    `json:"ip_address"`
		UserAgent        string    `json:"user_agent"`
		ExpiresAt        time.Time `json:"expires_at"`
		IsActive         bool      `json:"is_active"`
		CreatedAt        time.Time `json:"created_at"`
	}
)

// NetSalary is base + allowances - deductions.
func NetSalary(base, allowances, deductions decimal.Decimal) decimal.Decimal {
	return Sum(base, allowances).Sub(deductions)
}

// Utilization is spent/limit, or 0 when the budget has no limit.
func (b Budget) Utilization() float64 {
	if !b.BudgetLimit.IsPositive() {
		return 0
	}
	return Float(b.Spent.Div(b.BudgetLimit))
}

// Label is the display name of the budget's category.
func (b Budget) Label() string {
	if b.CategoryName != "" {
		return b.CategoryName
	}
	if b.CategoryID != "" {
		return b.CategoryID
	}
	return "Uncategorized"
}

func (e Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
