package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accounting/internal/auth"
	"accounting/internal/core"
	"accounting/internal/dashboard"
	"accounting/internal/export"
	"accounting/internal/export/memory"
	"accounting/internal/services"
	"accounting/internal/storage"
)

var dbSeq atomic.Int64

var fixedNow = time.Date(2025, 7, 15, 10, 0, 0, 0, time.UTC)

const (
	adminEmail = "admin@accounting.com"
	userEmail  = "clerk@accounting.com"
	password   = "s3cret-pass"
)

type testEnv struct {
	srv    *Server
	set    *services.Set
	sheets *memory.Store
	admin  string
	user   string
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Stats   json.RawMessage `json:"stats"`
	Meta    json.RawMessage `json:"meta"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
}

func newTestEnv(t *testing.T, exporter export.BillWriter) *testEnv {
	t.Helper()
	ctx := context.Background()
	dsn := fmt.Sprintf("file:http_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	st, err := storage.Open(ctx, storage.SQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	now := func() time.Time { return fixedNow }
	set := services.NewSet(services.Deps{Store: st, Now: now})
	agg := dashboard.New(st, dashboard.Config{Now: now, LowCashFloor: decimal.NewFromInt(1000)})
	set.OnChange(agg.Invalidate)

	authSvc := auth.NewService(st, auth.NewIssuer("0123456789abcdef0123456789abcdef", 15*time.Minute, time.Hour, now), nil)
	_, err = authSvc.EnsureAdmin(ctx, adminEmail, password)
	require.NoError(t, err)
	_, err = authSvc.Register(ctx, auth.RegisterInput{
		Email: userEmail, Password: password, FirstName: "Cle", LastName: "Rk", Role: core.RoleUser,
	})
	require.NoError(t, err)

	srv := NewServer(":0", Deps{
		Services:           set,
		Auth:               authSvc,
		Dashboard:          agg,
		Exporter:           exporter,
		DB:                 st,
		Development:        true,
		RateLimitPerMinute: 1000,
		AllowedOrigins:     []string{"http://localhost:3000"},
		Now:                now,
	})
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	e := &testEnv{srv: srv, set: set}
	if m, ok := exporter.(*memory.Store); ok {
		e.sheets = m
	}
	e.admin = e.login(t, adminEmail)
	e.user = e.login(t, userEmail)
	return e
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)

	var resp response
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	}
	return rr, resp
}

func (e *testEnv) login(t *testing.T, email string) string {
	t.Helper()
	rr, resp := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var data struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.NotEmpty(t, data.AccessToken)
	return data.AccessToken
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func TestHealthReadyAndNotFound(t *testing.T) {
	e := newTestEnv(t, nil)

	for _, path := range []string{"/health", "/ready"} {
		rr, resp := e.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.True(t, resp.Success)
	}

	rr, resp := e.do(t, http.MethodGet, "/api/nothing-here", e.admin, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Route not found", resp.Error)

	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestWrongMethodOnKnownPath(t *testing.T) {
	e := newTestEnv(t, nil)

	rr, resp := e.do(t, http.MethodPatch, "/api/bills", e.admin, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "Method not allowed", resp.Error)
	assert.Equal(t, "GET, POST", rr.Header().Get("Allow"))

	rr, _ = e.do(t, http.MethodPost, "/api/bills/b1", e.admin, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "GET, PUT, DELETE", rr.Header().Get("Allow"))
}

func TestGroupedAmounts(t *testing.T) {
	e := newTestEnv(t, nil)

	rr, resp := e.do(t, http.MethodPost, "/api/cash-transactions", e.admin, map[string]any{
		"amount": "1,500", "type": "expense",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	tx := decode[core.CashTransaction](t, resp.Data)
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(1500)), tx.Amount.String())

	rr, resp = e.do(t, http.MethodPost, "/api/bills", e.admin, map[string]any{
		"vendor": "ACME", "amount": "1,5",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "amount", decode[map[string]string](t, resp.Details)["field"])
}

func TestAuthGates(t *testing.T) {
	e := newTestEnv(t, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		body       any
		wantStatus int
		wantError  string
	}{
		{"no token", http.MethodGet, "/api/bills", "", nil, http.StatusUnauthorized, "No token provided"},
		{"bad token", http.MethodGet, "/api/bills", "garbage", nil, http.StatusUnauthorized, "Invalid token"},
		{"user cannot register", http.MethodPost, "/api/auth/register", e.user, map[string]string{"email": "x@y.z"}, http.StatusForbidden, "Admin access required"},
		{"user cannot create card", http.MethodPost, "/api/cards", e.user, map[string]string{"card_number": "1"}, http.StatusForbidden, "Admin access required"},
		{"user cannot write bills", http.MethodPost, "/api/bills", e.user, map[string]any{"vendor": "X", "amount": 1}, http.StatusForbidden, "Edit access denied"},
		{"user cannot delete employees", http.MethodDelete, "/api/employees/abc", e.user, nil, http.StatusForbidden, "Edit access denied"},
		{"user cannot list sessions", http.MethodGet, "/api/sessions", e.user, nil, http.StatusForbidden, "Admin access required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, resp := e.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantError, resp.Error)
		})
	}
}

func TestAuthFlow(t *testing.T) {
	e := newTestEnv(t, nil)

	rr, resp := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": userEmail, "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Invalid credentials", resp.Error)

	rr, resp = e.do(t, http.MethodGet, "/api/auth/me", e.user, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	me := decode[map[string]any](t, resp.Data)
	assert.Equal(t, userEmail, me["email"])
	assert.NotContains(t, me, "password_hash")

	rr, resp = e.do(t, http.MethodPost, "/api/auth/register", e.admin, map[string]string{
		"email": userEmail, "password": password, "firstName": "A", "lastName": "B", "role": "user",
	})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "User with this email already exists", resp.Error)

	rr, _ = e.do(t, http.MethodPost, "/api/auth/logout", e.user, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rr, resp = e.do(t, http.MethodGet, "/api/auth/me", e.user, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Invalid token", resp.Error)
}

func TestSalaryNetIsComputed(t *testing.T) {
	e := newTestEnv(t, nil)

	rr, resp := e.do(t, http.MethodPost, "/api/employees", e.admin, map[string]any{
		"firstName": "Grace", "lastName": "Hopper", "email": "grace@example.com", "baseSalary": 50000,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	emp := decode[core.Employee](t, resp.Data)

	rr, resp = e.do(t, http.MethodPost, "/api/salary", e.admin, map[string]any{
		"employeeId": emp.ID,
		"month":      "2025-07",
		"baseSalary": 50000,
		"allowances": 1000,
		"deductions": 500,
		"net_salary": 1,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Contains(t, string(resp.Data), `"net_salary":50500`)

	rr, resp = e.do(t, http.MethodGet, "/api/salary/employee/"+emp.ID, e.user, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[[]core.Salary](t, resp.Data)
	require.Len(t, list, 1)
	assert.True(t, list[0].NetSalary.Equal(decimal.NewFromInt(50500)))
}

func TestBillsAliasesAndMeta(t *testing.T) {
	e := newTestEnv(t, nil)

	rr, resp := e.do(t, http.MethodPost, "/api/bills", e.admin, map[string]any{
		"vendorName": "Acme Supplies",
		"amount":     "120.50",
		"date":       "2025-07-01",
		"bill_date":  "2025-07-02",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	bill := decode[core.Bill](t, resp.Data)
	assert.Equal(t, "Acme Supplies", bill.Vendor)
	assert.Equal(t, "2025-07-02", bill.BillDate, "canonical key wins over alias")

	rr, resp = e.do(t, http.MethodPost, "/api/bills", e.admin, map[string]any{"amount": 10})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "vendor", decode[map[string]string](t, resp.Details)["field"])

	rr, resp = e.do(t, http.MethodGet, "/api/bills?startDate=2025-07-01", e.user, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]core.Bill](t, resp.Data), 1)
	assert.Equal(t, 1, decode[services.BillStats](t, resp.Stats).TotalBills)
	meta := decode[map[string]any](t, resp.Meta)
	assert.Equal(t, false, meta["editing_enabled"])
	assert.Equal(t, "user", meta["user_role"])

	rr, resp = e.do(t, http.MethodGet, "/api/bills/"+bill.ID, e.admin, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decode[map[string]any](t, resp.Meta)["editing_enabled"])

	rr, resp = e.do(t, http.MethodGet, "/api/bills?startDate=07/01/2025", e.admin, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.False(t, resp.Success)

	rr, resp = e.do(t, http.MethodDelete, "/api/bills/"+bill.ID, e.admin, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Bill deleted successfully", resp.Message)

	rr, _ = e.do(t, http.MethodGet, "/api/bills/"+bill.ID, e.admin, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPettyExpenseFieldPolicy(t *testing.T) {
	e := newTestEnv(t, nil)

	rr, resp := e.do(t, http.MethodPost, "/api/petty-expenses", e.user, map[string]any{
		"description": "Taxi", "amount": 12.5, "date": "2025-07-10",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	pe := decode[core.PettyExpense](t, resp.Data)
	assert.Equal(t, "2025-07-10", pe.ExpenseDate)

	rr, resp = e.do(t, http.MethodPut, "/api/petty-expenses/"+pe.ID, e.user, map[string]any{
		"amount": 15, "createdBy": "someone-else",
	})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "Field edit access denied", resp.Error)
	details := decode[map[string][]string](t, resp.Details)
	assert.Equal(t, []string{"created_by"}, details["denied_fields"])
	assert.Equal(t, []string{"description", "amount", "category", "expense_date"}, details["allowed_fields"])

	rr, resp = e.do(t, http.MethodGet, "/api/petty-expenses/summary/monthly?month=7&year=2025", e.user, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	sum := decode[services.MonthlySummary](t, resp.Data)
	assert.Equal(t, 1, sum.Count)
}

func TestBillExports(t *testing.T) {
	sheets := memory.New()
	e := newTestEnv(t, sheets)

	_, err := e.set.Bills.Create(context.Background(), services.Input{
		"vendor": "Power Co", "amount": 99.9, "bill_date": "2025-07-03",
	}, "")
	require.NoError(t, err)

	rr, _ := e.do(t, http.MethodGet, "/api/bills/export/pdf?startDate=2025-07-01&endDate=2025-07-31", e.user, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF-")))

	rr, resp := e.do(t, http.MethodPost, "/api/bills/export/sheets", e.admin, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, float64(1), decode[map[string]any](t, resp.Data)["exported"])
	assert.Len(t, sheets.Rows(), 2, "header plus one bill")

	unconfigured := newTestEnv(t, nil)
	rr, resp = unconfigured.do(t, http.MethodPost, "/api/bills/export/sheets", unconfigured.admin, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "Google Sheets export is not configured", resp.Error)
}

func TestDashboardRoutes(t *testing.T) {
	e := newTestEnv(t, nil)

	_, err := e.set.Cash.Create(context.Background(), services.Input{
		"transaction_date": "2025-07-10", "transaction_type": "expense", "category": "Office", "amount": 250,
	}, "")
	require.NoError(t, err)

	for _, path := range []string{
		"/api/dashboard",
		"/api/dashboard/summary?period=current_month",
		"/api/dashboard/kpis/summary",
		"/api/dashboard/charts/expenses",
		"/api/dashboard/charts/budget-status",
		"/api/dashboard/charts/monthly-trend",
	} {
		rr, resp := e.do(t, http.MethodGet, path, e.user, nil)
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.True(t, resp.Success, path)
	}

	_, resp := e.do(t, http.MethodGet, "/api/dashboard/summary", e.admin, nil)
	sum := decode[map[string]any](t, resp.Data)
	kpis := sum["kpis"].(map[string]any)
	assert.Equal(t, float64(250), kpis["total_expenses"])

	rr, resp := e.do(t, http.MethodGet, "/api/dashboard/summary?period=fortnight", e.admin, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.False(t, resp.Success)
}

func TestCardsAndSessionsAdmin(t *testing.T) {
	e := newTestEnv(t, nil)

	rr, resp := e.do(t, http.MethodPost, "/api/cards", e.admin, map[string]any{
		"cardNumber": "4111", "cardHolder": "Ops", "bank": "Bank", "cardLimit": 1000,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	card := decode[core.Card](t, resp.Data)

	rr, resp = e.do(t, http.MethodPost, "/api/cards", e.admin, map[string]any{
		"cardNumber": "4111", "cardHolder": "Ops", "bank": "Bank",
	})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "Card number already exists", resp.Error)

	rr, _ = e.do(t, http.MethodPut, "/api/cards/"+card.ID+"/balance", e.admin, map[string]any{"balance": 250})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr, resp = e.do(t, http.MethodGet, "/api/cards/"+card.ID+"/balance", e.user, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	bal := decode[map[string]any](t, resp.Data)
	assert.Equal(t, float64(750), bal["available_limit"])

	rr, resp = e.do(t, http.MethodGet, "/api/sessions", e.admin, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]core.Session](t, resp.Data), 2)
}

func TestCORSPreflight(t *testing.T) {
	e := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/bills", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
}
