package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"accounting/internal/auth"
	"accounting/internal/dashboard"
	"accounting/internal/export"
	"accounting/internal/log"
	"accounting/internal/middleware/ratelimit"
	"accounting/internal/middleware/security"
	"accounting/internal/middleware/trace"
	"accounting/internal/permissions"
	"accounting/internal/services"
)

// Pinger reports whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps is everything the handlers call into.
type Deps struct {
	Services  *services.Set
	Auth      *auth.Service
	Dashboard *dashboard.Aggregator
	Policy    *permissions.Policy
	// Exporter may be nil; the sheets export then answers 503.
	Exporter export.BillWriter
	DB       Pinger
	Logger   *log.Logger

	// Development exposes internal error details in 500 responses.
	Development        bool
	RateLimitPerMinute int
	AllowedOrigins     []string
	// TrustedProxies are CIDRs whose forwarding headers are believed.
	TrustedProxies []string
	Now            func() time.Time
}

type Server struct {
	http.Server

	svc       *services.Set
	auth      *auth.Service
	dash      *dashboard.Aggregator
	policy    *permissions.Policy
	exporter  export.BillWriter
	db        Pinger
	logger    *log.Logger
	dev       bool
	now       func() time.Time
	startedAt time.Time

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

func NewServer(addr string, d Deps) *Server {
	if d.Logger == nil {
		d.Logger = log.Discard()
	}
	if d.Policy == nil {
		d.Policy = permissions.DefaultPolicy()
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	logger := d.Logger.WithComponent(log.ComponentHTTP)
	s := &Server{
		svc:       d.Services,
		auth:      d.Auth,
		dash:      d.Dashboard,
		policy:    d.Policy,
		exporter:  d.Exporter,
		db:        d.DB,
		logger:    logger,
		dev:       d.Development,
		now:       d.Now,
		startedAt: d.Now(),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: d.RateLimitPerMinute}),
		detector:  security.NewDetector(d.Logger),
	}
	for _, cidr := range d.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", "error", err)
		}
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	s.routes(mux)

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError().Write(w)
	})(mux)

	var handler http.Handler = limited
	handler = security.CORS(security.DefaultCORSConfig(d.AllowedOrigins...))(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)
	handler = s.detector.Middleware(func(w http.ResponseWriter, r *http.Request) {
		BadRequestError("Bad request").Write(w)
	})(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// authed wraps h with bearer authentication.
func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return s.auth.Authenticate(h)
}

// admin wraps h with authentication and the admin role check.
func (s *Server) admin(h http.HandlerFunc) http.Handler {
	return s.auth.Authenticate(auth.RequireAdmin(h))
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)

	// auth
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/refresh", s.handleRefresh)
	mux.Handle("POST /api/auth/register", s.admin(s.handleRegister))
	mux.Handle("POST /api/auth/logout", s.authed(s.handleLogout))
	mux.Handle("GET /api/auth/me", s.authed(s.handleMe))

	// sessions
	mux.Handle("GET /api/sessions", s.admin(s.handleListSessions))
	mux.Handle("GET /api/sessions/user", s.authed(s.handleUserSessions))
	mux.Handle("DELETE /api/sessions/{id}", s.admin(s.handleRevokeSession))
	mux.Handle("DELETE /api/sessions/user/{userId}/all", s.admin(s.handleRevokeAllSessions))

	// bills
	mux.Handle("GET /api/bills", s.authed(s.handleListBills))
	mux.Handle("POST /api/bills", s.authed(s.handleCreateBill))
	mux.Handle("GET /api/bills/stats/summary", s.authed(s.handleBillStats))
	mux.Handle("GET /api/bills/export/pdf", s.authed(s.handleBillsPDF))
	mux.Handle("POST /api/bills/export/sheets", s.admin(s.handleBillsSheets))
	mux.Handle("GET /api/bills/{id}", s.authed(s.handleGetBill))
	mux.Handle("PUT /api/bills/{id}", s.authed(s.handleUpdateBill))
	mux.Handle("DELETE /api/bills/{id}", s.authed(s.handleDeleteBill))

	// cards
	mux.Handle("GET /api/cards", s.authed(s.handleListCards))
	mux.Handle("GET /api/cards/active", s.authed(s.handleActiveCards))
	mux.Handle("GET /api/cards/stats/summary", s.authed(s.handleCardStats))
	mux.Handle("GET /api/cards/{id}", s.authed(s.handleGetCard))
	mux.Handle("POST /api/cards", s.admin(s.handleCreateCard))
	mux.Handle("PUT /api/cards/{id}", s.admin(s.handleUpdateCard))
	mux.Handle("DELETE /api/cards/{id}", s.admin(s.handleDeleteCard))
	mux.Handle("PUT /api/cards/{id}/deactivate", s.admin(s.handleDeactivateCard))
	mux.Handle("GET /api/cards/{id}/balance", s.authed(s.handleCardBalance))
	mux.Handle("PUT /api/cards/{id}/balance", s.admin(s.handleSetCardBalance))

	// cash transactions
	mux.Handle("GET /api/cash-transactions", s.authed(s.handleListCash))
	mux.Handle("POST /api/cash-transactions", s.authed(s.handleCreateCash))
	mux.Handle("GET /api/cash-transactions/stats/summary", s.authed(s.handleCashStats))
	mux.Handle("GET /api/cash-transactions/balance/latest", s.authed(s.handleLatestCashBalance))
	mux.Handle("POST /api/cash-transactions/balance", s.admin(s.handleRecordCashBalance))
	mux.Handle("GET /api/cash-transactions/{id}", s.authed(s.handleGetCash))
	mux.Handle("PUT /api/cash-transactions/{id}", s.authed(s.handleUpdateCash))
	mux.Handle("DELETE /api/cash-transactions/{id}", s.authed(s.handleDeleteCash))

	// salaries
	mux.Handle("GET /api/salary", s.authed(s.handleListSalaries))
	mux.Handle("POST /api/salary", s.admin(s.handleCreateSalary))
	mux.Handle("GET /api/salary/stats/summary", s.authed(s.handleSalaryStats))
	mux.Handle("GET /api/salary/employee/{employeeId}", s.authed(s.handleSalariesByEmployee))
	mux.Handle("GET /api/salary/{id}", s.authed(s.handleGetSalary))
	mux.Handle("PUT /api/salary/{id}", s.admin(s.handleUpdateSalary))
	mux.Handle("DELETE /api/salary/{id}", s.admin(s.handleDeleteSalary))
	mux.Handle("PUT /api/salary/{id}/mark-paid", s.admin(s.handleMarkSalaryPaid))

	// petty expenses
	mux.Handle("GET /api/petty-expenses", s.authed(s.handleListPetty))
	mux.Handle("POST /api/petty-expenses", s.authed(s.handleCreatePetty))
	mux.Handle("GET /api/petty-expenses/summary/monthly", s.authed(s.handlePettyMonthly))
	mux.Handle("GET /api/petty-expenses/stats/summary", s.authed(s.handlePettyStats))
	mux.Handle("GET /api/petty-expenses/{id}", s.authed(s.handleGetPetty))
	mux.Handle("PUT /api/petty-expenses/{id}", s.authed(s.handleUpdatePetty))
	mux.Handle("DELETE /api/petty-expenses/{id}", s.authed(s.handleDeletePetty))

	// budgets
	mux.Handle("GET /api/budgets", s.authed(s.handleListBudgets))
	mux.Handle("POST /api/budgets", s.admin(s.handleCreateBudget))
	mux.Handle("GET /api/budgets/alerts/current", s.authed(s.handleBudgetAlerts))
	mux.Handle("GET /api/budgets/stats/summary", s.authed(s.handleBudgetStats))
	mux.Handle("GET /api/budgets/{id}", s.authed(s.handleGetBudget))
	mux.Handle("PUT /api/budgets/{id}", s.admin(s.handleUpdateBudget))
	mux.Handle("DELETE /api/budgets/{id}", s.admin(s.handleDeleteBudget))
	mux.Handle("PUT /api/budgets/{id}/spent", s.admin(s.handleUpdateBudgetSpent))

	// reminders
	mux.Handle("GET /api/reminders", s.authed(s.handleListReminders))
	mux.Handle("POST /api/reminders", s.admin(s.handleCreateReminder))
	mux.Handle("GET /api/reminders/upcoming/today", s.authed(s.handleUpcomingReminders))
	mux.Handle("GET /api/reminders/today", s.authed(s.handleTodayReminders))
	mux.Handle("GET /api/reminders/{id}", s.authed(s.handleGetReminder))
	mux.Handle("PUT /api/reminders/{id}", s.admin(s.handleUpdateReminder))
	mux.Handle("DELETE /api/reminders/{id}", s.admin(s.handleDeleteReminder))

	// employees
	mux.Handle("GET /api/employees", s.authed(s.handleListEmployees))
	mux.Handle("POST /api/employees", s.authed(s.handleCreateEmployee))
	mux.Handle("GET /api/employees/stats/summary", s.authed(s.handleEmployeeStats))
	mux.Handle("GET /api/employees/{id}", s.authed(s.handleGetEmployee))
	mux.Handle("PUT /api/employees/{id}", s.authed(s.handleUpdateEmployee))
	mux.Handle("DELETE /api/employees/{id}", s.authed(s.handleDeleteEmployee))

	// dashboard
	mux.Handle("GET /api/dashboard", s.authed(s.handleDashboardSummary))
	mux.Handle("GET /api/dashboard/summary", s.authed(s.handleDashboardSummary))
	mux.Handle("GET /api/dashboard/kpis/summary", s.authed(s.handleDashboardKPIs))
	mux.Handle("GET /api/dashboard/charts/expenses", s.authed(s.handleDashboardExpenses))
	mux.Handle("GET /api/dashboard/charts/budget-status", s.authed(s.handleDashboardBudgetStatus))
	mux.Handle("GET /api/dashboard/charts/monthly-trend", s.authed(s.handleDashboardTrend))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if allowed := allowedMethods(mux, r); len(allowed) > 0 {
			ErrorResponse(http.StatusMethodNotAllowed, "Method not allowed").
				Header("Allow", strings.Join(allowed, ", ")).
				Write(w)
			return
		}
		NotFoundError("Route not found").Write(w)
	})
}

var routeMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}

// allowedMethods lists the methods registered for r's path. The catch-all
// pattern does not count.
func allowedMethods(mux *http.ServeMux, r *http.Request) []string {
	var allowed []string
	for _, m := range routeMethods {
		alt := r.Clone(r.Context())
		alt.Method = m
		if _, pattern := mux.Handler(alt); pattern != "" && pattern != "/" {
			allowed = append(allowed, m)
		}
	}
	return allowed
}

// Shutdown stops the listener and the rate limiter sweep.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	})
	return err
}

type healthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	NewResponse().Data(healthStatus{
		Status:    "ok",
		Timestamp: now,
		Uptime:    now.Sub(s.startedAt).Round(time.Second).String(),
	}).Write(w)
}

// handleReady answers 503 until the database responds.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
			ServiceUnavailableError("Database unavailable").Write(w)
			return
		}
	}
	NewResponse().Data(healthStatus{Status: "ready", Timestamp: s.now()}).Write(w)
}
