package http

import (
	"net/http"

	"accounting/internal/dashboard"
)

func dashboardRequest(r *http.Request) (dashboard.Request, error) {
	limit, err := queryInt(r, "limit", dashboard.DefaultRecentLimit)
	if err != nil {
		return dashboard.Request{}, err
	}
	return dashboard.Request{
		Period:    queryParam(r, "period"),
		StartDate: queryParam(r, "start_date"),
		EndDate:   queryParam(r, "end_date"),
		Role:      principal(r).Role,
		Limit:     limit,
	}, nil
}

func (s *Server) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	req, err := dashboardRequest(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sum, err := s.dash.Summary(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(sum).Write(w)
}

func (s *Server) handleDashboardKPIs(w http.ResponseWriter, r *http.Request) {
	req, err := dashboardRequest(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	k, err := s.dash.KPIs(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(k).Write(w)
}

func (s *Server) handleDashboardExpenses(w http.ResponseWriter, r *http.Request) {
	req, err := dashboardRequest(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	points, err := s.dash.ExpensesByCategory(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(points).Write(w)
}

func (s *Server) handleDashboardBudgetStatus(w http.ResponseWriter, r *http.Request) {
	req, err := dashboardRequest(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := s.dash.BudgetStatus(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(st).Write(w)
}

func (s *Server) handleDashboardTrend(w http.ResponseWriter, r *http.Request) {
	req, err := dashboardRequest(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	points, err := s.dash.MonthlyTrend(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(points).Write(w)
}
