package http

import (
	"net/http"

	"accounting/internal/core"
	"accounting/internal/services"
)

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	active, err := queryBool(r, "is_active")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	budgets, err := s.svc.Budgets.List(r.Context(), services.BudgetFilter{
		Period:   queryParam(r, "period"),
		Month:    queryParam(r, "month"),
		IsActive: active,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	listResponse(s, r, core.ResourceBudgets, budgets).Write(w)
}

func (s *Server) handleBudgetAlerts(w http.ResponseWriter, r *http.Request) {
	threshold, err := queryFloat(r, "threshold", 0.8)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	alerts, err := s.svc.Budgets.Alerts(r.Context(), threshold)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if alerts == nil {
		alerts = []services.BudgetAlert{}
	}
	NewResponse().Data(alerts).Write(w)
}

func (s *Server) handleBudgetStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Budgets.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(st).Write(w)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Budgets.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(b).Meta(s.meta(r, core.ResourceBudgets)).Write(w)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	in, ok := s.writeInput(w, r, core.ResourceBudgets)
	if !ok {
		return
	}
	b, err := s.svc.Budgets.Create(r.Context(), in, principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	created(w, b, "Budget created successfully")
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	in, ok := s.writeInput(w, r, core.ResourceBudgets)
	if !ok {
		return
	}
	b, err := s.svc.Budgets.Update(r.Context(), r.PathValue("id"), in, principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(b).Message("Budget updated successfully").Write(w)
}

func (s *Server) handleUpdateBudgetSpent(w http.ResponseWriter, r *http.Request) {
	in, ok := s.writeInput(w, r, core.ResourceBudgets)
	if !ok {
		return
	}
	if !in.Has("spent") {
		s.fail(w, r, core.Invalid("spent", "is required"))
		return
	}
	b, err := s.svc.Budgets.UpdateSpent(r.Context(), r.PathValue("id"), in["spent"], principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(b).Message("Budget spent updated successfully").Write(w)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if !s.canDelete(w, r, core.ResourceBudgets) {
		return
	}
	msg, err := s.svc.Budgets.Delete(r.Context(), r.PathValue("id"), principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	deleted(w, msg)
}
