package http

import (
	"net/http"

	"accounting/internal/core"
	"accounting/internal/services"
)

func (s *Server) handleListSalaries(w http.ResponseWriter, r *http.Request) {
	f := services.SalaryFilter{
		EmployeeID: queryParam(r, "employee_id"),
		Month:      queryParam(r, "month"),
		Status:     queryParam(r, "status"),
	}
	salaries, err := s.svc.Salaries.List(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	listResponse(s, r, core.ResourceSalaries, salaries).Write(w)
}

func (s *Server) handleSalariesByEmployee(w http.ResponseWriter, r *http.Request) {
	salaries, err := s.svc.Salaries.ByEmployee(r.Context(), r.PathValue("employeeId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	listResponse(s, r, core.ResourceSalaries, salaries).Write(w)
}

func (s *Server) handleSalaryStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Salaries.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(st).Write(w)
}

func (s *Server) handleGetSalary(w http.ResponseWriter, r *http.Request) {
	sal, err := s.svc.Salaries.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(sal).Meta(s.meta(r, core.ResourceSalaries)).Write(w)
}

func (s *Server) handleCreateSalary(w http.ResponseWriter, r *http.Request) {
	in, ok := s.writeInput(w, r, core.ResourceSalaries)
	if !ok {
		return
	}
	sal, err := s.svc.Salaries.Create(r.Context(), in, principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	created(w, sal, "Salary record created successfully")
}

func (s *Server) handleUpdateSalary(w http.ResponseWriter, r *http.Request) {
	in, ok := s.writeInput(w, r, core.ResourceSalaries)
	if !ok {
		return
	}
	sal, err := s.svc.Salaries.Update(r.Context(), r.PathValue("id"), in, principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(sal).Message("Salary record updated successfully").Write(w)
}

func (s *Server) handleMarkSalaryPaid(w http.ResponseWriter, r *http.Request) {
	sal, err := s.svc.Salaries.MarkPaid(r.Context(), r.PathValue("id"), principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(sal).Message("Salary marked as paid").Write(w)
}

func (s *Server) handleDeleteSalary(w http.ResponseWriter, r *http.Request) {
	if !s.canDelete(w, r, core.ResourceSalaries) {
		return
	}
	msg, err := s.svc.Salaries.Delete(r.Context(), r.PathValue("id"), principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	deleted(w, msg)
}
