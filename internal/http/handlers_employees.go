package http

import (
	"net/http"

	"accounting/internal/core"
	"accounting/internal/services"
)

func (s *Server) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	active, err := queryBool(r, "is_active")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	employees, err := s.svc.Employees.List(r.Context(), services.EmployeeFilter{
		IsActive:     active,
		DepartmentID: queryParam(r, "department_id"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	listResponse(s, r, core.ResourceEmployees, employees).Write(w)
}

func (s *Server) handleEmployeeStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Employees.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(st).Write(w)
}

func (s *Server) handleGetEmployee(w http.ResponseWriter, r *http.Request) {
	e, err := s.svc.Employees.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(e).Meta(s.meta(r, core.ResourceEmployees)).Write(w)
}

func (s *Server) handleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	in, ok := s.writeInput(w, r, core.ResourceEmployees)
	if !ok {
		return
	}
	e, err := s.svc.Employees.Create(r.Context(), in, principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	created(w, e, "Employee created successfully")
}

func (s *Server) handleUpdateEmployee(w http.ResponseWriter, r *http.Request) {
	in, ok := s.writeInput(w, r, core.ResourceEmployees)
	if !ok {
		return
	}
	e, err := s.svc.Employees.Update(r.Context(), r.PathValue("id"), in, principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(e).Message("Employee updated successfully").Write(w)
}

func (s *Server) handleDeleteEmployee(w http.ResponseWriter, r *http.Request) {
	if !s.canDelete(w, r, core.ResourceEmployees) {
		return
	}
	msg, err := s.svc.Employees.Delete(r.Context(), r.PathValue("id"), principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	deleted(w, msg)
}
