package http

import (
	"net/http"

	"accounting/internal/core"
	"accounting/internal/services"
)

func pettyFilter(r *http.Request) (services.PettyFilter, error) {
	var (
		f   services.PettyFilter
		err error
	)
	if f.StartDate, err = queryDate(r, "start_date"); err != nil {
		return f, err
	}
	if f.EndDate, err = queryDate(r, "end_date"); err != nil {
		return f, err
	}
	f.Category = queryParam(r, "category")
	f.UserID = queryParam(r, "user_id")
	return f, nil
}

func actor(r *http.Request) services.Actor {
	p := principal(r)
	return services.Actor{ID: p.UserID, Role: p.Role}
}

func (s *Server) handleListPetty(w http.ResponseWriter, r *http.Request) {
	f, err := pettyFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	expenses, err := s.svc.Petty.List(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	listResponse(s, r, core.ResourcePettyExpenses, expenses).Write(w)
}

func (s *Server) handlePettyStats(w http.ResponseWriter, r *http.Request) {
	f, err := pettyFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := s.svc.Petty.Stats(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(st).Write(w)
}

// handlePettyMonthly defaults to the current month.
func (s *Server) handlePettyMonthly(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	year, err := queryInt(r, "year", now.Year())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	month, err := queryInt(r, "month", int(now.Month()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sum, err := s.svc.Petty.MonthlySummary(r.Context(), year, month)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(sum).Write(w)
}

func (s *Server) handleGetPetty(w http.ResponseWriter, r *http.Request) {
	e, err := s.svc.Petty.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(e).Meta(s.meta(r, core.ResourcePettyExpenses)).Write(w)
}

func (s *Server) handleCreatePetty(w http.ResponseWriter, r *http.Request) {
	in, ok := s.writeInput(w, r, core.ResourcePettyExpenses)
	if !ok {
		return
	}
	e, err := s.svc.Petty.Create(r.Context(), in, principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	created(w, e, "Petty expense created successfully")
}

func (s *Server) handleUpdatePetty(w http.ResponseWriter, r *http.Request) {
	in, ok := s.writeInput(w, r, core.ResourcePettyExpenses)
	if !ok {
		return
	}
	e, err := s.svc.Petty.Update(r.Context(), r.PathValue("id"), in, actor(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(e).Message("Petty expense updated successfully").Write(w)
}

func (s *Server) handleDeletePetty(w http.ResponseWriter, r *http.Request) {
	if !s.canDelete(w, r, core.ResourcePettyExpenses) {
		return
	}
	msg, err := s.svc.Petty.Delete(r.Context(), r.PathValue("id"), actor(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	deleted(w, msg)
}
