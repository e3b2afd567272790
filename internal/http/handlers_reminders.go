package http

import (
	"net/http"

	"accounting/internal/core"
	"accounting/internal/services"
)

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	active, err := queryBool(r, "is_active")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	f := services.ReminderFilter{Type: queryParam(r, "type"), IsActive: active}
	if f.StartDate, err = queryDate(r, "start_date"); err != nil {
		s.fail(w, r, err)
		return
	}
	if f.EndDate, err = queryDate(r, "end_date"); err != nil {
		s.fail(w, r, err)
		return
	}
	reminders, err := s.svc.Reminders.List(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	listResponse(s, r, core.ResourceReminders, reminders).Write(w)
}

func (s *Server) handleUpcomingReminders(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 7)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	reminders, err := s.svc.Reminders.Upcoming(r.Context(), days)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	listResponse(s, r, core.ResourceReminders, reminders).Write(w)
}

func (s *Server) handleTodayReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := s.svc.Reminders.Today(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	listResponse(s, r, core.ResourceReminders, reminders).Write(w)
}

func (s *Server) handleGetReminder(w http.ResponseWriter, r *http.Request) {
	rem, err := s.svc.Reminders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(rem).Meta(s.meta(r, core.ResourceReminders)).Write(w)
}

func (s *Server) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	in, ok := s.writeInput(w, r, core.ResourceReminders)
	if !ok {
		return
	}
	rem, err := s.svc.Reminders.Create(r.Context(), in, principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	created(w, rem, "Reminder created successfully")
}

func (s *Server) handleUpdateReminder(w http.ResponseWriter, r *http.Request) {
	in, ok := s.writeInput(w, r, core.ResourceReminders)
	if !ok {
		return
	}
	rem, err := s.svc.Reminders.Update(r.Context(), r.PathValue("id"), in, principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(rem).Message("Reminder updated successfully").Write(w)
}

func (s *Server) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	if !s.canDelete(w, r, core.ResourceReminders) {
		return
	}
	msg, err := s.svc.Reminders.Delete(r.Context(), r.PathValue("id"), principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	deleted(w, msg)
}
