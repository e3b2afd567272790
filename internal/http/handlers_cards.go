package http

import (
	"net/http"

	"accounting/internal/core"
)

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.svc.Cards.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	listResponse(s, r, core.ResourceCards, cards).Write(w)
}

func (s *Server) handleActiveCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.svc.Cards.Active(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	listResponse(s, r, core.ResourceCards, cards).Write(w)
}

func (s *Server) handleCardStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Cards.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(st).Write(w)
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.Cards.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(c).Meta(s.meta(r, core.ResourceCards)).Write(w)
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	in, ok := s.writeInput(w, r, core.ResourceCards)
	if !ok {
		return
	}
	c, err := s.svc.Cards.Create(r.Context(), in, principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	created(w, c, "Card created successfully")
}

func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	in, ok := s.writeInput(w, r, core.ResourceCards)
	if !ok {
		return
	}
	c, err := s.svc.Cards.Update(r.Context(), r.PathValue("id"), in, principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(c).Message("Card updated successfully").Write(w)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	if !s.canDelete(w, r, core.ResourceCards) {
		return
	}
	msg, err := s.svc.Cards.Delete(r.Context(), r.PathValue("id"), principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	deleted(w, msg)
}

func (s *Server) handleDeactivateCard(w http.ResponseWriter, r *http.Request) {
	if !s.canDelete(w, r, core.ResourceCards) {
		return
	}
	c, err := s.svc.Cards.Deactivate(r.Context(), r.PathValue("id"), principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(c).Message("Card deactivated successfully").Write(w)
}

func (s *Server) handleCardBalance(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Cards.Balance(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(b).Write(w)
}

func (s *Server) handleSetCardBalance(w http.ResponseWriter, r *http.Request) {
	in, ok := s.writeInput(w, r, core.ResourceCards)
	if !ok {
		return
	}
	if !in.Has("balance") {
		s.fail(w, r, core.Invalid("balance", "is required"))
		return
	}
	c, err := s.svc.Cards.SetBalance(r.Context(), r.PathValue("id"), in["balance"], principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(c).Message("Card balance updated successfully").Write(w)
}
