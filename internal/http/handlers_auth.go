package http

import (
	"fmt"
	"net/http"

	"accounting/internal/auth"
	"accounting/internal/core"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.fail(w, r, err)
		return
	}
	email, password := p.Get("email"), p.Get("password")
	if email == "" || password == "" {
		s.fail(w, r, core.Invalid("", "Email and password are required"))
		return
	}

	res, err := s.auth.Login(r.Context(), email, password, auth.Client{
		IP:        s.detector.ExtractClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(res).Message("Login successful").Write(w)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	token := p.Get("refresh_token")
	if err := p.Parse(); err != nil {
		s.fail(w, r, err)
		return
	}
	if token == "" {
		s.fail(w, r, core.Invalid("refresh_token", "is required"))
		return
	}
	tokens, err := s.auth.Refresh(r.Context(), token)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(tokens).Write(w)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.auth.Register(r.Context(), auth.RegisterInput{
		Email:     p.Get("email"),
		Password:  p.Get("password"),
		FirstName: p.Get("first_name"),
		LastName:  p.Get("last_name"),
		Role:      core.Role(p.Get("role")),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	created(w, u, "User registered successfully")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), principal(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Message("Logged out successfully").Write(w)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.auth.Me(r.Context(), principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(u).Write(w)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.auth.ActiveSessions(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(nonNilSessions(sessions)).Write(w)
}

func (s *Server) handleUserSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.auth.UserSessions(r.Context(), principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(nonNilSessions(sessions)).Write(w)
}

func (s *Server) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.RevokeSession(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Message("Session revoked successfully").Write(w)
}

func (s *Server) handleRevokeAllSessions(w http.ResponseWriter, r *http.Request) {
	n, err := s.auth.RevokeAll(r.Context(), r.PathValue("userId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().
		Data(map[string]int{"revoked": n}).
		Message(fmt.Sprintf("%d session(s) revoked", n)).
		Write(w)
}

func nonNilSessions(s []core.Session) []core.Session {
	if s == nil {
		return []core.Session{}
	}
	return s
}
