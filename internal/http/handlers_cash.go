package http

import (
	"net/http"

	"accounting/internal/core"
	"accounting/internal/services"
)

func cashFilter(r *http.Request) (services.CashFilter, error) {
	var (
		f   services.CashFilter
		err error
	)
	if f.StartDate, err = queryDate(r, "start_date"); err != nil {
		return f, err
	}
	if f.EndDate, err = queryDate(r, "end_date"); err != nil {
		return f, err
	}
	f.Type = queryParam(r, "transaction_type")
	if f.Type == "" {
		f.Type = queryParam(r, "type")
	}
	f.Category = queryParam(r, "category")
	f.Limit, err = queryInt(r, "limit", 0)
	return f, err
}

func (s *Server) handleListCash(w http.ResponseWriter, r *http.Request) {
	f, err := cashFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	txs, err := s.svc.Cash.List(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	listResponse(s, r, core.ResourceCashTransactions, txs).Write(w)
}

func (s *Server) handleCashStats(w http.ResponseWriter, r *http.Request) {
	f, err := cashFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := s.svc.Cash.Stats(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(st).Write(w)
}

func (s *Server) handleGetCash(w http.ResponseWriter, r *http.Request) {
	tx, err := s.svc.Cash.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(tx).Meta(s.meta(r, core.ResourceCashTransactions)).Write(w)
}

func (s *Server) handleCreateCash(w http.ResponseWriter, r *http.Request) {
	in, ok := s.writeInput(w, r, core.ResourceCashTransactions)
	if !ok {
		return
	}
	tx, err := s.svc.Cash.Create(r.Context(), in, principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	created(w, tx, "Cash transaction created successfully")
}

func (s *Server) handleUpdateCash(w http.ResponseWriter, r *http.Request) {
	in, ok := s.writeInput(w, r, core.ResourceCashTransactions)
	if !ok {
		return
	}
	tx, err := s.svc.Cash.Update(r.Context(), r.PathValue("id"), in, principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(tx).Message("Cash transaction updated successfully").Write(w)
}

func (s *Server) handleDeleteCash(w http.ResponseWriter, r *http.Request) {
	if !s.canDelete(w, r, core.ResourceCashTransactions) {
		return
	}
	msg, err := s.svc.Cash.Delete(r.Context(), r.PathValue("id"), principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	deleted(w, msg)
}

func (s *Server) handleLatestCashBalance(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Cash.LatestBalance(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(b).Write(w)
}

// handleRecordCashBalance stores a counted cash-on-hand figure. It is admin
// only and outside the per-field policy.
func (s *Server) handleRecordCashBalance(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.fail(w, r, err)
		return
	}
	b, err := s.svc.Cash.RecordBalance(r.Context(), p.Value("amount"), p.Get("notes"), principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	created(w, b, "Cash balance recorded successfully")
}
