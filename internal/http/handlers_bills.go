package http

import (
	"fmt"
	"net/http"

	"accounting/internal/core"
	"accounting/internal/export"
	"accounting/internal/log"
	"accounting/internal/services"
)

func billFilter(r *http.Request) (services.BillFilter, error) {
	var (
		f   services.BillFilter
		err error
	)
	if f.StartDate, err = queryDate(r, "start_date"); err != nil {
		return f, err
	}
	if f.EndDate, err = queryDate(r, "end_date"); err != nil {
		return f, err
	}
	f.Status = queryParam(r, "status")
	f.CardID = queryParam(r, "card_id")
	f.Limit, err = queryInt(r, "limit", 0)
	return f, err
}

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	f, err := billFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	bills, err := s.svc.Bills.List(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	stats, err := s.svc.Bills.Stats(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	listResponse(s, r, core.ResourceBills, bills).Stats(stats).Write(w)
}

func (s *Server) handleBillStats(w http.ResponseWriter, r *http.Request) {
	f, err := billFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	stats, err := s.svc.Bills.Stats(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(stats).Write(w)
}

func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Bills.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(b).Meta(s.meta(r, core.ResourceBills)).Write(w)
}

func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	in, ok := s.writeInput(w, r, core.ResourceBills)
	if !ok {
		return
	}
	b, err := s.svc.Bills.Create(r.Context(), in, principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	created(w, b, "Bill created successfully")
}

func (s *Server) handleUpdateBill(w http.ResponseWriter, r *http.Request) {
	in, ok := s.writeInput(w, r, core.ResourceBills)
	if !ok {
		return
	}
	b, err := s.svc.Bills.Update(r.Context(), r.PathValue("id"), in, principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Data(b).Message("Bill updated successfully").Write(w)
}

func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	if !s.canDelete(w, r, core.ResourceBills) {
		return
	}
	msg, err := s.svc.Bills.Delete(r.Context(), r.PathValue("id"), principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	deleted(w, msg)
}

func (s *Server) handleBillsPDF(w http.ResponseWriter, r *http.Request) {
	f, err := billFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	bills, err := s.svc.Bills.List(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	now := s.now()
	doc, err := export.BillsPDF(export.Register{
		StartDate:   f.StartDate,
		EndDate:     f.EndDate,
		Status:      f.Status,
		Bills:       bills,
		GeneratedAt: now,
	})
	if err != nil {
		s.fail(w, r, fmt.Errorf("render bill register: %w", err))
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Bill register exported",
		log.FieldOperation, log.OpExport, log.FieldCount, len(bills), "format", "pdf")

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="bills-%s.pdf"`, now.Format("20060102")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func (s *Server) handleBillsSheets(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		ServiceUnavailableError("Google Sheets export is not configured").Write(w)
		return
	}
	f, err := billFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	bills, err := s.svc.Bills.List(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if len(bills) == 0 {
		NewResponse().Data(map[string]any{"exported": 0}).Message("No bills to export").Write(w)
		return
	}

	ref, err := s.exporter.AppendBills(r.Context(), bills)
	if err != nil {
		s.fail(w, r, fmt.Errorf("export bills to sheet: %w", err))
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Bills exported to sheet",
		log.FieldOperation, log.OpExport, log.FieldCount, len(bills), "range", ref)

	NewResponse().
		Data(map[string]any{"exported": len(bills), "range": ref}).
		Message(fmt.Sprintf("%d bill(s) exported", len(bills))).
		Write(w)
}
