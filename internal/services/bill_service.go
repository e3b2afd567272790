package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"accounting/internal/core"
	"accounting/internal/events"
	"accounting/internal/storage"
)

var billStatuses = []string{core.BillPending, core.BillApproved, core.BillPaid, core.BillRejected, core.BillOverdue}

type BillFilter struct {
	StartDate string
	EndDate   string
	Status    string
	CardID    string
	Limit     int
}

func (f BillFilter) filters() []storage.Filter {
	var out []storage.Filter
	if f.StartDate != "" {
		out = append(out, storage.Gte("bill_date", f.StartDate))
	}
	if f.EndDate != "" {
		out = append(out, storage.Lte("bill_date", f.EndDate))
	}
	if f.Status != "" {
		out = append(out, storage.Eq("status", f.Status))
	}
	if f.CardID != "" {
		out = append(out, storage.Eq("card_id", f.CardID))
	}
	return out
}

// BillStats summarises a filtered set of bills.
type BillStats struct {
	TotalBills    int             `json:"total_bills"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	AverageAmount decimal.Decimal `json:"average_amount"`
	PendingCount  int             `json:"pending_count"`
	ApprovedCount int             `json:"approved_count"`
	PaidCount     int             `json:"paid_count"`
	RejectedCount int             `json:"rejected_count"`
}

// BillService keeps the linked card balance in step with every bill write.
type BillService struct {
	base
}

// List returns bills matching f, newest first.
func (s *BillService) List(ctx context.Context, f BillFilter) ([]core.Bill, error) {
	rows, err := s.store.Select(ctx, core.ResourceBills.Table(), storage.Query{
		Filters: f.filters(),
		Order:   []storage.Order{storage.Desc("bill_date"), storage.Desc("created_at")},
		Limit:   f.Limit,
	})
	if err != nil {
		return nil, core.Store("list bills", err)
	}
	return mapRows(rows, toBill), nil
}

// Get returns one bill or a NotFoundError.
func (s *BillService) Get(ctx context.Context, id string) (core.Bill, error) {
	row, err := s.get(ctx, s.store, core.ResourceBills, "Bill", id)
	if err != nil {
		return core.Bill{}, err
	}
	return toBill(row), nil
}

type billFields struct {
	row    storage.Row
	amount decimal.Decimal
	cardID string
}

// validate checks a full bill record, as created or as merged for update.
func (s *BillService) validate(in Input) (billFields, error) {
	if err := required(in, "vendor"); err != nil {
		return billFields{}, err
	}
	amount, err := core.PositiveAmount("amount", in["amount"])
	if err != nil {
		return billFields{}, err
	}
	billDate, err := in.Date("bill_date", s.today())
	if err != nil {
		return billFields{}, err
	}
	dueDate, err := in.OptionalDate("due_date")
	if err != nil {
		return billFields{}, err
	}
	status := in.String("status")
	if status == "" {
		status = core.BillPending
	}
	if !core.OneOf(status, billStatuses...) {
		return billFields{}, core.Invalid("status", "must be one of pending, approved, paid, rejected, overdue")
	}
	cardID := in.String("card_id")
	return billFields{
		row: storage.Row{
			"vendor":          in.String("vendor"),
			"bill_number":     in.String("bill_number"),
			"amount":          amount,
			"bill_date":       billDate,
			"due_date":        dueDate,
			"description":     in.String("description"),
			"status":          status,
			"category_id":     in.String("category_id"),
			"card_id":         in.StringPtr("card_id"),
			"attachment_url":  in.String("attachment_url"),
			"attachment_type": in.String("attachment_type"),
		},
		amount: amount,
		cardID: cardID,
	}, nil
}

func (s *BillService) requireCard(ctx context.Context, st storage.Store, id string) error {
	n, err := st.Count(ctx, core.ResourceCards.Table(), storage.Eq("id", id))
	if err != nil {
		return core.Store("check card", err)
	}
	if n == 0 {
		return core.Invalid("card_id", "card not found")
	}
	return nil
}

// Create inserts the bill and charges the linked card in one transaction.
func (s *BillService) Create(ctx context.Context, in Input, actorID string) (core.Bill, error) {
	f, err := s.validate(in)
	if err != nil {
		return core.Bill{}, err
	}
	f.row["created_by"] = actorID

	var created storage.Row
	err = s.store.InTx(ctx, func(tx storage.Store) error {
		if f.cardID != "" {
			if err := s.requireCard(ctx, tx, f.cardID); err != nil {
				return err
			}
		}
		rows, err := tx.Insert(ctx, core.ResourceBills.Table(), f.row)
		if err != nil {
			return core.Store("insert bill", err)
		}
		created = rows[0]
		if f.cardID != "" {
			if err := tx.Adjust(ctx, core.ResourceCards.Table(), "balance", f.cardID, f.amount); err != nil {
				return core.Store("adjust card balance", err)
			}
		}
		return nil
	})
	if err != nil {
		return core.Bill{}, fmt.Errorf("create bill: %w", err)
	}

	bill := toBill(created)
	s.changed(ctx, core.ResourceBills, events.ActionCreate, bill.ID, actorID)
	if f.cardID != "" {
		s.changed(ctx, core.ResourceCards, events.ActionUpdate, f.cardID, actorID)
	}
	return bill, nil
}

// Update applies patch and moves the amount between cards when the amount or
// the card changed. The bill update and the balance moves share a transaction.
func (s *BillService) Update(ctx context.Context, id string, patch Input, actorID string) (core.Bill, error) {
	var (
		updated     storage.Row
		touchedCard []string
	)
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		current, err := s.get(ctx, tx, core.ResourceBills, "Bill", id)
		if err != nil {
			return err
		}
		old := toBill(current)

		f, err := s.validate(merge(current, patch))
		if err != nil {
			return err
		}
		oldCard := ""
		if old.CardID != nil {
			oldCard = *old.CardID
		}
		if f.cardID != "" && f.cardID != oldCard {
			if err := s.requireCard(ctx, tx, f.cardID); err != nil {
				return err
			}
		}

		rows, err := tx.Update(ctx, core.ResourceBills.Table(), f.row, storage.Eq("id", id))
		if err != nil {
			return core.Store("update bill", err)
		}
		if updated, err = first(rows, "Bill", id); err != nil {
			return err
		}

		cards := core.ResourceCards.Table()
		switch {
		case oldCard == f.cardID:
			if oldCard != "" && !old.Amount.Equal(f.amount) {
				if err := tx.Adjust(ctx, cards, "balance", oldCard, f.amount.Sub(old.Amount)); err != nil {
					return core.Store("adjust card balance", err)
				}
				touchedCard = append(touchedCard, oldCard)
			}
		default:
			if oldCard != "" {
				if err := tx.Adjust(ctx, cards, "balance", oldCard, old.Amount.Neg()); err != nil {
					return core.Store("adjust card balance", err)
				}
				touchedCard = append(touchedCard, oldCard)
			}
			if f.cardID != "" {
				if err := tx.Adjust(ctx, cards, "balance", f.cardID, f.amount); err != nil {
					return core.Store("adjust card balance", err)
				}
				touchedCard = append(touchedCard, f.cardID)
			}
		}
		return nil
	})
	if err != nil {
		return core.Bill{}, fmt.Errorf("update bill: %w", err)
	}

	s.changed(ctx, core.ResourceBills, events.ActionUpdate, id, actorID)
	for _, c := range touchedCard {
		s.changed(ctx, core.ResourceCards, events.ActionUpdate, c, actorID)
	}
	return toBill(updated), nil
}

// Delete refunds the linked card and removes the bill in one transaction.
func (s *BillService) Delete(ctx context.Context, id, actorID string) (string, error) {
	var cardID string
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		current, err := s.get(ctx, tx, core.ResourceBills, "Bill", id)
		if err != nil {
			return err
		}
		bill := toBill(current)
		if bill.CardID != nil {
			cardID = *bill.CardID
			if err := tx.Adjust(ctx, core.ResourceCards.Table(), "balance", cardID, bill.Amount.Neg()); err != nil {
				return core.Store("adjust card balance", err)
			}
		}
		if _, err := tx.Delete(ctx, core.ResourceBills.Table(), storage.Eq("id", id)); err != nil {
			return core.Store("delete bill", err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("delete bill: %w", err)
	}

	s.changed(ctx, core.ResourceBills, events.ActionDelete, id, actorID)
	if cardID != "" {
		s.changed(ctx, core.ResourceCards, events.ActionUpdate, cardID, actorID)
	}
	return "Bill deleted successfully", nil
}

// Stats aggregates count, total and status counts over f.
func (s *BillService) Stats(ctx context.Context, f BillFilter) (BillStats, error) {
	f.Limit = 0
	bills, err := s.List(ctx, f)
	if err != nil {
		return BillStats{}, err
	}
	return billStats(bills), nil
}

func billStats(bills []core.Bill) BillStats {
	st := BillStats{TotalBills: len(bills), TotalAmount: decimal.Zero, AverageAmount: decimal.Zero}
	for _, b := range bills {
		st.TotalAmount = st.TotalAmount.Add(b.Amount)
		switch b.Status {
		case core.BillPending:
			st.PendingCount++
		case core.BillApproved:
			st.ApprovedCount++
		case core.BillPaid:
			st.PaidCount++
		case core.BillRejected:
			st.RejectedCount++
		}
	}
	if st.TotalBills > 0 {
		st.AverageAmount = st.TotalAmount.Div(decimal.NewFromInt(int64(st.TotalBills))).Round(2)
	}
	return st
}
