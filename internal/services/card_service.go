package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"accounting/internal/core"
	"accounting/internal/events"
	"accounting/internal/storage"
)

// CardBalance is the spending view of one card.
type CardBalance struct {
	CardID            string          `json:"card_id"`
	CardNumber        string          `json:"card_number"`
	CardLimit         decimal.Decimal `json:"card_limit"`
	Balance           decimal.Decimal `json:"balance"`
	AvailableLimit    decimal.Decimal `json:"available_limit"`
	TotalTransactions int             `json:"total_transactions"`
	TotalSpent        decimal.Decimal `json:"total_spent"`
}

type CardStats struct {
	TotalCards     int             `json:"total_cards"`
	ActiveCards    int             `json:"active_cards"`
	TotalBalance   decimal.Decimal `json:"total_balance"`
	TotalLimit     decimal.Decimal `json:"total_limit"`
	TotalAvailable decimal.Decimal `json:"total_available"`
}

type CardService struct {
	base
}

func (s *CardService) list(ctx context.Context, filters ...storage.Filter) ([]core.Card, error) {
	rows, err := s.store.Select(ctx, core.ResourceCards.Table(), storage.Query{
		Filters: filters,
		Order:   []storage.Order{storage.Desc("is_active"), storage.Desc("created_at")},
	})
	if err != nil {
		return nil, core.Store("list cards", err)
	}
	return mapRows(rows, toCard), nil
}

// List returns every card, active ones first.
func (s *CardService) List(ctx context.Context) ([]core.Card, error) {
	return s.list(ctx)
}

// Active returns the active cards.
func (s *CardService) Active(ctx context.Context) ([]core.Card, error) {
	return s.list(ctx, storage.Eq("is_active", true))
}

// Get returns one card.
func (s *CardService) Get(ctx context.Context, id string) (core.Card, error) {
	row, err := s.get(ctx, s.store, core.ResourceCards, "Card", id)
	if err != nil {
		return core.Card{}, err
	}
	return toCard(row), nil
}

func (s *CardService) validate(in Input) (storage.Row, error) {
	if err := required(in, "card_number", "card_holder", "bank"); err != nil {
		return nil, err
	}
	cardType := in.String("card_type")
	if cardType == "" {
		cardType = core.CardCredit
	}
	if !core.OneOf(cardType, core.CardCredit, core.CardDebit) {
		return nil, core.Invalid("card_type", "must be credit or debit")
	}
	limit, err := in.Amount("card_limit", decimal.Zero)
	if err != nil {
		return nil, err
	}
	active, err := in.Bool("is_active", true)
	if err != nil {
		return nil, err
	}
	row := storage.Row{
		"card_number": in.String("card_number"),
		"card_holder": in.String("card_holder"),
		"card_type":   cardType,
		"bank":        in.String("bank"),
		"expiry_date": in.StringPtr("expiry_date"),
		"card_limit":  limit,
		"is_active":   active,
	}
	if in.Has("balance") {
		balance, err := core.ParseAmount(in["balance"])
		if err != nil {
			return nil, core.Invalid("balance", "must be a valid number")
		}
		row["balance"] = balance
	}
	return row, nil
}

func (s *CardService) numberTaken(ctx context.Context, st storage.Store, number, exceptID string) error {
	filters := []storage.Filter{storage.Eq("card_number", number)}
	if exceptID != "" {
		filters = append(filters, storage.Neq("id", exceptID))
	}
	n, err := st.Count(ctx, core.ResourceCards.Table(), filters...)
	if err != nil {
		return core.Store("check card number", err)
	}
	if n > 0 {
		return core.Conflict("Card number already exists")
	}
	return nil
}

// Create stores a card. Card numbers are unique.
func (s *CardService) Create(ctx context.Context, in Input, actorID string) (core.Card, error) {
	row, err := s.validate(in)
	if err != nil {
		return core.Card{}, err
	}
	if _, ok := row["balance"]; !ok {
		row["balance"] = decimal.Zero
	}

	var created storage.Row
	err = s.store.InTx(ctx, func(tx storage.Store) error {
		if err := s.numberTaken(ctx, tx, in.String("card_number"), ""); err != nil {
			return err
		}
		rows, err := tx.Insert(ctx, core.ResourceCards.Table(), row)
		if err != nil {
			return core.Store("insert card", err)
		}
		created = rows[0]
		return nil
	})
	if err != nil {
		return core.Card{}, fmt.Errorf("create card: %w", err)
	}
	card := toCard(created)
	s.changed(ctx, core.ResourceCards, events.ActionCreate, card.ID, actorID)
	return card, nil
}

// Update patches a card, keeping card numbers unique.
func (s *CardService) Update(ctx context.Context, id string, patch Input, actorID string) (core.Card, error) {
	var updated storage.Row
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		current, err := s.get(ctx, tx, core.ResourceCards, "Card", id)
		if err != nil {
			return err
		}
		merged := merge(current, patch)
		row, err := s.validate(merged)
		if err != nil {
			return err
		}
		if !patch.Has("balance") {
			delete(row, "balance")
		}
		if merged.String("card_number") != toCard(current).CardNumber {
			if err := s.numberTaken(ctx, tx, merged.String("card_number"), id); err != nil {
				return err
			}
		}
		rows, err := tx.Update(ctx, core.ResourceCards.Table(), row, storage.Eq("id", id))
		if err != nil {
			return core.Store("update card", err)
		}
		updated, err = first(rows, "Card", id)
		return err
	})
	if err != nil {
		return core.Card{}, fmt.Errorf("update card: %w", err)
	}
	s.changed(ctx, core.ResourceCards, events.ActionUpdate, id, actorID)
	return toCard(updated), nil
}

// Delete refuses cards that bills still reference.
func (s *CardService) Delete(ctx context.Context, id, actorID string) (string, error) {
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		if _, err := s.get(ctx, tx, core.ResourceCards, "Card", id); err != nil {
			return err
		}
		n, err := tx.Count(ctx, core.ResourceBills.Table(), storage.Eq("card_id", id))
		if err != nil {
			return core.Store("count card bills", err)
		}
		if n > 0 {
			return core.Conflict("Cannot delete card with associated bills. Deactivate instead.")
		}
		if _, err := tx.Delete(ctx, core.ResourceCards.Table(), storage.Eq("id", id)); err != nil {
			return core.Store("delete card", err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("delete card: %w", err)
	}
	s.changed(ctx, core.ResourceCards, events.ActionDelete, id, actorID)
	return "Card deleted successfully", nil
}

// Deactivate marks a card inactive.
func (s *CardService) Deactivate(ctx context.Context, id, actorID string) (core.Card, error) {
	return s.patch(ctx, id, storage.Row{"is_active": false}, actorID)
}

// SetBalance overwrites the stored balance.
func (s *CardService) SetBalance(ctx context.Context, id string, v any, actorID string) (core.Card, error) {
	balance, err := core.ParseAmount(v)
	if err != nil {
		return core.Card{}, core.Invalid("balance", "must be a valid number")
	}
	return s.patch(ctx, id, storage.Row{"balance": balance}, actorID)
}

func (s *CardService) patch(ctx context.Context, id string, row storage.Row, actorID string) (core.Card, error) {
	rows, err := s.store.Update(ctx, core.ResourceCards.Table(), row, storage.Eq("id", id))
	if err != nil {
		return core.Card{}, core.Store("update card", err)
	}
	updated, err := first(rows, "Card", id)
	if err != nil {
		return core.Card{}, err
	}
	s.changed(ctx, core.ResourceCards, events.ActionUpdate, id, actorID)
	return toCard(updated), nil
}

// Balance reports the card balance, available limit and bill totals.
func (s *CardService) Balance(ctx context.Context, id string) (CardBalance, error) {
	card, err := s.Get(ctx, id)
	if err != nil {
		return CardBalance{}, err
	}
	rows, err := s.store.Select(ctx, core.ResourceBills.Table(), storage.Query{
		Columns: []string{"amount"},
		Filters: []storage.Filter{storage.Eq("card_id", id)},
	})
	if err != nil {
		return CardBalance{}, core.Store("select card bills", err)
	}
	spent := decimal.Zero
	for _, r := range rows {
		spent = spent.Add(r.Decimal("amount"))
	}
	return CardBalance{
		CardID:            card.ID,
		CardNumber:        card.CardNumber,
		CardLimit:         card.CardLimit,
		Balance:           card.Balance,
		AvailableLimit:    card.CardLimit.Sub(card.Balance),
		TotalTransactions: len(rows),
		TotalSpent:        spent,
	}, nil
}

// Stats summarises card counts, limits and balances.
func (s *CardService) Stats(ctx context.Context) (CardStats, error) {
	cards, err := s.List(ctx)
	if err != nil {
		return CardStats{}, err
	}
	st := CardStats{TotalCards: len(cards), TotalBalance: decimal.Zero, TotalLimit: decimal.Zero}
	for _, c := range cards {
		if c.IsActive {
			st.ActiveCards++
		}
		st.TotalBalance = st.TotalBalance.Add(c.Balance)
		st.TotalLimit = st.TotalLimit.Add(c.CardLimit)
	}
	st.TotalAvailable = st.TotalLimit.Sub(st.TotalBalance)
	return st, nil
}
