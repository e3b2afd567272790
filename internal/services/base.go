// Package services implements the per-entity business rules on top of the
// generic record store. Every successful mutation runs the registered change
// hooks and then publishes an entity change event.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"accounting/internal/core"
	"accounting/internal/events"
	"accounting/internal/log"
	"accounting/internal/storage"
)

// Deps are the collaborators shared by every service.
type Deps struct {
	Store  storage.Store
	Events events.Publisher
	Logger *log.Logger
	Now    func() time.Time
}

// ChangeHook runs after a committed mutation of resource.
type ChangeHook func(ctx context.Context, resource core.Resource)

type hooks struct {
	mu  sync.RWMutex
	fns []ChangeHook
}

func (h *hooks) add(fn ChangeHook) {
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

func (h *hooks) run(ctx context.Context, resource core.Resource) {
	h.mu.RLock()
	fns := append([]ChangeHook(nil), h.fns...)
	h.mu.RUnlock()
	for _, fn := range fns {
		fn(ctx, resource)
	}
}

type base struct {
	store    storage.Store
	events   events.Publisher
	logger   *log.Logger
	structed *log.StructuredLogger
	now      func() time.Time
	hooks    *hooks
}

func newBase(d Deps, h *hooks) base {
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Logger == nil {
		d.Logger = log.Discard()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if h == nil {
		h = &hooks{}
	}
	logger := d.Logger.WithComponent(log.ComponentService)
	return base{
		store:    d.Store,
		events:   d.Events,
		logger:   logger,
		structed: log.NewStructuredLogger(logger),
		now:      d.Now,
		hooks:    h,
	}
}

func (b base) today() string {
	return core.Today(b.now())
}

// changed runs the hooks and publishes the change. A publish failure is logged
// only; the write is already committed.
func (b base) changed(ctx context.Context, resource core.Resource, action, id, actorID string) {
	b.hooks.run(ctx, resource)
	b.structed.LogEntityChanged(ctx, resource.String(), action, id, actorID)
	if err := b.events.EntityChanged(ctx, resource.String(), action, id, actorID); err != nil {
		b.logger.WarnContext(ctx, "Failed to publish entity change",
			log.NewFields().WithEntity(resource.String(), id).WithOperation(action).WithError(err).ToSlice()...)
	}
}

// get loads one row and maps storage.ErrNotFound to a NotFoundError.
func (b base) get(ctx context.Context, st storage.Store, res core.Resource, label, id string) (storage.Row, error) {
	row, err := st.Get(ctx, res.Table(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, core.NotFound(label, id)
	}
	if err != nil {
		return nil, core.Store(fmt.Sprintf("get %s", res), err)
	}
	return row, nil
}

func first(rows []storage.Row, label, id string) (storage.Row, error) {
	if len(rows) == 0 {
		return nil, core.NotFound(label, id)
	}
	return rows[0], nil
}

// Set groups every entity service built over the same dependencies.
type Set struct {
	Bills     *BillService
	Cards     *CardService
	Cash      *CashService
	Salaries  *SalaryService
	Petty     *PettyService
	Budgets   *BudgetService
	Reminders *ReminderService
	Employees *EmployeeService

	hooks *hooks
}

// NewSet builds every service over the same store, publisher and hooks.
func NewSet(d Deps) *Set {
	h := &hooks{}
	return &Set{
		Bills:     &BillService{base: newBase(d, h)},
		Cards:     &CardService{base: newBase(d, h)},
		Cash:      &CashService{base: newBase(d, h)},
		Salaries:  &SalaryService{base: newBase(d, h)},
		Petty:     &PettyService{base: newBase(d, h)},
		Budgets:   &BudgetService{base: newBase(d, h)},
		Reminders: &ReminderService{base: newBase(d, h)},
		Employees: &EmployeeService{base: newBase(d, h)},
		hooks:     h,
	}
}

// OnChange registers fn to run after every committed mutation.
func (s *Set) OnChange(fn ChangeHook) {
	s.hooks.add(fn)
}
