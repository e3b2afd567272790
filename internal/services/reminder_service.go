package services

import (
	"context"
	"fmt"
	"regexp"

	"accounting/internal/core"
	"accounting/internal/events"
	"accounting/internal/storage"
)

// DefaultUpcomingDays is the window of Upcoming when none is given.
const DefaultUpcomingDays = 7

var reminderTimeRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)

type ReminderFilter struct {
	Type      string
	IsActive  *bool
	StartDate string
	EndDate   string
}

func (f ReminderFilter) filters() []storage.Filter {
	var out []storage.Filter
	if f.Type != "" {
		out = append(out, storage.Eq("type", f.Type))
	}
	if f.IsActive != nil {
		out = append(out, storage.Eq("is_active", *f.IsActive))
	}
	if f.StartDate != "" {
		out = append(out, storage.Gte("reminder_date", f.StartDate))
	}
	if f.EndDate != "" {
		out = append(out, storage.Lte("reminder_date", f.EndDate))
	}
	return out
}

type ReminderService struct {
	base
}

func (s *ReminderService) list(ctx context.Context, filters []storage.Filter, order ...storage.Order) ([]core.Reminder, error) {
	rows, err := s.store.Select(ctx, core.ResourceReminders.Table(), storage.Query{
		Filters: filters,
		Order:   order,
	})
	if err != nil {
		return nil, core.Store("list reminders", err)
	}
	return mapRows(rows, toReminder), nil
}

// List returns reminders matching f, soonest first.
func (s *ReminderService) List(ctx context.Context, f ReminderFilter) ([]core.Reminder, error) {
	return s.list(ctx, f.filters(), storage.Asc("reminder_date"), storage.Asc("reminder_time"))
}

// Get returns one reminder.
func (s *ReminderService) Get(ctx context.Context, id string) (core.Reminder, error) {
	row, err := s.get(ctx, s.store, core.ResourceReminders, "Reminder", id)
	if err != nil {
		return core.Reminder{}, err
	}
	return toReminder(row), nil
}

func (s *ReminderService) validate(in Input) (storage.Row, error) {
	if err := required(in, "title"); err != nil {
		return nil, err
	}
	if in.String("reminder_date") == "" {
		return nil, core.Invalid("reminder_date", "is required")
	}
	date, err := core.ParseDate("reminder_date", in["reminder_date"])
	if err != nil {
		return nil, err
	}
	rtime := in.String("reminder_time")
	if rtime != "" && !reminderTimeRe.MatchString(rtime) {
		return nil, core.Invalid("reminder_time", "must be a time (HH:MM)")
	}
	methods, err := in.Strings("notification_methods")
	if err != nil {
		return nil, err
	}
	if len(methods) == 0 {
		methods = []string{"email"}
	}
	recipients, err := in.Strings("recipients")
	if err != nil {
		return nil, err
	}
	if recipients == nil {
		recipients = []string{}
	}
	active, err := in.Bool("is_active", true)
	if err != nil {
		return nil, err
	}
	return storage.Row{
		"title":                in.String("title"),
		"description":          in.String("description"),
		"reminder_date":        date,
		"reminder_time":        rtime,
		"type":                 in.String("type"),
		"related_id":           in.String("related_id"),
		"notification_methods": methods,
		"recipients":           recipients,
		"is_active":            active,
	}, nil
}

// Create stores an active reminder.
func (s *ReminderService) Create(ctx context.Context, in Input, actorID string) (core.Reminder, error) {
	in = merge(nil, in)
	in["is_active"] = true
	row, err := s.validate(in)
	if err != nil {
		return core.Reminder{}, err
	}
	row["is_sent"] = false
	row["created_by"] = actorID
	rows, err := s.store.Insert(ctx, core.ResourceReminders.Table(), row)
	if err != nil {
		return core.Reminder{}, fmt.Errorf("create reminder: %w", core.Store("insert reminder", err))
	}
	r := toReminder(rows[0])
	s.changed(ctx, core.ResourceReminders, events.ActionCreate, r.ID, actorID)
	return r, nil
}

// Update revalidates the merged reminder. Moving the date re-arms a sent
// reminder.
func (s *ReminderService) Update(ctx context.Context, id string, patch Input, actorID string) (core.Reminder, error) {
	current, err := s.get(ctx, s.store, core.ResourceReminders, "Reminder", id)
	if err != nil {
		return core.Reminder{}, err
	}
	merged := merge(current, patch)
	merged["notification_methods"] = mergedList(current, patch, "notification_methods")
	merged["recipients"] = mergedList(current, patch, "recipients")
	row, err := s.validate(merged)
	if err != nil {
		return core.Reminder{}, err
	}
	if row["reminder_date"] != current.Date("reminder_date") || row["reminder_time"] != current.String("reminder_time") {
		row["is_sent"] = false
	}
	return s.write(ctx, id, row, actorID)
}

// mergedList prefers the patch value and otherwise decodes the stored JSON
// text.
func mergedList(current storage.Row, patch Input, key string) any {
	if patch.Has(key) {
		return patch[key]
	}
	return current.Strings(key)
}

func (s *ReminderService) write(ctx context.Context, id string, row storage.Row, actorID string) (core.Reminder, error) {
	rows, err := s.store.Update(ctx, core.ResourceReminders.Table(), row, storage.Eq("id", id))
	if err != nil {
		return core.Reminder{}, core.Store("update reminder", err)
	}
	updated, err := first(rows, "Reminder", id)
	if err != nil {
		return core.Reminder{}, err
	}
	s.changed(ctx, core.ResourceReminders, events.ActionUpdate, id, actorID)
	return toReminder(updated), nil
}

// Delete removes a reminder.
func (s *ReminderService) Delete(ctx context.Context, id, actorID string) (string, error) {
	rows, err := s.store.Delete(ctx, core.ResourceReminders.Table(), storage.Eq("id", id))
	if err != nil {
		return "", core.Store("delete reminder", err)
	}
	if _, err := first(rows, "Reminder", id); err != nil {
		return "", err
	}
	s.changed(ctx, core.ResourceReminders, events.ActionDelete, id, actorID)
	return "Reminder deleted successfully", nil
}

// Upcoming returns active reminders dated from today through today+days.
func (s *ReminderService) Upcoming(ctx context.Context, days int) ([]core.Reminder, error) {
	if days <= 0 {
		days = DefaultUpcomingDays
	}
	now := s.now()
	return s.List(ctx, ReminderFilter{
		IsActive:  boolPtr(true),
		StartDate: core.Today(now),
		EndDate:   core.Today(now.AddDate(0, 0, days)),
	})
}

// Today returns the active reminders dated today that have not been sent.
func (s *ReminderService) Today(ctx context.Context) ([]core.Reminder, error) {
	return s.list(ctx, []storage.Filter{
		storage.Eq("is_active", true),
		storage.Eq("is_sent", false),
		storage.Eq("reminder_date", s.today()),
	}, storage.Asc("reminder_time"))
}

// MarkSent flags a reminder as delivered.
func (s *ReminderService) MarkSent(ctx context.Context, id, actorID string) (core.Reminder, error) {
	return s.write(ctx, id, storage.Row{"is_sent": true}, actorID)
}

func boolPtr(b bool) *bool { return &b }
