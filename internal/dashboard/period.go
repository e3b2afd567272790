package dashboard

import (
	"time"

	"accounting/internal/core"
)

const (
	PeriodCurrentMonth = "current_month"
	PeriodLast30Days   = "last_30_days"
	PeriodCustomRange  = "custom_range"
)

// Window is a resolved reporting period. Dates are inclusive YYYY-MM-DD.
type Window struct {
	Start string
	End   string
	Label string
}

func (w Window) info() PeriodInfo {
	return PeriodInfo{StartDate: w.Start, EndDate: w.End, Label: w.Label}
}

// ResolvePeriod turns a period name into a date window relative to now. An
// empty period means last 30 days.
func ResolvePeriod(period, start, end string, now time.Time) (Window, error) {
	switch period {
	case PeriodCurrentMonth:
		return Window{
			Start: core.StartOfMonth(now).Format(core.DateLayout),
			End:   core.Today(now),
			Label: "Current Month",
		}, nil
	case "", PeriodLast30Days:
		return Window{
			Start: core.Today(now.AddDate(0, 0, -30)),
			End:   core.Today(now),
			Label: "Last 30 Days",
		}, nil
	case PeriodCustomRange:
		if start == "" {
			return Window{}, core.Invalid("start_date", "is required for custom_range")
		}
		if end == "" {
			return Window{}, core.Invalid("end_date", "is required for custom_range")
		}
		s, err := core.ParseDate("start_date", start)
		if err != nil {
			return Window{}, err
		}
		e, err := core.ParseDate("end_date", end)
		if err != nil {
			return Window{}, err
		}
		if s > e {
			return Window{}, core.Invalid("start_date", "must not be after end_date")
		}
		return Window{Start: s, End: e, Label: "Custom Range"}, nil
	}
	return Window{}, core.Invalid("period", "must be current_month, last_30_days or custom_range")
}

// trendMonths returns the first and last day of each of the n months ending
// with now's month, oldest first.
func trendMonths(now time.Time, n int) [][2]string {
	out := make([][2]string, 0, n)
	first := core.StartOfMonth(now)
	for i := n - 1; i >= 0; i-- {
		m := first.AddDate(0, -i, 0)
		out = append(out, [2]string{
			m.Format(core.DateLayout),
			m.AddDate(0, 1, -1).Format(core.DateLayout),
		})
	}
	return out
}
