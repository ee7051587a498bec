package sync

import (
	"fmt"
	"time"
)

// BusinessTimezone is the fixed civil timezone used to interpret day
// boundaries, regardless of where the sync process runs. Upstream semantics
// and tenant expectations are anchored to this calendar.
const BusinessTimezone = "America/Sao_Paulo"

// businessLocation is loaded once at startup; LoadLocation only fails when
// the tzdata is missing from the host, which is a deployment defect.
var businessLocation = mustLoadLocation(BusinessTimezone)

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("sync: cannot load business timezone %q: %v", name, err))
	}
	return loc
}

// BusinessLocation returns the fixed business timezone.
func BusinessLocation() *time.Location {
	return businessLocation
}

// Window is an inclusive start/end instant pair.
type Window struct {
	Start time.Time
	End   time.Time
}

// Validate returns ErrInvalidWindow when start is after end.
func (w Window) Validate() error {
	if w.Start.After(w.End) {
		return ErrInvalidWindow
	}
	return nil
}

// ContainsDay reports whether t, truncated to its calendar day in the
// business timezone, falls inside the window. Upstream date-range filtering
// is not trusted to match local day boundaries, so pages are re-filtered
// with this predicate after normalization.
func (w Window) ContainsDay(t time.Time) bool {
	day := DayOf(t)
	return !day.Before(DayOf(w.Start)) && !day.After(DayOf(w.End))
}

// DayOf truncates an instant to midnight of its calendar day in the business
// timezone.
func DayOf(t time.Time) time.Time {
	local := t.In(businessLocation)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, businessLocation)
}

// ComputeWindow returns the window covering the last `days` calendar days
// including today, in the business timezone: midnight of the first day
// through 23:59:59 of today, converted to absolute instants. days=1 yields a
// single-day window.
func ComputeWindow(now time.Time, days int) (Window, error) {
	if days < 1 {
		return Window{}, fmt.Errorf("%w: days must be >= 1, got %d", ErrInvalidWindow, days)
	}

	today := DayOf(now)
	start := today.AddDate(0, 0, -(days - 1))
	end := time.Date(today.Year(), today.Month(), today.Day(), 23, 59, 59, 0, businessLocation)

	return Window{Start: start, End: end}, nil
}
