package gate

import (
	"fmt"
	"time"
)

// DefaultOffsetMinutes is the fixed local offset used for all window
// evaluation: UTC+5:30.  The offset is a deliberate regional design
// choice configured once (GATE_TZ_OFFSET_MIN); it is never derived from
// the server locale or the request.
const DefaultOffsetMinutes = 330

// WindowValidator decides whether an instant falls inside a start/expiry
// window that may wrap past midnight.  The zero value is not usable;
// construct with NewWindowValidator.
type WindowValidator struct {
	loc *time.Location
}

// NewWindowValidator builds a validator evaluating local time at the
// given fixed offset east of UTC, in minutes.
func NewWindowValidator(offsetMinutes int) *WindowValidator {
	name := fmt.Sprintf("UTC%+03d:%02d", offsetMinutes/60, abs(offsetMinutes)%60)
	return &WindowValidator{loc: time.FixedZone(name, offsetMinutes*60)}
}

// CheckWindow returns nil when now falls inside the window delimited by
// start and end, and a *WindowError otherwise.  A nil start or end
// means the window is open on that side (indefinite codes always pass).
//
// The window start and end each contribute a time-of-day and a calendar
// date, compared separately.  An end time-of-day earlier than the start
// time-of-day encodes a window crossing midnight: 22:00–06:00 is valid
// from 22:00 on the start date until 06:00 on the end date.
func (v *WindowValidator) CheckWindow(now time.Time, start, end *time.Time) error {
	if start == nil || end == nil {
		return nil
	}
	localNow := now.In(v.loc)
	localStart := start.In(v.loc)
	localEnd := end.In(v.loc)

	cur := secondOfDay(localNow)
	st := secondOfDay(localStart)
	et := secondOfDay(localEnd)
	today := dateOf(localNow)
	startDate := dateOf(localStart)
	endDate := dateOf(localEnd)

	deny := func(reason string) error {
		return &WindowError{
			Reason: reason,
			Start:  localStart.Format("03:04 PM"),
			End:    localEnd.Format("03:04 PM"),
		}
	}

	switch {
	case st == et:
		// Degenerate window: the boundaries only bite on their own dates.
		if today == startDate && cur < st {
			return deny(ReasonNotYetValid)
		}
		if today == endDate && cur > et {
			return deny(ReasonExpired)
		}
	case st > et:
		// Overnight window.
		if today == startDate && cur < st {
			return deny(ReasonNotYetValid)
		}
		if today == endDate && cur > et {
			return deny(ReasonExpired)
		}
	default:
		// Same-day window.
		if cur < st {
			return deny(ReasonNotYetValid)
		}
		if cur > et {
			return deny(ReasonExpired)
		}
	}
	return nil
}

// secondOfDay returns the time-of-day of t as seconds since midnight.
func secondOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

// dateOf truncates t to its calendar date in t's location.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
