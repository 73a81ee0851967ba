package gate

import (
	"errors"
	"testing"
	"time"
)

// ist is the fixed evaluation zone used by the validator (UTC+5:30).
var ist = time.FixedZone("UTC+05:30", DefaultOffsetMinutes*60)

// at builds an instant at the given local wall time on 2025-03-10+day.
func at(day, hour, min int) time.Time {
	return time.Date(2025, time.March, 10+day, hour, min, 0, 0, ist)
}

func ptr(t time.Time) *time.Time { return &t }

func TestCheckWindowDecisionTable(t *testing.T) {
	v := NewWindowValidator(DefaultOffsetMinutes)

	cases := []struct {
		name       string
		now        time.Time
		start, end *time.Time
		reason     string // "" means allow
	}{
		// Same-day window 09:00-17:00.
		{"same-day inside", at(0, 12, 0), ptr(at(0, 9, 0)), ptr(at(0, 17, 0)), ""},
		{"same-day at start", at(0, 9, 0), ptr(at(0, 9, 0)), ptr(at(0, 17, 0)), ""},
		{"same-day before start", at(0, 8, 0), ptr(at(0, 9, 0)), ptr(at(0, 17, 0)), ReasonNotYetValid},
		{"same-day after end", at(0, 18, 0), ptr(at(0, 9, 0)), ptr(at(0, 17, 0)), ReasonExpired},
		// Overnight window 22:00-06:00 spanning two dates.
		{"overnight evening of start date", at(0, 23, 30), ptr(at(0, 22, 0)), ptr(at(1, 6, 0)), ""},
		{"overnight small hours of end date", at(1, 5, 0), ptr(at(0, 22, 0)), ptr(at(1, 6, 0)), ""},
		{"overnight before start", at(0, 21, 0), ptr(at(0, 22, 0)), ptr(at(1, 6, 0)), ReasonNotYetValid},
		{"overnight past end", at(1, 7, 0), ptr(at(0, 22, 0)), ptr(at(1, 6, 0)), ReasonExpired},
		// Equal boundary times: only the boundary dates bite.
		{"equal times between dates", at(0, 12, 0), ptr(at(0, 10, 0)), ptr(at(1, 10, 0)), ""},
		{"equal times before start", at(0, 9, 0), ptr(at(0, 10, 0)), ptr(at(1, 10, 0)), ReasonNotYetValid},
		{"equal times after end", at(1, 11, 0), ptr(at(0, 10, 0)), ptr(at(1, 10, 0)), ReasonExpired},
		// Indefinite codes carry no expiry and always pass.
		{"nil expiry", at(0, 3, 0), ptr(at(0, 22, 0)), nil, ""},
		{"nil start", at(0, 3, 0), nil, ptr(at(0, 6, 0)), ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.CheckWindow(tc.now, tc.start, tc.end)
			if tc.reason == "" {
				if err != nil {
					t.Fatalf("expected allow, got %v", err)
				}
				return
			}
			var werr *WindowError
			if !errors.As(err, &werr) {
				t.Fatalf("expected *WindowError, got %v", err)
			}
			if werr.Reason != tc.reason {
				t.Fatalf("reason = %s, want %s", werr.Reason, tc.reason)
			}
		})
	}
}

func TestCheckWindowEvaluatesAtFixedOffset(t *testing.T) {
	v := NewWindowValidator(DefaultOffsetMinutes)
	// 17:00 UTC is 22:30 local: inside a 22:00-06:00 overnight window
	// even though the UTC wall clock says otherwise.
	now := time.Date(2025, time.March, 10, 17, 0, 0, 0, time.UTC)
	start := at(0, 22, 0).UTC()
	end := at(1, 6, 0).UTC()
	if err := v.CheckWindow(now, &start, &end); err != nil {
		t.Fatalf("expected allow at 22:30 local, got %v", err)
	}
}

func TestWindowErrorCarriesFormattedBoundaries(t *testing.T) {
	v := NewWindowValidator(DefaultOffsetMinutes)
	err := v.CheckWindow(at(1, 7, 0), ptr(at(0, 22, 0)), ptr(at(1, 6, 0)))
	var werr *WindowError
	if !errors.As(err, &werr) {
		t.Fatalf("expected *WindowError, got %v", err)
	}
	if werr.Start != "10:00 PM" || werr.End != "06:00 AM" {
		t.Fatalf("boundaries = %q / %q, want 10:00 PM / 06:00 AM", werr.Start, werr.End)
	}
}
