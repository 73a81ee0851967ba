package handler

import (
	"testing"

	"github.com/iliyamo/society-gate-access/internal/gate"
	"github.com/iliyamo/society-gate-access/internal/model"
)

func TestDedupeApartments(t *testing.T) {
	in := []model.ApartmentRef{
		{Block: "B", Apartment: "12"},
		{Block: " B ", Apartment: " 12 "}, // same apartment, padded
		{Block: "C", Apartment: "3"},
		{Block: "", Apartment: "7"}, // incomplete, dropped
		{Block: "B", Apartment: "12"},
	}
	out := dedupeApartments(in)
	if len(out) != 2 {
		t.Fatalf("got %d apartments, want 2: %v", len(out), out)
	}
	if out[0] != (model.ApartmentRef{Block: "B", Apartment: "12"}) || out[1] != (model.ApartmentRef{Block: "C", Apartment: "3"}) {
		t.Fatalf("unexpected order or content: %v", out)
	}
}

func TestNormalizeKind(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"delivery", model.KindDelivery, true},
		{" Guest ", model.KindGuest, true},
		{"", model.KindOther, true},
		{"SERVICE", model.KindService, true},
		{"DRONE", "", false},
	}
	for _, tc := range cases {
		got, ok := normalizeKind(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("normalizeKind(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseDecision(t *testing.T) {
	if d, ok := parseDecision("approve"); !ok || d != gate.DecisionApprove {
		t.Fatalf("approve: got %q, %v", d, ok)
	}
	if d, ok := parseDecision(" REJECT "); !ok || d != gate.DecisionReject {
		t.Fatalf("reject: got %q, %v", d, ok)
	}
	if _, ok := parseDecision("maybe"); ok {
		t.Fatal("maybe should not parse")
	}
}
