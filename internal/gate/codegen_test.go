package gate

import (
	"context"
	"errors"
	"strconv"
	"testing"
)

// fakeLiveCodes serves a mutable live set, standing in for the
// checkin_codes query.
type fakeLiveCodes struct {
	codes map[string]struct{}
	err   error
}

func (f *fakeLiveCodes) LiveCodes(ctx context.Context, society string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]string, 0, len(f.codes))
	for c := range f.codes {
		out = append(out, c)
	}
	return out, nil
}

func TestIssueNeverCollidesWithLiveSet(t *testing.T) {
	live := &fakeLiveCodes{codes: make(map[string]struct{})}
	// Seed a plausible live population.
	for i := 0; i < 1000; i++ {
		live.codes[strconv.Itoa(100000+i)] = struct{}{}
	}
	g := NewCodeGenerator(live)

	for i := 0; i < 10000; i++ {
		code, err := g.Issue(context.Background(), "greenfield")
		if err != nil {
			t.Fatalf("issue %d: %v", i, err)
		}
		if len(code) != 6 {
			t.Fatalf("issue %d: code %q is not 6 digits", i, code)
		}
		if n, err := strconv.Atoi(code); err != nil || n < 100000 || n > 999999 {
			t.Fatalf("issue %d: code %q outside [100000, 999999]", i, code)
		}
		if _, clash := live.codes[code]; clash {
			t.Fatalf("issue %d: code %q collides with live set", i, code)
		}
		// The caller would persist the code, making it live for
		// subsequent draws.
		live.codes[code] = struct{}{}
	}
}

func TestIssueExhaustsWhenEveryCodeIsLive(t *testing.T) {
	live := &fakeLiveCodes{codes: make(map[string]struct{}, codeSpan)}
	for n := codeFloor; n < codeFloor+codeSpan; n++ {
		live.codes[strconv.Itoa(n)] = struct{}{}
	}
	g := NewCodeGenerator(live)
	if _, err := g.Issue(context.Background(), "greenfield"); !errors.Is(err, ErrCodeExhausted) {
		t.Fatalf("expected ErrCodeExhausted, got %v", err)
	}
}

func TestIssuePropagatesSourceError(t *testing.T) {
	boom := errors.New("db down")
	g := NewCodeGenerator(&fakeLiveCodes{err: boom})
	if _, err := g.Issue(context.Background(), "greenfield"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped source error, got %v", err)
	}
}
