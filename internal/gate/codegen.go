package gate

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
)

const (
	codeFloor = 100000 // lowest 6-digit code
	codeSpan  = 900000 // number of possible codes: [100000, 999999]

	// maxDraws bounds the redraw loop.  With 900,000 possible codes and
	// live sets of at most a few thousand, exhausting this bound means
	// the live-code source is returning garbage, not that codes ran out.
	maxDraws = 5000
)

// LiveCodeSource supplies the access codes currently live for a
// society: codes of unconsumed check-in codes whose validity window
// holds now (a NULL expiry counts as live indefinitely).
type LiveCodeSource interface {
	LiveCodes(ctx context.Context, society string) ([]string, error)
}

// CodeGenerator issues 6-digit numeric access codes that do not collide
// with any code currently live for the issuing society.  Generation is
// side-effect-free; the caller persists the resulting record, so a
// narrow window exists in which two concurrent issuers could draw the
// same code.  The checkin_codes table's uniqueness key closes it.
type CodeGenerator struct {
	live LiveCodeSource
}

// NewCodeGenerator returns a generator drawing against the given source.
func NewCodeGenerator(live LiveCodeSource) *CodeGenerator {
	return &CodeGenerator{live: live}
}

// Issue draws uniform random candidates from [100000, 999999] and
// redraws until one does not collide with the society's live set.
// Expected O(1) redraws; ErrCodeExhausted after the bound.
func (g *CodeGenerator) Issue(ctx context.Context, society string) (string, error) {
	codes, err := g.live.LiveCodes(ctx, society)
	if err != nil {
		return "", fmt.Errorf("load live codes: %w", err)
	}
	taken := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		taken[c] = struct{}{}
	}
	for i := 0; i < maxDraws; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
		if err != nil {
			return "", fmt.Errorf("draw code: %w", err)
		}
		code := strconv.FormatInt(codeFloor+n.Int64(), 10)
		if _, clash := taken[code]; !clash {
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}
