package gate

import (
	"context"
	"sync"
	"testing"

	"github.com/iliyamo/society-gate-access/internal/model"
)

// memPass is an in-memory PassStore with the same conditional guard
// transition as the SQL implementation.
type memPass struct {
	mu          sync.Mutex
	guardStatus string
	approved    []Recipient
	rejected    []Recipient
	pending     []Recipient
	issuer      Recipient
}

func (m *memPass) GuardAutoResolve(ctx context.Context, passID uint64, status string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.guardStatus != model.StatusPending {
		return false, nil
	}
	m.guardStatus = status
	return true, nil
}

func (m *memPass) MembersByStatus(ctx context.Context, passID uint64) ([]Recipient, []Recipient, []Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.approved, m.rejected, m.pending, nil
}

func (m *memPass) Issuer(ctx context.Context, passID uint64) (Recipient, error) {
	return m.issuer, nil
}

// recordDispatcher captures every notification for assertions.
type recordDispatcher struct {
	mu   sync.Mutex
	sent []sentNote
}

type sentNote struct {
	token  string
	action string
}

func (d *recordDispatcher) Notify(ctx context.Context, token, action string, payload any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sentNote{token: token, action: action})
	return nil
}

func (d *recordDispatcher) Cancel(ctx context.Context, token, notificationID string) error {
	return nil
}

func (d *recordDispatcher) count(token, action string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, s := range d.sent {
		if s.token == token && s.action == action {
			n++
		}
	}
	return n
}

func TestResolveExpiredActivatesWhenOneApartmentApproved(t *testing.T) {
	// Apartment A approved before the deadline; apartment B never
	// responded.  The pass must activate, A and the issuer hear
	// "activated", B hears "expired with no response".
	store := &memPass{
		guardStatus: model.StatusPending,
		approved:    []Recipient{{UserID: 10, DeviceToken: "tok-a"}},
		pending:     []Recipient{{UserID: 20, DeviceToken: "tok-b"}},
		issuer:      Recipient{UserID: 1, DeviceToken: "tok-issuer"},
	}
	disp := &recordDispatcher{}
	r := NewPassResolver(store, disp)

	resolved, err := r.ResolveExpired(context.Background(), 9)
	if err != nil || !resolved {
		t.Fatalf("resolve = %v, %v; want true, nil", resolved, err)
	}
	if store.guardStatus != model.StatusApproved {
		t.Fatalf("guard status = %s, want APPROVED", store.guardStatus)
	}
	if disp.count("tok-a", ActionGatePassActivated) != 1 {
		t.Fatal("approving apartment not told the pass activated")
	}
	if disp.count("tok-issuer", ActionGatePassActivated) != 1 {
		t.Fatal("issuer not told the pass activated")
	}
	if disp.count("tok-b", ActionGatePassExpired) != 1 {
		t.Fatal("silent apartment not told the window closed")
	}
}

func TestResolveExpiredRejectsWhenNoApproval(t *testing.T) {
	store := &memPass{
		guardStatus: model.StatusPending,
		rejected:    []Recipient{{UserID: 10, DeviceToken: "tok-a"}},
		pending:     []Recipient{{UserID: 20, DeviceToken: "tok-b"}},
		issuer:      Recipient{UserID: 1, DeviceToken: "tok-issuer"},
	}
	disp := &recordDispatcher{}
	r := NewPassResolver(store, disp)

	resolved, err := r.ResolveExpired(context.Background(), 9)
	if err != nil || !resolved {
		t.Fatalf("resolve = %v, %v; want true, nil", resolved, err)
	}
	if store.guardStatus != model.StatusRejected {
		t.Fatalf("guard status = %s, want REJECTED", store.guardStatus)
	}
	if disp.count("tok-issuer", ActionGatePassExpired) != 1 {
		t.Fatal("issuer not told the pass expired without approval")
	}
	if got := disp.count("tok-a", ActionGatePassActivated); got != 0 {
		t.Fatalf("rejecting apartment received %d activation note(s)", got)
	}
}

func TestResolveExpiredFiresAtMostOnce(t *testing.T) {
	store := &memPass{
		guardStatus: model.StatusPending,
		approved:    []Recipient{{UserID: 10, DeviceToken: "tok-a"}},
		issuer:      Recipient{UserID: 1, DeviceToken: "tok-issuer"},
	}
	disp := &recordDispatcher{}
	r := NewPassResolver(store, disp)
	ctx := context.Background()

	start := make(chan struct{})
	results := make(chan bool, 2)
	for i := 0; i < 2; i++ {
		go func() {
			<-start
			ok, err := r.ResolveExpired(ctx, 9)
			if err != nil {
				t.Errorf("resolve: %v", err)
			}
			results <- ok
		}()
	}
	close(start)

	wins := 0
	for i := 0; i < 2; i++ {
		if <-results {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("wins = %d, want exactly one", wins)
	}
	if got := disp.count("tok-a", ActionGatePassActivated); got != 1 {
		t.Fatalf("apartment received %d activation note(s), want 1", got)
	}
}

func TestResolveExpiredSkipsEmptyDeviceTokens(t *testing.T) {
	store := &memPass{
		guardStatus: model.StatusPending,
		approved:    []Recipient{{UserID: 10}},
		issuer:      Recipient{UserID: 1, DeviceToken: "tok-issuer"},
	}
	disp := &recordDispatcher{}
	r := NewPassResolver(store, disp)

	if _, err := r.ResolveExpired(context.Background(), 9); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := disp.count("", ActionGatePassActivated); got != 0 {
		t.Fatalf("dispatched %d note(s) to an empty token", got)
	}
}
