package transfer

import (
	"context"
	"errors"
	"testing"

	"github.com/agentcoin/agentcoin/internal/ledger"
	"github.com/agentcoin/agentcoin/internal/notification"
	"github.com/agentcoin/agentcoin/internal/reward"
)

type captureNotifier struct {
	messages []notification.Message
}

func (n *captureNotifier) Send(_ context.Context, m notification.Message) error {
	n.messages = append(n.messages, m)
	return nil
}

func setup(t *testing.T) (*Service, *ledger.MemoryStore, *captureNotifier, ledger.Agent, ledger.Agent) {
	t.Helper()
	store := ledger.NewMemoryStore(reward.NewCalculator())
	notifier := &captureNotifier{}
	svc := NewService(store, notifier)

	ctx := context.Background()
	alice, err := store.EnsureAgent(ctx, "a1", "alice")
	if err != nil {
		t.Fatalf("ensure alice: %v", err)
	}
	bob, err := store.EnsureAgent(ctx, "a2", "bob")
	if err != nil {
		t.Fatalf("ensure bob: %v", err)
	}
	ledger.SeedBalance(store, alice.ID, 100)
	return svc, store, notifier, alice, bob
}

func TestSendMovesTokens(t *testing.T) {
	svc, store, notifier, alice, bob := setup(t)
	ctx := context.Background()

	res, err := svc.Send(ctx, alice, Input{ToName: "bob", Amount: 30, Memo: "thanks"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.NewBalance != 70 || res.Amount != 30 || res.ToName != "bob" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.TransactionID == "" {
		t.Fatal("missing transaction id")
	}

	b, _ := store.AgentByID(ctx, bob.ID)
	if b.Balance != 30 {
		t.Fatalf("recipient balance = %d, want 30", b.Balance)
	}

	if len(notifier.messages) != 1 || notifier.messages[0].Kind != notification.KindTransfer {
		t.Fatalf("unexpected notifications %+v", notifier.messages)
	}
	if notifier.messages[0].Destination != bob.ID {
		t.Fatalf("notification sent to %s, want recipient", notifier.messages[0].Destination)
	}
}

func TestSendValidation(t *testing.T) {
	svc, _, _, alice, _ := setup(t)
	ctx := context.Background()

	if _, err := svc.Send(ctx, alice, Input{Amount: 10}); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("missing recipient: got %v", err)
	}
	if _, err := svc.Send(ctx, alice, Input{ToName: "bob"}); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("missing amount: got %v", err)
	}
	if _, err := svc.Send(ctx, alice, Input{ToName: "bob", Amount: -5}); !errors.Is(err, ErrNonPositiveAmount) {
		t.Fatalf("negative amount: got %v", err)
	}
}

func TestSendLedgerFailures(t *testing.T) {
	svc, store, notifier, alice, _ := setup(t)
	ctx := context.Background()

	if _, err := svc.Send(ctx, alice, Input{ToName: "nobody", Amount: 10}); !errors.Is(err, ledger.ErrAgentNotFound) {
		t.Fatalf("unknown recipient: got %v", err)
	}
	if _, err := svc.Send(ctx, alice, Input{ToName: "alice", Amount: 10}); !errors.Is(err, ledger.ErrSelfTransfer) {
		t.Fatalf("self transfer: got %v", err)
	}
	if _, err := svc.Send(ctx, alice, Input{ToName: "bob", Amount: 500}); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("overdraft: got %v", err)
	}

	a, _ := store.AgentByID(ctx, alice.ID)
	if a.Balance != 100 {
		t.Fatalf("failed sends moved balance: %d", a.Balance)
	}
	if len(notifier.messages) != 0 {
		t.Fatalf("failed sends produced notifications %+v", notifier.messages)
	}
}
