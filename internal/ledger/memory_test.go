package ledger

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/agentcoin/agentcoin/internal/reward"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	return NewMemoryStore(reward.NewCalculator())
}

func mustEnsure(t *testing.T, s *MemoryStore, id, name string) Agent {
	t.Helper()
	a, err := s.EnsureAgent(context.Background(), id, name)
	if err != nil {
		t.Fatalf("ensure agent %s: %v", name, err)
	}
	return a
}

func TestEnsureAgentIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := mustEnsure(t, s, "a1", "alice")
	SeedBalance(s, "a1", 25)
	again := mustEnsure(t, s, "a1", "alice")

	if again.Balance != 25 {
		t.Fatalf("re-ensure reset balance to %d", again.Balance)
	}
	if !again.CreatedAt.Equal(first.CreatedAt) {
		t.Fatal("re-ensure changed creation time")
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalAgents != 1 {
		t.Fatalf("expected 1 agent, got %d", st.TotalAgents)
	}
}

func TestMintCreditsSubmission(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustEnsure(t, s, "a1", "alice")

	res, err := s.Mint(ctx, MintParams{
		AgentID:     "a1",
		Task:        "summarize",
		Output:      strings.Repeat("x", 150),
		ContentHash: "hash-1",
		Memo:        "Work submission reward",
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	// ceil(150/100) = 2 base, plus the first-submission bonus.
	want := int64(2 + reward.EarlyAdopterBonus)
	if res.Tokens != want || !res.Bonus {
		t.Fatalf("tokens = %d (bonus=%v), want %d with bonus", res.Tokens, res.Bonus, want)
	}
	if res.NewBalance != want {
		t.Fatalf("new balance = %d, want %d", res.NewBalance, want)
	}
	if res.SubmissionID == "" {
		t.Fatal("missing submission id")
	}

	st, _ := s.Stats(ctx)
	if st.TotalSupply != want || st.TotalSubmissions != 1 || st.TotalTransactions != 1 {
		t.Fatalf("stats = %+v after one mint", st)
	}

	hist, err := s.History(ctx, "a1", 20)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 1 || hist[0].Kind != KindMint || hist[0].Amount != want {
		t.Fatalf("unexpected history %+v", hist)
	}
}

func TestMintRejectsDuplicateHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustEnsure(t, s, "a1", "alice")

	p := MintParams{AgentID: "a1", Task: "t", Output: strings.Repeat("y", 60), ContentHash: "same"}
	first, err := s.Mint(ctx, p)
	if err != nil {
		t.Fatalf("first mint: %v", err)
	}

	if _, err := s.Mint(ctx, p); !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}

	a, _ := s.AgentByID(ctx, "a1")
	if a.Balance != first.NewBalance {
		t.Fatalf("balance changed by rejected mint: %d != %d", a.Balance, first.NewBalance)
	}
}

func TestMintBonusAppliesOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustEnsure(t, s, "a1", "alice")

	out := strings.Repeat("z", 50)
	first, err := s.Mint(ctx, MintParams{AgentID: "a1", Task: "t", Output: out, ContentHash: "h1"})
	if err != nil {
		t.Fatalf("first mint: %v", err)
	}
	if !first.Bonus {
		t.Fatal("first submission should carry the bonus")
	}

	second, err := s.Mint(ctx, MintParams{AgentID: "a1", Task: "t2", Output: out, ContentHash: "h2"})
	if err != nil {
		t.Fatalf("second mint: %v", err)
	}
	if second.Bonus || second.Tokens != 1 {
		t.Fatalf("second mint = %d tokens (bonus=%v), want 1 without bonus", second.Tokens, second.Bonus)
	}
}

func TestMintUnknownAgent(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Mint(context.Background(), MintParams{AgentID: "ghost", Output: "x", ContentHash: "h"})
	if !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestTransferMovesBalance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustEnsure(t, s, "a1", "alice")
	mustEnsure(t, s, "a2", "bob")
	SeedBalance(s, "a1", 100)

	res, err := s.Transfer(ctx, TransferParams{FromID: "a1", ToName: "bob", Amount: 40, Memo: "thanks"})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if res.FromBalance != 60 || res.ToBalance != 40 {
		t.Fatalf("balances after transfer = %d/%d, want 60/40", res.FromBalance, res.ToBalance)
	}

	st, _ := s.Stats(ctx)
	if st.TotalSupply != 100 {
		t.Fatalf("transfer changed total supply: %d", st.TotalSupply)
	}

	hist, _ := s.History(ctx, "a2", 20)
	if len(hist) != 1 || hist[0].FromName != "alice" || hist[0].ToName != "bob" {
		t.Fatalf("unexpected recipient history %+v", hist)
	}
}

func TestTransferGuards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustEnsure(t, s, "a1", "alice")
	mustEnsure(t, s, "a2", "bob")
	SeedBalance(s, "a1", 10)

	if _, err := s.Transfer(ctx, TransferParams{FromID: "a1", ToName: "nobody", Amount: 5}); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("unknown recipient: got %v", err)
	}
	if _, err := s.Transfer(ctx, TransferParams{FromID: "a1", ToName: "alice", Amount: 5}); !errors.Is(err, ErrSelfTransfer) {
		t.Fatalf("self transfer: got %v", err)
	}
	if _, err := s.Transfer(ctx, TransferParams{FromID: "a1", ToName: "bob", Amount: 11}); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("overdraft: got %v", err)
	}

	a, _ := s.AgentByID(ctx, "a1")
	if a.Balance != 10 {
		t.Fatalf("failed transfers moved balance: %d", a.Balance)
	}
}

func TestBountyLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustEnsure(t, s, "c1", "creator")
	mustEnsure(t, s, "w1", "worker")
	mustEnsure(t, s, "o1", "onlooker")
	SeedBalance(s, "c1", 100)

	created, err := s.CreateBounty(ctx, CreateBountyParams{
		CreatorID:   "c1",
		Title:       "write docs",
		Description: "document the API",
		Reward:      30,
	})
	if err != nil {
		t.Fatalf("create bounty: %v", err)
	}
	if created.NewBalance != 70 {
		t.Fatalf("stake not debited, balance %d", created.NewBalance)
	}

	if _, err := s.ClaimBounty(ctx, created.BountyID, "c1"); !errors.Is(err, ErrSelfClaim) {
		t.Fatalf("self claim: got %v", err)
	}

	b, err := s.ClaimBounty(ctx, created.BountyID, "w1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if b.Status != BountyClaimed || b.ClaimedByName != "worker" || b.ClaimedAt == nil {
		t.Fatalf("unexpected claimed bounty %+v", b)
	}

	var wse *WrongStateError
	if _, err := s.ClaimBounty(ctx, created.BountyID, "o1"); !errors.As(err, &wse) || wse.Status != BountyClaimed {
		t.Fatalf("double claim: got %v", err)
	}

	if _, err := s.SubmitBountyWork(ctx, created.BountyID, "o1", "work"); !errors.Is(err, ErrNotClaimant) {
		t.Fatalf("submit by stranger: got %v", err)
	}

	b, err = s.SubmitBountyWork(ctx, created.BountyID, "w1", "the finished docs")
	if err != nil {
		t.Fatalf("submit work: %v", err)
	}
	if b.Status != BountySubmitted || b.SubmittedAt == nil {
		t.Fatalf("unexpected submitted bounty %+v", b)
	}

	// Cancellation is only allowed while the bounty is still open.
	if _, err := s.CancelBounty(ctx, created.BountyID, "c1"); !errors.As(err, &wse) {
		t.Fatalf("cancel after submission: got %v", err)
	}

	if _, err := s.ApproveBounty(ctx, created.BountyID, "w1"); !errors.Is(err, ErrNotCreator) {
		t.Fatalf("approve by claimant: got %v", err)
	}

	res, err := s.ApproveBounty(ctx, created.BountyID, "c1")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if res.ClaimantName != "worker" || res.Reward != 30 {
		t.Fatalf("unexpected approve result %+v", res)
	}

	worker, _ := s.AgentByID(ctx, "w1")
	if worker.Balance != 30 {
		t.Fatalf("claimant not paid, balance %d", worker.Balance)
	}

	done, _ := s.BountyByID(ctx, created.BountyID)
	if done.Status != BountyCompleted || done.CompletedAt == nil {
		t.Fatalf("unexpected final bounty %+v", done)
	}

	st, _ := s.Stats(ctx)
	if st.TotalSupply != 100 {
		t.Fatalf("escrow changed total supply: %d", st.TotalSupply)
	}
}

func TestBountyCancelRefundsStake(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustEnsure(t, s, "c1", "creator")
	mustEnsure(t, s, "w1", "worker")
	SeedBalance(s, "c1", 50)

	created, err := s.CreateBounty(ctx, CreateBountyParams{CreatorID: "c1", Title: "t", Description: "d", Reward: 20})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := s.CancelBounty(ctx, created.BountyID, "w1"); !errors.Is(err, ErrNotCreator) {
		t.Fatalf("cancel by stranger: got %v", err)
	}

	res, err := s.CancelBounty(ctx, created.BountyID, "c1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if res.Refunded != 20 || res.NewBalance != 50 {
		t.Fatalf("unexpected refund %+v", res)
	}

	b, _ := s.BountyByID(ctx, created.BountyID)
	if b.Status != BountyCancelled {
		t.Fatalf("status = %s after cancel", b.Status)
	}

	if _, err := s.ClaimBounty(ctx, created.BountyID, "w1"); err == nil {
		t.Fatal("claimed a cancelled bounty")
	}
}

func TestCreateBountyInsufficientFunds(t *testing.T) {
	s := newTestStore(t)
	mustEnsure(t, s, "c1", "creator")
	SeedBalance(s, "c1", 5)

	_, err := s.CreateBounty(context.Background(), CreateBountyParams{CreatorID: "c1", Title: "t", Description: "d", Reward: 10})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestListBountiesFiltersAndOrders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustEnsure(t, s, "c1", "creator")
	SeedBalance(s, "c1", 1000)

	low, _ := s.CreateBounty(ctx, CreateBountyParams{CreatorID: "c1", Title: "low", Description: "d", Reward: 5})
	high, _ := s.CreateBounty(ctx, CreateBountyParams{CreatorID: "c1", Title: "high", Description: "d", Reward: 50})
	s.CancelBounty(ctx, low.BountyID, "c1")

	open, err := s.ListBounties(ctx, BountyOpen, 20)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(open) != 1 || open[0].ID != high.BountyID {
		t.Fatalf("unexpected open list %+v", open)
	}

	cancelled, _ := s.ListBounties(ctx, BountyCancelled, 20)
	if len(cancelled) != 1 || cancelled[0].ID != low.BountyID {
		t.Fatalf("unexpected cancelled list %+v", cancelled)
	}
}

func TestConcurrentTransfersConserveSupply(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustEnsure(t, s, "a1", "alice")
	mustEnsure(t, s, "a2", "bob")
	SeedBalance(s, "a1", 1000)
	SeedBalance(s, "a2", 1000)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Transfer(ctx, TransferParams{FromID: "a1", ToName: "bob", Amount: 1})
		}()
		go func() {
			defer wg.Done()
			s.Transfer(ctx, TransferParams{FromID: "a2", ToName: "alice", Amount: 1})
		}()
	}
	wg.Wait()

	st, _ := s.Stats(ctx)
	if st.TotalSupply != 2000 {
		t.Fatalf("total supply drifted to %d", st.TotalSupply)
	}
}
