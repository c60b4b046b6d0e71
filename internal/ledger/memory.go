package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MemoryStore is a mutex-serialized in-memory ledger used by tests and by the
// dev wiring when no database is configured. Every operation holds the lock
// for its full read-and-write span, so each op is atomic by construction.
type MemoryStore struct {
	mu          sync.RWMutex
	rewards     RewardCalculator
	agents      map[string]Agent
	byName      map[string]string
	txs         []Transaction
	submissions map[string]Submission
	bounties    map[string]*Bounty
}

// NewMemoryStore creates an empty in-memory ledger store.
func NewMemoryStore(rewards RewardCalculator) *MemoryStore {
	return &MemoryStore{
		rewards:     rewards,
		agents:      make(map[string]Agent),
		byName:      make(map[string]string),
		submissions: make(map[string]Submission),
		bounties:    make(map[string]*Bounty),
	}
}

func (s *MemoryStore) EnsureAgent(_ context.Context, id, name string) (Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	a, ok := s.agents[id]
	if !ok {
		a = Agent{ID: id, Name: name, CreatedAt: now, LastActive: now}
	} else {
		a.LastActive = now
	}
	s.agents[id] = a
	s.byName[a.Name] = id
	return a, nil
}

func (s *MemoryStore) AgentByID(_ context.Context, id string) (Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	if !ok {
		return Agent{}, ErrAgentNotFound
	}
	return a, nil
}

func (s *MemoryStore) AgentByName(_ context.Context, name string) (Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[name]
	if !ok {
		return Agent{}, ErrAgentNotFound
	}
	return s.agents[id], nil
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		TotalAgents:       int64(len(s.agents)),
		TotalTransactions: int64(len(s.txs)),
	}
	for _, a := range s.agents {
		st.TotalSupply += a.Balance
	}
	for _, sub := range s.submissions {
		if sub.Status == SubmissionValidated {
			st.TotalSubmissions++
		}
	}
	return st, nil
}

func (s *MemoryStore) Leaderboard(_ context.Context, limit int) ([]AgentRank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ranks := make([]AgentRank, 0, len(s.agents))
	for _, a := range s.agents {
		ranks = append(ranks, AgentRank{Name: a.Name, Balance: a.Balance})
	}
	sort.Slice(ranks, func(i, j int) bool { return ranks[i].Balance > ranks[j].Balance })
	if len(ranks) > limit {
		ranks = ranks[:limit]
	}
	return ranks, nil
}

func (s *MemoryStore) History(_ context.Context, agentID string, limit int) ([]HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]HistoryEntry, 0, limit)
	for i := len(s.txs) - 1; i >= 0 && len(entries) < limit; i-- {
		t := s.txs[i]
		if t.From != agentID && t.To != agentID {
			continue
		}
		entries = append(entries, HistoryEntry{
			ID:        t.ID,
			Kind:      t.Kind,
			Amount:    t.Amount,
			Memo:      t.Memo,
			FromName:  s.nameOf(t.From),
			ToName:    s.nameOf(t.To),
			CreatedAt: t.CreatedAt,
		})
	}
	return entries, nil
}

func (s *MemoryStore) Mint(_ context.Context, p MintParams) (MintResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[p.AgentID]
	if !ok {
		return MintResult{}, ErrAgentNotFound
	}
	if _, dup := s.submissions[p.ContentHash]; dup {
		return MintResult{}, ErrDuplicateSubmission
	}

	first := true
	for _, sub := range s.submissions {
		if sub.AgentID == p.AgentID {
			first = false
			break
		}
	}

	tokens, bonus := s.rewards.Tokens(utf8.RuneCountInString(p.Output), first, int64(len(s.agents)))

	now := time.Now().UTC()
	sub := Submission{
		ID:           uuid.NewString(),
		AgentID:      p.AgentID,
		Task:         p.Task,
		Output:       p.Output,
		ContentHash:  p.ContentHash,
		TokensEarned: tokens,
		Status:       SubmissionValidated,
		CreatedAt:    now,
		ValidatedAt:  now,
	}
	s.submissions[p.ContentHash] = sub

	agent.Balance += tokens
	s.agents[p.AgentID] = agent

	s.txs = append(s.txs, Transaction{
		ID:          uuid.NewString(),
		To:          p.AgentID,
		Amount:      tokens,
		Kind:        KindMint,
		ContentHash: p.ContentHash,
		Memo:        p.Memo,
		CreatedAt:   now,
	})

	return MintResult{SubmissionID: sub.ID, Tokens: tokens, Bonus: bonus, NewBalance: agent.Balance}, nil
}

func (s *MemoryStore) Transfer(_ context.Context, p TransferParams) (TransferResult, error) {
	if p.Amount <= 0 {
		return TransferResult{}, ErrInsufficientFunds
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	toID, ok := s.byName[p.ToName]
	if !ok {
		return TransferResult{}, ErrAgentNotFound
	}
	if toID == p.FromID {
		return TransferResult{}, ErrSelfTransfer
	}
	from, ok := s.agents[p.FromID]
	if !ok {
		return TransferResult{}, ErrAgentNotFound
	}
	if from.Balance < p.Amount {
		return TransferResult{}, ErrInsufficientFunds
	}
	to := s.agents[toID]

	from.Balance -= p.Amount
	to.Balance += p.Amount
	s.agents[p.FromID] = from
	s.agents[toID] = to

	tx := Transaction{
		ID:        uuid.NewString(),
		From:      p.FromID,
		To:        toID,
		Amount:    p.Amount,
		Kind:      KindTransfer,
		Memo:      p.Memo,
		CreatedAt: time.Now().UTC(),
	}
	s.txs = append(s.txs, tx)

	return TransferResult{
		TransactionID: tx.ID,
		ToID:          toID,
		ToName:        p.ToName,
		FromBalance:   from.Balance,
		ToBalance:     to.Balance,
	}, nil
}

func (s *MemoryStore) CreateBounty(_ context.Context, p CreateBountyParams) (CreateBountyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creator, ok := s.agents[p.CreatorID]
	if !ok {
		return CreateBountyResult{}, ErrAgentNotFound
	}
	if creator.Balance < p.Reward {
		return CreateBountyResult{}, ErrInsufficientFunds
	}

	creator.Balance -= p.Reward
	s.agents[p.CreatorID] = creator

	now := time.Now().UTC()
	b := &Bounty{
		ID:          uuid.NewString(),
		CreatorID:   p.CreatorID,
		CreatorName: creator.Name,
		Title:       p.Title,
		Description: p.Description,
		Reward:      p.Reward,
		Status:      BountyOpen,
		CreatedAt:   now,
		ExpiresAt:   p.ExpiresAt,
	}
	s.bounties[b.ID] = b

	s.txs = append(s.txs, Transaction{
		ID:        uuid.NewString(),
		From:      p.CreatorID,
		To:        p.CreatorID,
		Amount:    p.Reward,
		Kind:      KindStake,
		Memo:      "Bounty stake: " + p.Title,
		CreatedAt: now,
	})

	return CreateBountyResult{BountyID: b.ID, Reward: p.Reward, NewBalance: creator.Balance}, nil
}

func (s *MemoryStore) BountyByID(_ context.Context, id string) (Bounty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bounties[id]
	if !ok {
		return Bounty{}, ErrBountyNotFound
	}
	return *b, nil
}

func (s *MemoryStore) ListBounties(_ context.Context, status BountyStatus, limit int) ([]Bounty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Bounty
	for _, b := range s.bounties {
		if b.Status == status {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Reward != out[j].Reward {
			return out[i].Reward > out[j].Reward
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) AgentBounties(_ context.Context, agentID string) (created, claimed []Bounty, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.bounties {
		if b.CreatorID == agentID {
			created = append(created, *b)
		}
		if b.ClaimedBy == agentID {
			claimed = append(claimed, *b)
		}
	}
	sort.Slice(created, func(i, j int) bool { return created[i].CreatedAt.After(created[j].CreatedAt) })
	sort.Slice(claimed, func(i, j int) bool {
		ci, cj := claimed[i].ClaimedAt, claimed[j].ClaimedAt
		if ci == nil || cj == nil {
			return cj == nil
		}
		return ci.After(*cj)
	})
	return created, claimed, nil
}

func (s *MemoryStore) ClaimBounty(_ context.Context, bountyID, agentID string) (Bounty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bounties[bountyID]
	if !ok {
		return Bounty{}, ErrBountyNotFound
	}
	if b.Status != BountyOpen {
		return Bounty{}, &WrongStateError{Status: b.Status, Want: BountyOpen}
	}
	if b.CreatorID == agentID {
		return Bounty{}, ErrSelfClaim
	}

	now := time.Now().UTC()
	b.Status = BountyClaimed
	b.ClaimedBy = agentID
	b.ClaimedByName = s.nameOf(agentID)
	b.ClaimedAt = &now
	return *b, nil
}

func (s *MemoryStore) SubmitBountyWork(_ context.Context, bountyID, agentID, work string) (Bounty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bounties[bountyID]
	if !ok {
		return Bounty{}, ErrBountyNotFound
	}
	if b.Status != BountyClaimed {
		return Bounty{}, &WrongStateError{Status: b.Status, Want: BountyClaimed}
	}
	if b.ClaimedBy != agentID {
		return Bounty{}, ErrNotClaimant
	}

	now := time.Now().UTC()
	b.Status = BountySubmitted
	b.Submission = work
	b.SubmittedAt = &now
	return *b, nil
}

func (s *MemoryStore) ApproveBounty(_ context.Context, bountyID, creatorID string) (ApproveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bounties[bountyID]
	if !ok {
		return ApproveResult{}, ErrBountyNotFound
	}
	if b.CreatorID != creatorID {
		return ApproveResult{}, ErrNotCreator
	}
	if b.Status != BountySubmitted {
		return ApproveResult{}, &WrongStateError{Status: b.Status, Want: BountySubmitted}
	}

	claimant := s.agents[b.ClaimedBy]
	claimant.Balance += b.Reward
	s.agents[b.ClaimedBy] = claimant

	now := time.Now().UTC()
	b.Status = BountyCompleted
	b.CompletedAt = &now

	tx := Transaction{
		ID:        uuid.NewString(),
		From:      b.CreatorID,
		To:        b.ClaimedBy,
		Amount:    b.Reward,
		Kind:      KindBounty,
		Memo:      "Bounty completed: " + b.Title,
		CreatedAt: now,
	}
	s.txs = append(s.txs, tx)

	return ApproveResult{
		BountyID:      bountyID,
		ClaimantID:    b.ClaimedBy,
		ClaimantName:  claimant.Name,
		Reward:        b.Reward,
		TransactionID: tx.ID,
	}, nil
}

func (s *MemoryStore) CancelBounty(_ context.Context, bountyID, creatorID string) (CancelResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bounties[bountyID]
	if !ok {
		return CancelResult{}, ErrBountyNotFound
	}
	if b.CreatorID != creatorID {
		return CancelResult{}, ErrNotCreator
	}
	if b.Status != BountyOpen {
		return CancelResult{}, &WrongStateError{Status: b.Status, Want: BountyOpen}
	}

	creator := s.agents[creatorID]
	creator.Balance += b.Reward
	s.agents[creatorID] = creator

	b.Status = BountyCancelled

	s.txs = append(s.txs, Transaction{
		ID:        uuid.NewString(),
		From:      creatorID,
		To:        creatorID,
		Amount:    b.Reward,
		Kind:      KindRefund,
		Memo:      "Bounty cancelled: " + b.Title,
		CreatedAt: time.Now().UTC(),
	})

	return CancelResult{BountyID: bountyID, Refunded: b.Reward, NewBalance: creator.Balance}, nil
}

// nameOf must be called with the lock held.
func (s *MemoryStore) nameOf(id string) string {
	if id == "" {
		return ""
	}
	return s.agents[id].Name
}
