package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInsufficientFunds occurs when an agent lacks the balance to cover a
	// debit (transfer or bounty stake).
	ErrInsufficientFunds = errors.New("insufficient balance")

	// ErrDuplicateSubmission indicates a submission with the same content hash
	// already exists; the work must not be credited twice.
	ErrDuplicateSubmission = errors.New("duplicate submission")

	// ErrAgentNotFound indicates the referenced agent is not registered.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrBountyNotFound indicates the referenced bounty does not exist.
	ErrBountyNotFound = errors.New("bounty not found")

	// ErrSelfTransfer rejects transfers where sender and recipient match.
	ErrSelfTransfer = errors.New("cannot transfer to yourself")

	// ErrSelfClaim rejects an agent claiming its own bounty.
	ErrSelfClaim = errors.New("cannot claim your own bounty")

	// ErrNotCreator indicates the actor is not the bounty creator.
	ErrNotCreator = errors.New("only the bounty creator may perform this action")

	// ErrNotClaimant indicates the actor did not claim the bounty.
	ErrNotClaimant = errors.New("you did not claim this bounty")
)

// WrongStateError reports a bounty transition attempted from a state that does
// not permit it, naming the bounty's actual current status.
type WrongStateError struct {
	Status BountyStatus
	Want   BountyStatus
}

func (e *WrongStateError) Error() string {
	return fmt.Sprintf("bounty is %s, not %s", e.Status, e.Want)
}

// TransactionKind tags a ledger transaction record.
type TransactionKind string

const (
	KindMint     TransactionKind = "mint"
	KindTransfer TransactionKind = "transfer"
	KindStake    TransactionKind = "stake"
	KindBounty   TransactionKind = "bounty"
	KindRefund   TransactionKind = "refund"
)

// SubmissionStatus is an open enum; validated is the only reachable value
// today but a pending/rejected moderation flow can extend it.
type SubmissionStatus string

const (
	SubmissionValidated SubmissionStatus = "validated"
)

// BountyStatus enumerates the escrow state machine states.
type BountyStatus string

const (
	BountyOpen      BountyStatus = "open"
	BountyClaimed   BountyStatus = "claimed"
	BountySubmitted BountyStatus = "submitted"
	BountyCompleted BountyStatus = "completed"
	BountyCancelled BountyStatus = "cancelled"
)

// Agent is a registered participant with a token balance. Rows are created
// lazily on first authenticated request and never deleted.
type Agent struct {
	ID         string
	Name       string
	Balance    int64
	CreatedAt  time.Time
	LastActive time.Time
}

// Transaction is an immutable append-only ledger record. From is empty for
// minted tokens; stake and refund records are self-to-self.
type Transaction struct {
	ID          string
	From        string
	To          string
	Amount      int64
	Kind        TransactionKind
	ContentHash string
	Memo        string
	CreatedAt   time.Time
}

// HistoryEntry is a transaction joined with agent display names for the
// history endpoint.
type HistoryEntry struct {
	ID        string
	Kind      TransactionKind
	Amount    int64
	Memo      string
	FromName  string
	ToName    string
	CreatedAt time.Time
}

// Submission records credited work, deduplicated by content hash.
type Submission struct {
	ID           string
	AgentID      string
	Task         string
	Output       string
	ContentHash  string
	TokensEarned int64
	Status       SubmissionStatus
	CreatedAt    time.Time
	ValidatedAt  time.Time
}

// Bounty is an escrowed task reward. The reward amount is debited from the
// creator at creation and owned by the bounty until approval or cancellation.
type Bounty struct {
	ID            string
	CreatorID     string
	CreatorName   string
	Title         string
	Description   string
	Reward        int64
	Status        BountyStatus
	ClaimedBy     string
	ClaimedByName string
	ClaimedAt     *time.Time
	Submission    string
	SubmittedAt   *time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time
	ExpiresAt     *time.Time
}

// Stats aggregates network-wide counters for the public status endpoint.
type Stats struct {
	TotalAgents       int64
	TotalSupply       int64
	TotalSubmissions  int64
	TotalTransactions int64
}

// AgentRank is a leaderboard row.
type AgentRank struct {
	Name    string
	Balance int64
}

// RewardCalculator decides the tokens minted for a submission. It is invoked
// inside the mint transaction so the early-adopter decision and the credit
// commit together.
type RewardCalculator interface {
	Tokens(outputLen int, firstSubmission bool, agentCount int64) (tokens int64, bonus bool)
}

// MintParams describes a validated work submission to credit.
type MintParams struct {
	AgentID     string
	Task        string
	Output      string
	ContentHash string
	Memo        string
}

// MintResult reports the outcome of a credited submission.
type MintResult struct {
	SubmissionID string
	Tokens       int64
	Bonus        bool
	NewBalance   int64
}

// TransferParams moves tokens from one agent to another, addressed by the
// recipient's display name.
type TransferParams struct {
	FromID string
	ToName string
	Amount int64
	Memo   string
}

// TransferResult reports a committed transfer.
type TransferResult struct {
	TransactionID string
	ToID          string
	ToName        string
	FromBalance   int64
	ToBalance     int64
}

// CreateBountyParams stakes a reward and opens a bounty.
type CreateBountyParams struct {
	CreatorID   string
	Title       string
	Description string
	Reward      int64
	ExpiresAt   *time.Time
}

// CreateBountyResult reports the staked bounty and the creator's balance.
type CreateBountyResult struct {
	BountyID   string
	Reward     int64
	NewBalance int64
}

// ApproveResult reports a completed bounty payout.
type ApproveResult struct {
	BountyID      string
	ClaimantID    string
	ClaimantName  string
	Reward        int64
	TransactionID string
}

// CancelResult reports a refunded bounty.
type CancelResult struct {
	BountyID   string
	Refunded   int64
	NewBalance int64
}

// Store is the transactional ledger backend. Every mutating operation reads
// and writes as one atomic unit: on any failure the store is left unchanged.
type Store interface {
	// EnsureAgent registers the agent if unknown, otherwise refreshes its
	// last-active timestamp. Idempotent and safe under concurrent first
	// requests for the same identity.
	EnsureAgent(ctx context.Context, id, name string) (Agent, error)

	AgentByID(ctx context.Context, id string) (Agent, error)
	AgentByName(ctx context.Context, name string) (Agent, error)
	Stats(ctx context.Context) (Stats, error)
	Leaderboard(ctx context.Context, limit int) ([]AgentRank, error)
	History(ctx context.Context, agentID string, limit int) ([]HistoryEntry, error)

	// Mint credits a deduplicated work submission: submission insert, balance
	// credit and mint transaction commit atomically or not at all.
	Mint(ctx context.Context, p MintParams) (MintResult, error)

	// Transfer atomically debits the sender, credits the recipient and
	// appends one transfer transaction.
	Transfer(ctx context.Context, p TransferParams) (TransferResult, error)

	CreateBounty(ctx context.Context, p CreateBountyParams) (CreateBountyResult, error)
	BountyByID(ctx context.Context, id string) (Bounty, error)
	ListBounties(ctx context.Context, status BountyStatus, limit int) ([]Bounty, error)
	AgentBounties(ctx context.Context, agentID string) (created, claimed []Bounty, err error)
	ClaimBounty(ctx context.Context, bountyID, agentID string) (Bounty, error)
	SubmitBountyWork(ctx context.Context, bountyID, agentID, work string) (Bounty, error)
	ApproveBounty(ctx context.Context, bountyID, creatorID string) (ApproveResult, error)
	CancelBounty(ctx context.Context, bountyID, creatorID string) (CancelResult, error)
}
