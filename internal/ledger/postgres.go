package ledger

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// earlyAdopterLockID serializes the agent-count read against concurrent first
// submissions so the bonus cannot be granted past the limit boundary.
const earlyAdopterLockID int64 = 730241

const uniqueViolation = "23505"

// PostgresStore persists the ledger in PostgreSQL. Every mutating operation
// runs in one transaction with row locks on the balances it touches.
type PostgresStore struct {
	db      *pgxpool.Pool
	rewards RewardCalculator
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool, rewards RewardCalculator) *PostgresStore {
	return &PostgresStore{db: db, rewards: rewards}
}

// EnsureAgent registers the agent on first sight and refreshes last_active on
// every later call. A single upsert statement keeps concurrent first requests
// from creating two rows.
func (s *PostgresStore) EnsureAgent(ctx context.Context, id, name string) (Agent, error) {
	row := s.db.QueryRow(ctx, `INSERT INTO agents (id, name) VALUES ($1, $2)
        ON CONFLICT (id) DO UPDATE SET last_active = now()
        RETURNING id, name, balance, created_at, last_active`, id, name)
	return scanAgent(row)
}

// AgentByID fetches an agent by its directory-issued identity key.
func (s *PostgresStore) AgentByID(ctx context.Context, id string) (Agent, error) {
	row := s.db.QueryRow(ctx, `SELECT id, name, balance, created_at, last_active
        FROM agents WHERE id = $1`, id)
	return scanAgent(row)
}

// AgentByName fetches an agent by display name.
func (s *PostgresStore) AgentByName(ctx context.Context, name string) (Agent, error) {
	row := s.db.QueryRow(ctx, `SELECT id, name, balance, created_at, last_active
        FROM agents WHERE name = $1`, name)
	return scanAgent(row)
}

// Stats aggregates network counters for the status endpoint.
func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM agents),
        (SELECT COALESCE(SUM(balance), 0) FROM agents),
        (SELECT COUNT(*) FROM submissions WHERE status = 'validated'),
        (SELECT COUNT(*) FROM transactions)`
	var st Stats
	if err := s.db.QueryRow(ctx, query).Scan(&st.TotalAgents, &st.TotalSupply, &st.TotalSubmissions, &st.TotalTransactions); err != nil {
		return Stats{}, err
	}
	return st, nil
}

// Leaderboard returns the top agents by balance.
func (s *PostgresStore) Leaderboard(ctx context.Context, limit int) ([]AgentRank, error) {
	rows, err := s.db.Query(ctx, `SELECT name, balance FROM agents
        ORDER BY balance DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ranks := make([]AgentRank, 0, limit)
	for rows.Next() {
		var r AgentRank
		if err := rows.Scan(&r.Name, &r.Balance); err != nil {
			return nil, err
		}
		ranks = append(ranks, r)
	}
	return ranks, rows.Err()
}

// History lists the agent's most recent transactions with display names.
func (s *PostgresStore) History(ctx context.Context, agentID string, limit int) ([]HistoryEntry, error) {
	const query = `SELECT t.id, t.kind, t.amount, COALESCE(t.memo, ''), t.created_at,
            COALESCE(fa.name, ''), COALESCE(ta.name, '')
        FROM transactions t
        LEFT JOIN agents fa ON t.from_agent = fa.id
        LEFT JOIN agents ta ON t.to_agent = ta.id
        WHERE t.from_agent = $1 OR t.to_agent = $1
        ORDER BY t.created_at DESC
        LIMIT $2`
	rows, err := s.db.Query(ctx, query, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.Kind, &e.Amount, &e.Memo, &e.CreatedAt, &e.FromName, &e.ToName); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Mint credits a work submission: dedup check, submission insert, balance
// credit and mint transaction in one unit. The reward is computed inside the
// transaction so the first-submission bonus decision commits with the credit.
func (s *PostgresStore) Mint(ctx context.Context, p MintParams) (MintResult, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return MintResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := lockAgent(ctx, tx, p.AgentID); err != nil {
		return MintResult{}, err
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM submissions WHERE content_hash = $1)`, p.ContentHash).Scan(&exists); err != nil {
		return MintResult{}, err
	}
	if exists {
		return MintResult{}, ErrDuplicateSubmission
	}

	var prior int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM submissions WHERE agent_id = $1`, p.AgentID).Scan(&prior); err != nil {
		return MintResult{}, err
	}
	first := prior == 0

	if first {
		// Serialize the bonus eligibility check across concurrent first
		// submissions; released automatically at commit or rollback.
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, earlyAdopterLockID); err != nil {
			return MintResult{}, err
		}
	}

	var agentCount int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM agents`).Scan(&agentCount); err != nil {
		return MintResult{}, err
	}

	tokens, bonus := s.rewards.Tokens(utf8.RuneCountInString(p.Output), first, agentCount)

	subID := uuid.New()
	_, err = tx.Exec(ctx, `INSERT INTO submissions (id, agent_id, task, output, content_hash, tokens_earned, status, validated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		subID, p.AgentID, p.Task, p.Output, p.ContentHash, tokens, SubmissionValidated)
	if err != nil {
		if isUniqueViolation(err) {
			return MintResult{}, ErrDuplicateSubmission
		}
		return MintResult{}, err
	}

	var newBalance int64
	if err := tx.QueryRow(ctx, `UPDATE agents SET balance = balance + $1 WHERE id = $2 RETURNING balance`, tokens, p.AgentID).Scan(&newBalance); err != nil {
		return MintResult{}, err
	}

	if _, err := tx.Exec(ctx, `INSERT INTO transactions (id, to_agent, amount, kind, content_hash, memo)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), p.AgentID, tokens, KindMint, p.ContentHash, p.Memo); err != nil {
		return MintResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return MintResult{}, err
	}

	return MintResult{SubmissionID: subID.String(), Tokens: tokens, Bonus: bonus, NewBalance: newBalance}, nil
}

// Transfer moves tokens between agents, debiting and crediting under row
// locks taken in a stable order.
func (s *PostgresStore) Transfer(ctx context.Context, p TransferParams) (TransferResult, error) {
	if p.Amount <= 0 {
		return TransferResult{}, fmt.Errorf("amount must be positive")
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TransferResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var toID string
	if err := tx.QueryRow(ctx, `SELECT id FROM agents WHERE name = $1`, p.ToName).Scan(&toID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TransferResult{}, ErrAgentNotFound
		}
		return TransferResult{}, err
	}
	if toID == p.FromID {
		return TransferResult{}, ErrSelfTransfer
	}

	// Lock both rows in id order to avoid deadlocks between crossing
	// transfers.
	lockOrder := []string{p.FromID, toID}
	if lockOrder[1] < lockOrder[0] {
		lockOrder[0], lockOrder[1] = lockOrder[1], lockOrder[0]
	}
	balances := make(map[string]int64, 2)
	for _, id := range lockOrder {
		bal, err := lockAgent(ctx, tx, id)
		if err != nil {
			return TransferResult{}, err
		}
		balances[id] = bal
	}

	if balances[p.FromID] < p.Amount {
		return TransferResult{}, ErrInsufficientFunds
	}

	var fromBalance, toBalance int64
	if err := tx.QueryRow(ctx, `UPDATE agents SET balance = balance - $1 WHERE id = $2 RETURNING balance`, p.Amount, p.FromID).Scan(&fromBalance); err != nil {
		return TransferResult{}, err
	}
	if err := tx.QueryRow(ctx, `UPDATE agents SET balance = balance + $1 WHERE id = $2 RETURNING balance`, p.Amount, toID).Scan(&toBalance); err != nil {
		return TransferResult{}, err
	}

	txID := uuid.New()
	if _, err := tx.Exec(ctx, `INSERT INTO transactions (id, from_agent, to_agent, amount, kind, memo)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		txID, p.FromID, toID, p.Amount, KindTransfer, p.Memo); err != nil {
		return TransferResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TransferResult{}, err
	}

	return TransferResult{
		TransactionID: txID.String(),
		ToID:          toID,
		ToName:        p.ToName,
		FromBalance:   fromBalance,
		ToBalance:     toBalance,
	}, nil
}

// CreateBounty stakes the reward out of the creator's balance and opens the
// bounty, recording a self-to-self stake transaction.
func (s *PostgresStore) CreateBounty(ctx context.Context, p CreateBountyParams) (CreateBountyResult, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return CreateBountyResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	balance, err := lockAgent(ctx, tx, p.CreatorID)
	if err != nil {
		return CreateBountyResult{}, err
	}
	if balance < p.Reward {
		return CreateBountyResult{}, ErrInsufficientFunds
	}

	var newBalance int64
	if err := tx.QueryRow(ctx, `UPDATE agents SET balance = balance - $1 WHERE id = $2 RETURNING balance`, p.Reward, p.CreatorID).Scan(&newBalance); err != nil {
		return CreateBountyResult{}, err
	}

	bountyID := uuid.New()
	if _, err := tx.Exec(ctx, `INSERT INTO bounties (id, creator_id, title, description, reward, status, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		bountyID, p.CreatorID, p.Title, p.Description, p.Reward, BountyOpen, p.ExpiresAt); err != nil {
		return CreateBountyResult{}, err
	}

	if _, err := tx.Exec(ctx, `INSERT INTO transactions (id, from_agent, to_agent, amount, kind, memo)
        VALUES ($1, $2, $2, $3, $4, $5)`,
		uuid.New(), p.CreatorID, p.Reward, KindStake, "Bounty stake: "+p.Title); err != nil {
		return CreateBountyResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return CreateBountyResult{}, err
	}

	return CreateBountyResult{BountyID: bountyID.String(), Reward: p.Reward, NewBalance: newBalance}, nil
}

// BountyByID fetches a bounty with creator and claimant display names.
func (s *PostgresStore) BountyByID(ctx context.Context, id string) (Bounty, error) {
	row := s.db.QueryRow(ctx, bountySelect+` WHERE b.id = $1`, id)
	b, err := scanBounty(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bounty{}, ErrBountyNotFound
		}
		return Bounty{}, err
	}
	return b, nil
}

// ListBounties returns bounties in the given status, highest reward first.
func (s *PostgresStore) ListBounties(ctx context.Context, status BountyStatus, limit int) ([]Bounty, error) {
	rows, err := s.db.Query(ctx, bountySelect+` WHERE b.status = $1
        ORDER BY b.reward DESC, b.created_at DESC LIMIT $2`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBounties(rows)
}

// AgentBounties returns the bounties the agent created and the ones it
// claimed.
func (s *PostgresStore) AgentBounties(ctx context.Context, agentID string) (created, claimed []Bounty, err error) {
	rows, err := s.db.Query(ctx, bountySelect+` WHERE b.creator_id = $1 ORDER BY b.created_at DESC`, agentID)
	if err != nil {
		return nil, nil, err
	}
	created, err = collectBounties(rows)
	rows.Close()
	if err != nil {
		return nil, nil, err
	}

	rows, err = s.db.Query(ctx, bountySelect+` WHERE b.claimed_by = $1 ORDER BY b.claimed_at DESC`, agentID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	claimed, err = collectBounties(rows)
	if err != nil {
		return nil, nil, err
	}
	return created, claimed, nil
}

// ClaimBounty transitions an open bounty to claimed for the acting agent.
func (s *PostgresStore) ClaimBounty(ctx context.Context, bountyID, agentID string) (Bounty, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Bounty{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	b, err := lockBounty(ctx, tx, bountyID)
	if err != nil {
		return Bounty{}, err
	}
	if b.Status != BountyOpen {
		return Bounty{}, &WrongStateError{Status: b.Status, Want: BountyOpen}
	}
	if b.CreatorID == agentID {
		return Bounty{}, ErrSelfClaim
	}

	if _, err := tx.Exec(ctx, `UPDATE bounties SET status = $1, claimed_by = $2, claimed_at = now()
        WHERE id = $3`, BountyClaimed, agentID, bountyID); err != nil {
		return Bounty{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Bounty{}, err
	}
	return s.BountyByID(ctx, bountyID)
}

// SubmitBountyWork stores the claimant's work and transitions the bounty to
// submitted.
func (s *PostgresStore) SubmitBountyWork(ctx context.Context, bountyID, agentID, work string) (Bounty, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Bounty{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	b, err := lockBounty(ctx, tx, bountyID)
	if err != nil {
		return Bounty{}, err
	}
	if b.Status != BountyClaimed {
		return Bounty{}, &WrongStateError{Status: b.Status, Want: BountyClaimed}
	}
	if b.ClaimedBy != agentID {
		return Bounty{}, ErrNotClaimant
	}

	if _, err := tx.Exec(ctx, `UPDATE bounties SET status = $1, submission = $2, submitted_at = now()
        WHERE id = $3`, BountySubmitted, work, bountyID); err != nil {
		return Bounty{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Bounty{}, err
	}
	return s.BountyByID(ctx, bountyID)
}

// ApproveBounty pays the escrowed reward to the claimant and completes the
// bounty, appending a bounty transaction from creator to claimant.
func (s *PostgresStore) ApproveBounty(ctx context.Context, bountyID, creatorID string) (ApproveResult, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ApproveResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	b, err := lockBounty(ctx, tx, bountyID)
	if err != nil {
		return ApproveResult{}, err
	}
	if b.CreatorID != creatorID {
		return ApproveResult{}, ErrNotCreator
	}
	if b.Status != BountySubmitted {
		return ApproveResult{}, &WrongStateError{Status: b.Status, Want: BountySubmitted}
	}

	if _, err := lockAgent(ctx, tx, b.ClaimedBy); err != nil {
		return ApproveResult{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE agents SET balance = balance + $1 WHERE id = $2`, b.Reward, b.ClaimedBy); err != nil {
		return ApproveResult{}, err
	}

	if _, err := tx.Exec(ctx, `UPDATE bounties SET status = $1, completed_at = now() WHERE id = $2`,
		BountyCompleted, bountyID); err != nil {
		return ApproveResult{}, err
	}

	txID := uuid.New()
	if _, err := tx.Exec(ctx, `INSERT INTO transactions (id, from_agent, to_agent, amount, kind, memo)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		txID, b.CreatorID, b.ClaimedBy, b.Reward, KindBounty, "Bounty completed: "+b.Title); err != nil {
		return ApproveResult{}, err
	}

	var claimantName string
	if err := tx.QueryRow(ctx, `SELECT name FROM agents WHERE id = $1`, b.ClaimedBy).Scan(&claimantName); err != nil {
		return ApproveResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return ApproveResult{}, err
	}

	return ApproveResult{
		BountyID:      bountyID,
		ClaimantID:    b.ClaimedBy,
		ClaimantName:  claimantName,
		Reward:        b.Reward,
		TransactionID: txID.String(),
	}, nil
}

// CancelBounty refunds the stake to the creator and cancels an open bounty,
// appending a self-to-self refund transaction.
func (s *PostgresStore) CancelBounty(ctx context.Context, bountyID, creatorID string) (CancelResult, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return CancelResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	b, err := lockBounty(ctx, tx, bountyID)
	if err != nil {
		return CancelResult{}, err
	}
	if b.CreatorID != creatorID {
		return CancelResult{}, ErrNotCreator
	}
	if b.Status != BountyOpen {
		return CancelResult{}, &WrongStateError{Status: b.Status, Want: BountyOpen}
	}

	if _, err := lockAgent(ctx, tx, creatorID); err != nil {
		return CancelResult{}, err
	}
	var newBalance int64
	if err := tx.QueryRow(ctx, `UPDATE agents SET balance = balance + $1 WHERE id = $2 RETURNING balance`, b.Reward, creatorID).Scan(&newBalance); err != nil {
		return CancelResult{}, err
	}

	if _, err := tx.Exec(ctx, `UPDATE bounties SET status = $1 WHERE id = $2`, BountyCancelled, bountyID); err != nil {
		return CancelResult{}, err
	}

	if _, err := tx.Exec(ctx, `INSERT INTO transactions (id, from_agent, to_agent, amount, kind, memo)
        VALUES ($1, $2, $2, $3, $4, $5)`,
		uuid.New(), creatorID, b.Reward, KindRefund, "Bounty cancelled: "+b.Title); err != nil {
		return CancelResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return CancelResult{}, err
	}

	return CancelResult{BountyID: bountyID, Refunded: b.Reward, NewBalance: newBalance}, nil
}

const bountySelect = `SELECT b.id, b.creator_id, ca.name, b.title, b.description, b.reward, b.status,
        COALESCE(b.claimed_by, ''), COALESCE(cla.name, ''), b.claimed_at,
        COALESCE(b.submission, ''), b.submitted_at, b.completed_at, b.created_at, b.expires_at
    FROM bounties b
    JOIN agents ca ON b.creator_id = ca.id
    LEFT JOIN agents cla ON b.claimed_by = cla.id`

func scanAgent(row pgx.Row) (Agent, error) {
	var a Agent
	if err := row.Scan(&a.ID, &a.Name, &a.Balance, &a.CreatedAt, &a.LastActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Agent{}, ErrAgentNotFound
		}
		return Agent{}, err
	}
	return a, nil
}

func scanBounty(row pgx.Row) (Bounty, error) {
	var b Bounty
	err := row.Scan(&b.ID, &b.CreatorID, &b.CreatorName, &b.Title, &b.Description, &b.Reward, &b.Status,
		&b.ClaimedBy, &b.ClaimedByName, &b.ClaimedAt,
		&b.Submission, &b.SubmittedAt, &b.CompletedAt, &b.CreatedAt, &b.ExpiresAt)
	if err != nil {
		return Bounty{}, err
	}
	return b, nil
}

func collectBounties(rows pgx.Rows) ([]Bounty, error) {
	var bounties []Bounty
	for rows.Next() {
		b, err := scanBounty(rows)
		if err != nil {
			return nil, err
		}
		bounties = append(bounties, b)
	}
	return bounties, rows.Err()
}

func lockAgent(ctx context.Context, tx pgx.Tx, id string) (int64, error) {
	var balance int64
	if err := tx.QueryRow(ctx, `SELECT balance FROM agents WHERE id = $1 FOR UPDATE`, id).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAgentNotFound
		}
		return 0, err
	}
	return balance, nil
}

func lockBounty(ctx context.Context, tx pgx.Tx, id string) (Bounty, error) {
	row := tx.QueryRow(ctx, `SELECT id, creator_id, title, reward, status, COALESCE(claimed_by, '')
        FROM bounties WHERE id = $1 FOR UPDATE`, id)
	var b Bounty
	if err := row.Scan(&b.ID, &b.CreatorID, &b.Title, &b.Reward, &b.Status, &b.ClaimedBy); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bounty{}, ErrBountyNotFound
		}
		return Bounty{}, err
	}
	return b, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
