package mining

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/agentcoin/agentcoin/internal/ledger"
	"github.com/agentcoin/agentcoin/internal/notification"
)

// MinOutputChars is the shortest output accepted for a work submission.
const MinOutputChars = 50

var (
	// ErrMissingFields indicates the task or output field was absent.
	ErrMissingFields = errors.New("missing task or output")

	// ErrOutputTooShort indicates the output did not meet the minimum length.
	ErrOutputTooShort = fmt.Errorf("output too short (min %d chars)", MinOutputChars)
)

// Service credits agents for submitted work, deduplicating by content hash.
type Service struct {
	store    ledger.Store
	notifier notification.Notifier
}

// NewService builds a mining service.
func NewService(store ledger.Store, notifier notification.Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// Result reports a credited submission.
type Result struct {
	SubmissionID string
	Tokens       int64
	Bonus        bool
	NewBalance   int64
}

// ContentHash returns the deduplication digest over the exact task and output
// concatenation.
func ContentHash(task, output string) string {
	sum := sha256.Sum256([]byte(task + output))
	return hex.EncodeToString(sum[:])
}

// Submit validates and credits a work submission for the agent. The
// submission insert, balance credit and mint transaction commit as one unit
// in the store; a repeated (task, output) pair fails with
// ledger.ErrDuplicateSubmission and credits nothing.
func (s *Service) Submit(ctx context.Context, agent ledger.Agent, task, output string) (Result, error) {
	if task == "" || output == "" {
		return Result{}, ErrMissingFields
	}
	if utf8.RuneCountInString(output) < MinOutputChars {
		return Result{}, ErrOutputTooShort
	}

	res, err := s.store.Mint(ctx, ledger.MintParams{
		AgentID:     agent.ID,
		Task:        task,
		Output:      output,
		ContentHash: ContentHash(task, output),
		Memo:        "Work submission reward",
	})
	if err != nil {
		return Result{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindReward,
			Destination: agent.ID,
			Body:        fmt.Sprintf("Earned %d AGC for submitted work", res.Tokens),
		})
	}

	return Result{SubmissionID: res.SubmissionID, Tokens: res.Tokens, Bonus: res.Bonus, NewBalance: res.NewBalance}, nil
}

// Mine is the simplified submission path: the task label is derived from the
// current time, so identical work resubmitted later still dedups on the
// (task, work) pair.
func (s *Service) Mine(ctx context.Context, agent ledger.Agent, work string) (Result, error) {
	if work == "" || utf8.RuneCountInString(work) < MinOutputChars {
		return Result{}, ErrOutputTooShort
	}

	task := "Mining submission at " + time.Now().UTC().Format(time.RFC3339)
	res, err := s.store.Mint(ctx, ledger.MintParams{
		AgentID:     agent.ID,
		Task:        task,
		Output:      work,
		ContentHash: ContentHash(task, work),
		Memo:        "Mining reward",
	})
	if err != nil {
		return Result{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindReward,
			Destination: agent.ID,
			Body:        fmt.Sprintf("Mined %d AGC", res.Tokens),
		})
	}

	return Result{SubmissionID: res.SubmissionID, Tokens: res.Tokens, Bonus: res.Bonus, NewBalance: res.NewBalance}, nil
}
