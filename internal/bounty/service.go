package bounty

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/agentcoin/agentcoin/internal/ledger"
	"github.com/agentcoin/agentcoin/internal/notification"
)

const (
	// MinReward is the smallest stake a bounty may offer.
	MinReward = 5
	// MinWorkChars is the shortest accepted bounty submission.
	MinWorkChars = 50
)

var (
	// ErrMissingFields indicates title, description or reward was absent.
	ErrMissingFields = errors.New("missing title, description, or reward")

	// ErrRewardTooSmall rejects stakes below the minimum.
	ErrRewardTooSmall = fmt.Errorf("minimum reward is %d AGC", MinReward)

	// ErrWorkTooShort rejects bounty submissions below the minimum length.
	ErrWorkTooShort = fmt.Errorf("submission must be at least %d characters", MinWorkChars)
)

// Service runs the bounty escrow lifecycle on top of the ledger store.
type Service struct {
	store    ledger.Store
	notifier notification.Notifier
}

// NewService builds a bounty service.
func NewService(store ledger.Store, notifier notification.Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// CreateInput captures a new bounty. ExpiresInHours of zero means no expiry.
type CreateInput struct {
	Title          string
	Description    string
	Reward         int64
	ExpiresInHours int64
}

// Create stakes the reward from the creator's balance and opens the bounty.
func (s *Service) Create(ctx context.Context, creator ledger.Agent, input CreateInput) (ledger.CreateBountyResult, error) {
	if input.Title == "" || input.Description == "" || input.Reward == 0 {
		return ledger.CreateBountyResult{}, ErrMissingFields
	}
	if input.Reward < MinReward {
		return ledger.CreateBountyResult{}, ErrRewardTooSmall
	}

	var expiresAt *time.Time
	if input.ExpiresInHours > 0 {
		t := time.Now().UTC().Add(time.Duration(input.ExpiresInHours) * time.Hour)
		expiresAt = &t
	}

	return s.store.CreateBounty(ctx, ledger.CreateBountyParams{
		CreatorID:   creator.ID,
		Title:       input.Title,
		Description: input.Description,
		Reward:      input.Reward,
		ExpiresAt:   expiresAt,
	})
}

// Get returns a bounty with display names resolved.
func (s *Service) Get(ctx context.Context, id string) (ledger.Bounty, error) {
	return s.store.BountyByID(ctx, id)
}

// List returns bounties in the given status, highest reward first.
func (s *Service) List(ctx context.Context, status ledger.BountyStatus, limit int) ([]ledger.Bounty, error) {
	return s.store.ListBounties(ctx, status, limit)
}

// Mine returns the bounties the agent created and claimed.
func (s *Service) Mine(ctx context.Context, agent ledger.Agent) (created, claimed []ledger.Bounty, err error) {
	return s.store.AgentBounties(ctx, agent.ID)
}

// Claim moves an open bounty to claimed for the acting agent.
func (s *Service) Claim(ctx context.Context, agent ledger.Agent, bountyID string) (ledger.Bounty, error) {
	b, err := s.store.ClaimBounty(ctx, bountyID, agent.ID)
	if err != nil {
		return ledger.Bounty{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindBountyClaimed,
			Destination: b.CreatorID,
			Body:        fmt.Sprintf("%s claimed your bounty %q", agent.Name, b.Title),
		})
	}
	return b, nil
}

// SubmitWork stores the claimant's work and moves the bounty to submitted.
func (s *Service) SubmitWork(ctx context.Context, agent ledger.Agent, bountyID, work string) (ledger.Bounty, error) {
	if utf8.RuneCountInString(work) < MinWorkChars {
		return ledger.Bounty{}, ErrWorkTooShort
	}

	b, err := s.store.SubmitBountyWork(ctx, bountyID, agent.ID, work)
	if err != nil {
		return ledger.Bounty{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindBountySubmitted,
			Destination: b.CreatorID,
			Body:        fmt.Sprintf("Work submitted for your bounty %q", b.Title),
		})
	}
	return b, nil
}

// Approve pays the escrowed reward to the claimant and completes the bounty.
func (s *Service) Approve(ctx context.Context, creator ledger.Agent, bountyID string) (ledger.ApproveResult, error) {
	res, err := s.store.ApproveBounty(ctx, bountyID, creator.ID)
	if err != nil {
		return ledger.ApproveResult{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindBountyPaid,
			Destination: res.ClaimantID,
			Body:        fmt.Sprintf("Bounty approved, %d AGC paid out", res.Reward),
		})
	}
	return res, nil
}

// Cancel refunds the stake to the creator and cancels an open bounty.
func (s *Service) Cancel(ctx context.Context, creator ledger.Agent, bountyID string) (ledger.CancelResult, error) {
	return s.store.CancelBounty(ctx, bountyID, creator.ID)
}
