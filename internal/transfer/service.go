package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentcoin/agentcoin/internal/ledger"
	"github.com/agentcoin/agentcoin/internal/notification"
)

var (
	// ErrMissingFields indicates the recipient or amount was absent.
	ErrMissingFields = errors.New("missing recipient (to) or amount")

	// ErrNonPositiveAmount rejects zero and negative transfer amounts.
	ErrNonPositiveAmount = errors.New("amount must be positive")
)

// Service moves tokens between registered agents.
type Service struct {
	store    ledger.Store
	notifier notification.Notifier
}

// NewService builds a transfer service.
func NewService(store ledger.Store, notifier notification.Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// Input captures a requested transfer. The recipient is addressed by display
// name and must already be registered.
type Input struct {
	ToName string
	Amount int64
	Memo   string
}

// Result reports a committed transfer.
type Result struct {
	TransactionID string
	ToName        string
	Amount        int64
	NewBalance    int64
}

// Send debits the sender and credits the recipient atomically, recording one
// transfer transaction. Each failure mode surfaces as a distinct error.
func (s *Service) Send(ctx context.Context, sender ledger.Agent, input Input) (Result, error) {
	if input.ToName == "" || input.Amount == 0 {
		return Result{}, ErrMissingFields
	}
	if input.Amount < 0 {
		return Result{}, ErrNonPositiveAmount
	}

	res, err := s.store.Transfer(ctx, ledger.TransferParams{
		FromID: sender.ID,
		ToName: input.ToName,
		Amount: input.Amount,
		Memo:   input.Memo,
	})
	if err != nil {
		return Result{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransfer,
			Destination: res.ToID,
			Body:        fmt.Sprintf("Received %d AGC from %s", input.Amount, sender.Name),
		})
	}

	return Result{
		TransactionID: res.TransactionID,
		ToName:        res.ToName,
		Amount:        input.Amount,
		NewBalance:    res.FromBalance,
	}, nil
}
