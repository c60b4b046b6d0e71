package notification

import (
	"context"
	"log/slog"
)

const (
	// KindReward indicates tokens minted for submitted work.
	KindReward = "work_reward"
	// KindTransfer indicates tokens received from another agent.
	KindTransfer = "transfer_received"
	// KindBountyClaimed indicates an agent claimed the creator's bounty.
	KindBountyClaimed = "bounty_claimed"
	// KindBountySubmitted indicates work was submitted for the creator's bounty.
	KindBountySubmitted = "bounty_submitted"
	// KindBountyPaid indicates a bounty reward was paid to the claimant.
	KindBountyPaid = "bounty_paid"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}
