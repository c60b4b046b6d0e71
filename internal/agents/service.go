package agents

import (
	"context"

	"github.com/agentcoin/agentcoin/internal/ledger"
)

// Service exposes the ledger's read paths: balances, history, leaderboard and
// network statistics.
type Service struct {
	store ledger.Store
}

// NewService builds an agents service.
func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

// Profile returns the public view of an agent by display name.
func (s *Service) Profile(ctx context.Context, name string) (ledger.Agent, error) {
	return s.store.AgentByName(ctx, name)
}

// History lists the agent's most recent transactions.
func (s *Service) History(ctx context.Context, agent ledger.Agent, limit int) ([]ledger.HistoryEntry, error) {
	return s.store.History(ctx, agent.ID, limit)
}

// Leaderboard returns the top agents by balance.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]ledger.AgentRank, error) {
	return s.store.Leaderboard(ctx, limit)
}

// Stats aggregates network counters.
func (s *Service) Stats(ctx context.Context) (ledger.Stats, error) {
	return s.store.Stats(ctx)
}
