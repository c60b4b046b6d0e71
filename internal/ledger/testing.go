package ledger

// SeedBalance is a test helper that overwrites an agent's balance when using
// the in-memory store.
func SeedBalance(s Store, agentID string, amount int64) {
	if mem, ok := s.(*MemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		a := mem.agents[agentID]
		a.Balance = amount
		mem.agents[agentID] = a
	}
}
