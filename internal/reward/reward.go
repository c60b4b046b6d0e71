package reward

const (
	// CharsPerToken is the output length covered by one base token.
	CharsPerToken = 100
	// MinTokens and MaxTokens clamp the base reward.
	MinTokens = 1
	MaxTokens = 100
	// EarlyAdopterBonus is added once to an agent's first submission while
	// the network still has early-adopter spots.
	EarlyAdopterBonus = 50
	// EarlyAdopterLimit is the registered-agent count up to which the bonus
	// is granted.
	EarlyAdopterLimit = 10
)

// Calculator computes tokens earned for a submission. It is deterministic:
// the same inputs always yield the same reward.
type Calculator struct{}

// NewCalculator returns a calculator with the network's standard parameters.
func NewCalculator() Calculator {
	return Calculator{}
}

// Tokens returns the reward for a submission of outputLen characters. Base is
// ceil(outputLen/100) clamped to [1, 100]; the early-adopter bonus applies
// only on an agent's first submission while agentCount is within the limit.
func (Calculator) Tokens(outputLen int, firstSubmission bool, agentCount int64) (int64, bool) {
	base := int64((outputLen + CharsPerToken - 1) / CharsPerToken)
	if base < MinTokens {
		base = MinTokens
	}
	if base > MaxTokens {
		base = MaxTokens
	}

	if firstSubmission && agentCount <= EarlyAdopterLimit {
		return base + EarlyAdopterBonus, true
	}
	return base, false
}

// SpotsRemaining reports how many early-adopter bonus slots are left given
// the current registered-agent count.
func SpotsRemaining(agentCount int64) int64 {
	remaining := EarlyAdopterLimit - agentCount
	if remaining < 0 {
		return 0
	}
	return remaining
}
