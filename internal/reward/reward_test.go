package reward

import "testing"

func TestTokensClampsBase(t *testing.T) {
	calc := NewCalculator()

	cases := []struct {
		outputLen int
		want      int64
	}{
		{0, 1},
		{1, 1},
		{100, 1},
		{101, 2},
		{250, 3},
		{10_000, 100},
		{1_000_000, 100},
	}

	for _, tc := range cases {
		got, bonus := calc.Tokens(tc.outputLen, false, 50)
		if got != tc.want {
			t.Errorf("Tokens(%d) = %d, want %d", tc.outputLen, got, tc.want)
		}
		if bonus {
			t.Errorf("Tokens(%d) granted bonus on a non-first submission", tc.outputLen)
		}
	}
}

func TestEarlyAdopterBonus(t *testing.T) {
	calc := NewCalculator()

	got, bonus := calc.Tokens(100, true, 3)
	if got != 1+EarlyAdopterBonus || !bonus {
		t.Fatalf("expected %d with bonus, got %d (bonus=%v)", 1+EarlyAdopterBonus, got, bonus)
	}

	// Boundary: count equal to the limit still qualifies.
	got, bonus = calc.Tokens(100, true, EarlyAdopterLimit)
	if got != 1+EarlyAdopterBonus || !bonus {
		t.Fatalf("expected bonus at the limit boundary, got %d (bonus=%v)", got, bonus)
	}

	// One past the limit does not.
	got, bonus = calc.Tokens(100, true, EarlyAdopterLimit+1)
	if got != 1 || bonus {
		t.Fatalf("expected no bonus past the limit, got %d (bonus=%v)", got, bonus)
	}

	// Non-first submissions never qualify.
	got, bonus = calc.Tokens(100, false, 1)
	if got != 1 || bonus {
		t.Fatalf("expected no bonus on repeat submission, got %d (bonus=%v)", got, bonus)
	}
}

func TestSpotsRemaining(t *testing.T) {
	if got := SpotsRemaining(0); got != EarlyAdopterLimit {
		t.Fatalf("expected %d spots, got %d", EarlyAdopterLimit, got)
	}
	if got := SpotsRemaining(EarlyAdopterLimit); got != 0 {
		t.Fatalf("expected 0 spots, got %d", got)
	}
	if got := SpotsRemaining(EarlyAdopterLimit + 5); got != 0 {
		t.Fatalf("expected 0 spots past the limit, got %d", got)
	}
}
