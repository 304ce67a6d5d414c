package session

import (
	"testing"

	"github.com/samcharles93/crucible/internal/backend"
)

func seq(start, n int) []backend.Token {
	out := make([]backend.Token, n)
	for i := range out {
		out[i] = backend.Token(start + i)
	}
	return out
}

func equalTokens(a, b []backend.Token) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFitPrompt(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name         string
		contextSize  int
		system, user []backend.Token
		maxNewTokens int
		userCap      int
		want         []backend.Token
	}{
		{
			name:        "everything-fits",
			contextSize: 32, system: seq(0, 4), user: seq(100, 8),
			maxNewTokens: 8,
			want:         append(seq(0, 4), seq(100, 8)...),
		},
		{
			name:        "user-keeps-suffix",
			contextSize: 16, system: seq(0, 3), user: seq(100, 9),
			maxNewTokens: 8,
			// reserve=8, budget=8, user budget=5: drop the first four.
			want: append(seq(0, 3), seq(104, 5)...),
		},
		{
			name:        "system-never-truncated",
			contextSize: 8, system: seq(0, 9), user: seq(100, 4),
			maxNewTokens: 5,
			// The system overflows the window on its own; the user is
			// dropped entirely and the system survives intact.
			want: seq(0, 9),
		},
		{
			name:        "user-cap-tightens-budget",
			contextSize: 64, system: seq(0, 2), user: seq(100, 10),
			maxNewTokens: 8, userCap: 4,
			want: append(seq(0, 2), seq(106, 4)...),
		},
		{
			name:        "generous-budget-reserves-window-minus-one",
			contextSize: 8, system: nil, user: seq(100, 5),
			maxNewTokens: 100,
			// reserve clamps to 7, leaving a single prompt slot.
			want: seq(104, 1),
		},
		{
			name:        "empty-user",
			contextSize: 32, system: seq(0, 4), user: nil,
			maxNewTokens: 8,
			want:         seq(0, 4),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := FitPrompt(tc.contextSize, tc.system, tc.user, tc.maxNewTokens, tc.userCap)
			if !equalTokens(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFitTokens(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name         string
		contextSize  int
		tokens       []backend.Token
		maxNewTokens int
		want         []backend.Token
	}{
		{
			name:        "fits",
			contextSize: 16, tokens: seq(0, 10), maxNewTokens: 4,
			want: seq(0, 10),
		},
		{
			name:        "keeps-suffix",
			contextSize: 16, tokens: seq(0, 20), maxNewTokens: 4,
			want: seq(8, 12),
		},
		{
			name:        "budget-floor-of-one",
			contextSize: 8, tokens: seq(0, 6), maxNewTokens: 12,
			want: seq(5, 1),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := FitTokens(tc.contextSize, tc.tokens, tc.maxNewTokens)
			if !equalTokens(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFitTokensCopies(t *testing.T) {
	t.Parallel()
	src := seq(0, 8)
	got := FitTokens(32, src, 4)
	got[0] = 999
	if src[0] != 0 {
		t.Fatal("FitTokens must not alias the caller's slice")
	}
}
