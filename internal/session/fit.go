package session

import "github.com/samcharles93/crucible/internal/backend"

// FitPrompt fits a system+user prompt into the context window while
// reserving room for generation. System tokens are always retained in
// full; when the user portion overflows its budget only the suffix is
// kept, dropping the earliest user content so the most recent context
// survives. userCap, when positive, further limits the user budget.
func FitPrompt(contextSize int, system, user []backend.Token, maxNewTokens, userCap int) []backend.Token {
	reserve := min(maxNewTokens, contextSize-1)
	if reserve < 0 {
		reserve = 0
	}
	promptBudget := max(1, contextSize-reserve)
	userBudget := max(0, promptBudget-len(system))
	if userCap > 0 {
		userBudget = min(userBudget, userCap)
	}
	if len(user) > userBudget {
		user = user[len(user)-userBudget:]
	}

	out := make([]backend.Token, 0, len(system)+len(user))
	out = append(out, system...)
	return append(out, user...)
}

// FitTokens applies the same tail-keeping rule to an undivided prompt:
// when the tokens exceed contextSize − maxNewTokens, only the suffix that
// fits is kept.
func FitTokens(contextSize int, tokens []backend.Token, maxNewTokens int) []backend.Token {
	budget := max(1, contextSize-maxNewTokens)
	if len(tokens) > budget {
		tokens = tokens[len(tokens)-budget:]
	}
	out := make([]backend.Token, len(tokens))
	copy(out, tokens)
	return out
}
