// Package budget estimates token counts so retrieved context can be cut to
// fit the chat model's window. Backends use different tokenizers, so the
// estimate is a character heuristic: 1 token ≈ 4 characters.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// messageOverhead is the per-message token cost most chat APIs add.
	messageOverhead = 4

	// DefaultMaxContextTokens is the default input budget in tokens. It fits
	// 8k-context models (llama3 8B) with room left for the answer.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count of msgs,
// including role and per-message overhead.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += messageOverhead
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// FitChunks returns how many of chunks, taken in order, fit alongside fixed
// within maxTokens. Chunks are ranked most relevant first, so the tail is
// dropped. At least one chunk is always kept when chunks is non-empty; an
// answer grounded on a single oversized chunk beats no answer.
func FitChunks(fixed []*schema.Message, chunks []string, maxTokens int) int {
	if len(chunks) == 0 {
		return 0
	}
	used := EstimateMessages(fixed)
	n := 0
	for _, c := range chunks {
		used += Estimate(c) + 1 // joining newline
		if used > maxTokens && n > 0 {
			break
		}
		n++
	}
	return n
}
