package conversation

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Token estimation defaults to the spec's 4-chars/token heuristic
// (EstimateTokens in conversation.go); AccurateTokenCount gives a tiktoken
// count using the cl100k_base encoding for every model. The heuristic remains
// authoritative for the deterministic tests in spec.md §8 (Open Question,
// SPEC_FULL.md §8).

var (
	encoder     *tiktoken.Tiktoken
	encoderOnce sync.Once
	encoderErr  error
)

func encoding() (*tiktoken.Tiktoken, error) {
	encoderOnce.Do(func() {
		encoder, encoderErr = tiktoken.GetEncoding("cl100k_base")
	})
	return encoder, encoderErr
}

// AccurateTokenCount counts tokens in text with tiktoken's cl100k_base
// encoding (there is no per-model encoding lookup), falling back to the
// 4-chars/token heuristic when that encoding cannot be loaded.
func AccurateTokenCount(text string) int {
	enc, err := encoding()
	if err != nil {
		return estimateTokens(text)
	}
	return len(enc.Encode(text, nil, nil))
}
