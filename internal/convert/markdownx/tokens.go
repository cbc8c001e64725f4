package markdownx

import (
	"math"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const exactTokenCountCharLimit = 500_000

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

func getEncoding() *tiktoken.Tiktoken {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	return encoding
}

// CountTokens returns an exact BPE count for text up to 500,000 characters,
// falling back to ceil(len/4) above that threshold.
func CountTokens(text string) int {
	if len(text) > exactTokenCountCharLimit {
		return int(math.Ceil(float64(len(text)) / 4))
	}
	enc := getEncoding()
	if enc == nil {
		return int(math.Ceil(float64(len(text)) / 4))
	}
	return len(enc.Encode(text, nil, nil))
}
