package evaluator

import (
	"log/slog"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// CountTokens counts prompt tokens using the cl100k_base encoding shared by
// modern chat models. When the encoding cannot be loaded it estimates at four
// characters per token, which is close enough for budget trimming.
func CountTokens(s string) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			slog.Warn("tiktoken encoding unavailable; estimating token counts", slog.Any("error", err))
			return
		}
		encoding = enc
	})
	if encoding == nil {
		return (len(s) + 3) / 4
	}
	return len(encoding.Encode(s, nil, nil))
}
