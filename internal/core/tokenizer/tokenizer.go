package tokenizer

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/markdave123-py/ragdesk/internal/logger"
)

func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

func encoding() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			logger.NewModuleLogger("tokenizer", "tiktoken").Warn("cl100k_base unavailable, estimating tokens", "error", err)
			return
		}
		enc = e
	})
	return enc
}

// Count returns the cl100k_base token count of s, or a ~4 chars per token
// estimate when the encoding cannot be loaded.
func Count(s string) int {
	if s == "" {
		return 0
	}
	if e := encoding(); e != nil {
		return len(e.Encode(s, nil, nil))
	}
	return Approx(s)
}

// Approx is a cheap token estimator (~4 chars ≈ 1 token).
func Approx(s string) int {
	n := utf8.RuneCountInString(s)
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}
