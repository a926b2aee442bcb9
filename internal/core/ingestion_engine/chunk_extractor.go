package ingestion_engine

import (
	"strings"
)

const (
	DefaultChunkSize    = 2000
	DefaultChunkOverlap = 400

	// sectionLookback is how far back a summary section end may snap to a
	// sentence or line break.
	sectionLookback = 1000
)

// SplitText cuts text into overlapping retrieval windows measured in runes.
// Window i starts at i*(size-overlap) and spans up to size runes; the last
// window may be shorter. Invalid parameters are normalized rather than rejected.
func SplitText(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 5
	}

	rs := []rune(text)
	step := size - overlap

	var out []string
	for start := 0; start < len(rs); start += step {
		end := min(start+size, len(rs))
		out = append(out, string(rs[start:end]))
	}
	return out
}

// SplitSections cuts text into at most maxSections non-overlapping sections of
// about size runes for summarization. A section end that falls inside the
// text snaps back to just after the last '.', '!', '?' or '\n' in the
// lookback window. Text past the last section is dropped.
func SplitSections(text string, size, maxSections int) []string {
	if size <= 0 || maxSections <= 0 {
		return nil
	}

	rs := []rune(text)
	var out []string
	start := 0
	for start < len(rs) && len(out) < maxSections {
		end := start + size
		if end < len(rs) {
			end = snapBack(rs, start, end)
		} else {
			end = len(rs)
		}

		if s := strings.TrimSpace(string(rs[start:end])); s != "" {
			out = append(out, s)
		}
		start = end
	}
	return out
}

// snapBack returns the position just after the last break in (start, end),
// looking back at most sectionLookback runes, or end when there is none.
func snapBack(rs []rune, start, end int) int {
	lo := max(end-sectionLookback, start+1)
	for j := end - 1; j >= lo; j-- {
		switch rs[j] {
		case '.', '!', '?', '\n':
			return j + 1
		}
	}
	return end
}
