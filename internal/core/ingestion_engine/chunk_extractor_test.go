package ingestion_engine

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTextOffsets(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 9000; i++ {
		b.WriteByte(byte('a' + i%26))
	}
	text := b.String()

	chunks := SplitText(text, 2000, 400)
	require.Len(t, chunks, 6)
	for i, ch := range chunks {
		start := i * 1600
		end := min(start+2000, len(text))
		assert.Equal(t, text[start:end], ch, "chunk %d", i)
	}
	assert.Len(t, chunks[5], 1000)
}

func TestSplitTextReconstructs(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps. ", 173)
	const w, o = 300, 70

	chunks := SplitText(text, w, o)
	require.NotEmpty(t, chunks)

	var rebuilt strings.Builder
	rebuilt.WriteString(chunks[0])
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		cur := []rune(chunks[i])
		assert.LessOrEqual(t, len(cur), w)
		assert.Equal(t, string(prev[len(prev)-o:]), string(cur[:o]), "overlap %d", i)
		rebuilt.WriteString(string(cur[o:]))
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestSplitTextRunes(t *testing.T) {
	text := strings.Repeat("é", 25)
	chunks := SplitText(text, 10, 2)
	require.Len(t, chunks, 4)
	for _, ch := range chunks {
		assert.True(t, utf8.ValidString(ch))
		assert.LessOrEqual(t, utf8.RuneCountInString(ch), 10)
	}
}

func TestSplitTextNormalizesParams(t *testing.T) {
	assert.Empty(t, SplitText("", 100, 10))

	// overlap >= size falls back to size/5
	chunks := SplitText(strings.Repeat("x", 100), 10, 10)
	assert.Len(t, chunks, 13)

	chunks = SplitText(strings.Repeat("x", 4500), 0, 0)
	assert.Len(t, chunks, 3)
}

func TestSplitSectionsCount(t *testing.T) {
	text := strings.Repeat("a", 10000)
	sections := SplitSections(text, 4000, 12)
	require.Len(t, sections, 3)
	assert.Len(t, sections[0], 4000)
	assert.Len(t, sections[2], 2000)
}

func TestSplitSectionsSnapsToBreak(t *testing.T) {
	first := strings.Repeat("w", 3500) + "."
	text := first + strings.Repeat("z", 1200)

	sections := SplitSections(text, 4000, 5)
	require.Len(t, sections, 2)
	assert.Equal(t, first, sections[0])
	assert.Equal(t, strings.Repeat("z", 1200), sections[1])
}

func TestSplitSectionsBreakOutsideLookback(t *testing.T) {
	text := "intro." + strings.Repeat("q", 5000)
	sections := SplitSections(text, 4000, 5)
	require.Len(t, sections, 2)
	assert.Len(t, sections[0], 4000)
}

func TestSplitSectionsBoundsAndPrefix(t *testing.T) {
	text := strings.Repeat("Sentence one! Another line\nand a question? ", 400)

	sections := SplitSections(text, 1500, 4)
	require.LessOrEqual(t, len(sections), 4)
	require.Len(t, sections, 4)

	joined := strings.Join(sections, "")
	squash := func(s string) string { return strings.Join(strings.Fields(s), "") }
	assert.True(t, strings.HasPrefix(squash(text), squash(joined)))
	for _, s := range sections {
		assert.NotEmpty(t, s)
	}
}

func TestSplitSectionsSkipsBlank(t *testing.T) {
	text := strings.Repeat(" ", 50) + "\n" + strings.Repeat(" ", 60) + "content here"
	sections := SplitSections(text, 40, 10)
	for _, s := range sections {
		assert.NotEmpty(t, strings.TrimSpace(s))
	}
	assert.Equal(t, "content here", strings.Join(sections, ""))
}
