package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/markdave123-py/ragdesk/internal/core"
	ingestion "github.com/markdave123-py/ragdesk/internal/core/ingestion_engine"
	"github.com/markdave123-py/ragdesk/internal/logger"
	"github.com/markdave123-py/ragdesk/internal/models"
)

const (
	DefaultSectionSize = 4000
	DefaultMaxSections = 12

	sectionBandEnd  = 85
	progressCeiling = 95
	progressDone    = 99

	maxCompressionPasses = 2
	compressionBand      = (progressCeiling - sectionBandEnd) / maxCompressionPasses

	minTargetWords = 140
	maxTargetWords = 500
	minFinalTokens = 260
	maxFinalTokens = 900
)

var ErrNoSections = errors.New("no section could be summarized")

// ProgressFunc receives task progress in [0,100].
type ProgressFunc func(progress int)

type Config struct {
	SectionSize int
	MaxSections int
}

// Summarizer condenses arbitrarily long text in bounded calls: bullets per
// section, optional compression of the bullets, then one finalization pass.
type Summarizer struct {
	llm core.LLMProvider
	cfg Config
	log *slog.Logger
}

func New(llm core.LLMProvider, cfg Config) *Summarizer {
	if cfg.SectionSize <= 0 {
		cfg.SectionSize = DefaultSectionSize
	}
	if cfg.MaxSections <= 0 {
		cfg.MaxSections = DefaultMaxSections
	}
	return &Summarizer{
		llm: llm,
		cfg: cfg,
		log: logger.NewModuleLogger("summarizer", "recursive"),
	}
}

// Summarize returns the finished summary. On failure the returned text is the
// failure placeholder and err says why.
func (s *Summarizer) Summarize(ctx context.Context, text string, progress ProgressFunc) (string, error) {
	if strings.TrimSpace(text) == "" {
		return models.SummaryEmpty, nil
	}
	if progress == nil {
		progress = func(int) {}
	}
	m := &meter{report: progress}

	sections := ingestion.SplitSections(text, s.cfg.SectionSize, s.cfg.MaxSections)
	s.log.Info("summarizing", "chars", utf8.RuneCountInString(text), "sections", len(sections))

	notes, err := s.extract(ctx, sections, m)
	if err != nil {
		return models.SummaryFailed, err
	}

	notes, err = s.compress(ctx, notes, m)
	if err != nil {
		return models.SummaryFailed, err
	}

	target := TargetWords(len(strings.Fields(text)))
	out, err := s.llm.Complete(ctx, core.CompletionRequest{
		System: "You write clear, faithful document summaries.",
		Prompt: finalPrompt(notes, target),
		Params: core.DecodingParams{
			Temperature:   0.3,
			TopP:          0.9,
			MaxTokens:     FinalTokenBudget(target),
			RepeatPenalty: 1.1,
		},
	})
	if err != nil {
		return models.SummaryFailed, fmt.Errorf("finalize summary: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return models.SummaryFailed, errors.New("finalize summary: empty reply")
	}

	m.set(progressDone)
	return out, nil
}

// extract produces labeled bullets for every section. A failing section is
// skipped; only a canceled context or a total failure aborts.
func (s *Summarizer) extract(ctx context.Context, sections []string, m *meter) (string, error) {
	notes := make([]string, 0, len(sections))
	total := len(sections)
	for i, sec := range sections {
		out, err := s.llm.Complete(ctx, core.CompletionRequest{
			System: extractSystem,
			Prompt: sectionPrompt(i+1, total, sec),
			Params: extractParams,
		})
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if err != nil {
			s.log.Warn("section summary failed", "section", i+1, "of", total, "error", err)
		} else if bullets := asBullets(out); bullets != "" {
			notes = append(notes, fmt.Sprintf("Section %d:\n%s", i+1, bullets))
		}
		m.band(0, sectionBandEnd, i+1, total)
	}
	if len(notes) == 0 {
		return "", ErrNoSections
	}
	return strings.Join(notes, "\n\n"), nil
}

// compress re-summarizes the notes while they exceed one section budget.
func (s *Summarizer) compress(ctx context.Context, notes string, m *meter) (string, error) {
	for pass := 0; pass < maxCompressionPasses; pass++ {
		size := utf8.RuneCountInString(notes)
		if size <= s.cfg.SectionSize {
			return notes, nil
		}

		parts := ingestion.SplitSections(notes, s.cfg.SectionSize, s.cfg.MaxSections)
		merged := make([]string, 0, len(parts))
		lo := sectionBandEnd + pass*compressionBand
		for j, part := range parts {
			out, err := s.llm.Complete(ctx, core.CompletionRequest{
				System: extractSystem,
				Prompt: compressPrompt(part),
				Params: compressParams,
			})
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			if bullets := asBullets(out); err == nil && bullets != "" {
				merged = append(merged, bullets)
			} else {
				if err != nil {
					s.log.Warn("compression failed, keeping notes", "pass", pass+1, "part", j+1, "error", err)
				}
				merged = append(merged, part)
			}
			m.band(lo, lo+compressionBand, j+1, len(parts))
		}

		next := strings.Join(merged, "\n\n")
		s.log.Debug("compression pass", "pass", pass+1, "before", size, "after", utf8.RuneCountInString(next))
		if utf8.RuneCountInString(next) >= size {
			return next, nil
		}
		notes = next
	}
	return notes, nil
}

func asBullets(out string) string {
	out = strings.TrimSpace(out)
	if out == "" {
		return ""
	}
	if !strings.HasPrefix(out, "-") && !strings.HasPrefix(out, "*") {
		out = "- " + out
	}
	return out
}

// TargetWords scales the summary length with the input: 22% of the words,
// kept within [140, 500].
func TargetWords(words int) int {
	return clamp(int(math.Round(float64(words)*0.22)), minTargetWords, maxTargetWords)
}

// FinalTokenBudget is the generation budget for the finalization pass.
func FinalTokenBudget(targetWords int) int {
	return clamp(int(math.Round(float64(targetWords)*1.6)), minFinalTokens, maxFinalTokens)
}

// meter turns completed work units into monotonic progress.
type meter struct {
	report ProgressFunc
	last   int
}

// band reports done/total of the work between lo and hi.
func (m *meter) band(lo, hi, done, total int) {
	if total <= 0 {
		return
	}
	p := lo + int(math.Round(float64(done)/float64(total)*float64(hi-lo)))
	m.set(min(p, progressCeiling))
}

func (m *meter) set(p int) {
	if p < m.last {
		p = m.last
	}
	m.last = p
	m.report(p)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
