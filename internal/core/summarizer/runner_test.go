package summarizer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/ragdesk/internal/core"
	ingestion "github.com/markdave123-py/ragdesk/internal/core/ingestion_engine"
	"github.com/markdave123-py/ragdesk/internal/models"
)

type summaryFunc func(ctx context.Context, text string, progress ProgressFunc) (string, error)

func (f summaryFunc) Summarize(ctx context.Context, text string, progress ProgressFunc) (string, error) {
	return f(ctx, text, progress)
}

type memDocs struct {
	core.DocumentStore
	mu        sync.Mutex
	summaries map[string]string
	fail      bool
}

func (m *memDocs) UpdateDocumentSummary(_ context.Context, id, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail && summary != models.SummaryFailed {
		return errors.New("disk full")
	}
	if m.summaries == nil {
		m.summaries = map[string]string{}
	}
	m.summaries[id] = summary
	return nil
}

type finalized struct{ status, message string }

type memTasks struct {
	mu       sync.Mutex
	progress map[string][]int
	final    map[string]finalized
}

func newMemTasks() *memTasks {
	return &memTasks{progress: map[string][]int{}, final: map[string]finalized{}}
}

func (m *memTasks) Advance(_ context.Context, id string, p int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress[id] = append(m.progress[id], p)
}

func (m *memTasks) Finalize(_ context.Context, id, status, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.final[id] = finalized{status, message}
}

func job(n string) ingestion.SummaryJob {
	return ingestion.SummaryJob{TaskID: "task-" + n, DocumentID: "doc-" + n, FileName: n + ".pdf", Text: "body"}
}

func TestRunnerSuccess(t *testing.T) {
	docs, tasks := &memDocs{}, newMemTasks()
	s := summaryFunc(func(_ context.Context, text string, progress ProgressFunc) (string, error) {
		progress(50)
		progress(99)
		return "summary of " + text, nil
	})

	r := NewRunner(context.Background(), s, docs, tasks, 1)
	r.Submit(job("a"))
	r.Wait()

	assert.Equal(t, "summary of body", docs.summaries["doc-a"])
	assert.Equal(t, []int{50, 99}, tasks.progress["task-a"])
	assert.Equal(t, finalized{models.StatusCompleted, "Summary ready: a.pdf"}, tasks.final["task-a"])
}

func TestRunnerFailureStoresMarker(t *testing.T) {
	docs, tasks := &memDocs{}, newMemTasks()
	s := summaryFunc(func(context.Context, string, ProgressFunc) (string, error) {
		return models.SummaryFailed, ErrNoSections
	})

	r := NewRunner(context.Background(), s, docs, tasks, 1)
	r.Submit(job("b"))
	r.Wait()

	assert.Equal(t, models.SummaryFailed, docs.summaries["doc-b"])
	assert.Equal(t, finalized{models.StatusFailed, "Summary failed for b.pdf"}, tasks.final["task-b"])
}

func TestRunnerPersistFailureFailsTask(t *testing.T) {
	docs, tasks := &memDocs{fail: true}, newMemTasks()
	s := summaryFunc(func(context.Context, string, ProgressFunc) (string, error) { return "ok", nil })

	r := NewRunner(context.Background(), s, docs, tasks, 1)
	r.Submit(job("c"))
	r.Wait()

	assert.Equal(t, models.StatusFailed, tasks.final["task-c"].status)
}

func TestRunnerBoundsConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	s := summaryFunc(func(context.Context, string, ProgressFunc) (string, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
		return "done", nil
	})
	tasks := newMemTasks()

	r := NewRunner(context.Background(), s, &memDocs{}, tasks, 2)
	for _, n := range []string{"1", "2", "3", "4", "5"} {
		r.Submit(job(n))
	}
	r.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Len(t, tasks.final, 5)
}

func TestRunnerSubmitDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	s := summaryFunc(func(context.Context, string, ProgressFunc) (string, error) {
		<-release
		return "done", nil
	})

	r := NewRunner(context.Background(), s, &memDocs{}, newMemTasks(), 1)
	start := time.Now()
	r.Submit(job("x"))
	r.Submit(job("y"))
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(release)
	r.Wait()
}

func TestRunnerShutdownLeavesTaskProcessing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	s := summaryFunc(func(ctx context.Context, _ string, _ ProgressFunc) (string, error) {
		close(started)
		<-ctx.Done()
		return models.SummaryFailed, ctx.Err()
	})
	docs, tasks := &memDocs{}, newMemTasks()

	r := NewRunner(ctx, s, docs, tasks, 1)
	r.Submit(job("z"))
	<-started
	cancel()
	r.Wait()

	require.Empty(t, tasks.final)
	assert.Empty(t, docs.summaries)
}

func TestRunnerDropsJobsAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	s := summaryFunc(func(context.Context, string, ProgressFunc) (string, error) {
		calls.Add(1)
		return "done", nil
	})
	docs, tasks := &memDocs{}, newMemTasks()

	r := NewRunner(ctx, s, docs, tasks, 1)
	cancel()

	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()
	for _, n := range []string{"late-1", "late-2"} {
		r.Submit(job(n))
	}
	<-done
	r.Wait()

	assert.Zero(t, calls.Load())
	assert.Empty(t, tasks.final)
	assert.Empty(t, docs.summaries)
}
