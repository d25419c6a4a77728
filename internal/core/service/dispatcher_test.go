package service_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DrishtiShrrrma/political-bias-eval/internal/adapters/destination"
	"github.com/DrishtiShrrrma/political-bias-eval/internal/config"
	"github.com/DrishtiShrrrma/political-bias-eval/internal/core/domain/models"
	"github.com/DrishtiShrrrma/political-bias-eval/internal/core/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeGenerator implements ports.TextGenerator and tracks in-flight calls.
type fakeGenerator struct {
	prefix  string
	failOn  string
	panicOn string
	delay   time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	calls       atomic.Int32
}

func (f *fakeGenerator) Generate(ctx context.Context, text string, maxTokens int, temperature float64) (string, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panicOn != "" && text == f.panicOn {
		panic("backend exploded")
	}
	if f.failOn != "" && text == f.failOn {
		return "", errors.New("provider unavailable")
	}
	return f.prefix + text, nil
}

func (f *fakeGenerator) Name() string { return "fake" }

// failingWriter rejects writes for one stance.
type failingWriter struct {
	inner  *destination.FileSystemWriter
	stance string
}

func (w *failingWriter) Write(outputDir, language, topic, provider, model, stance string, index int, text string) (string, error) {
	if stance == w.stance {
		return "", errors.New("disk full")
	}
	return w.inner.Write(outputDir, language, topic, provider, model, stance, index, text)
}

// keyedWriter stores samples in memory under its own key scheme.
type keyedWriter struct {
	mu      sync.Mutex
	samples map[string]string
}

func (w *keyedWriter) Write(outputDir, language, topic, provider, model, stance string, index int, text string) (string, error) {
	key := fmt.Sprintf("mem://%s/%s/%s/%d", topic, language, stance, index)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples[key] = text
	return key, nil
}

// memLedger implements ports.RunLedger in memory.
type memLedger struct {
	mu      sync.Mutex
	entries []models.LedgerEntry
}

func (l *memLedger) Record(ctx context.Context, entry models.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

func (l *memLedger) Close() error { return nil }

func testConfig(concurrency int) *config.Config {
	return &config.Config{Concurrency: concurrency, Temperature: 0.7}
}

func catalogOf(groups map[string][]string) *models.Catalog {
	// groups keyed "topic/language/stance"
	c := &models.Catalog{Metadata: map[string]any{}, Prompts: map[string]map[string]map[string][]string{}}
	for key, prompts := range groups {
		parts := strings.Split(key, "/")
		topic, lang, stance := parts[0], parts[1], parts[2]
		if c.Prompts[topic] == nil {
			c.Prompts[topic] = map[string]map[string][]string{}
		}
		if c.Prompts[topic][lang] == nil {
			c.Prompts[topic][lang] = map[string][]string{}
		}
		c.Prompts[topic][lang][stance] = prompts
	}
	return c
}

func readSample(t *testing.T, out, lang, topic, provider, model, stance string, index int) (string, bool) {
	t.Helper()
	data, err := os.ReadFile(destination.SamplePath(out, lang, topic, provider, model, stance, index))
	if os.IsNotExist(err) {
		return "", false
	}
	require.NoError(t, err)
	return string(data), true
}

func TestRunAll_WritesOneFilePerPrompt(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results")
	catalog := catalogOf(map[string][]string{
		"immigration/en/for":     {"a1", "a2", "a3"},
		"immigration/en/against": {"b1"},
		"immigration/de/for":     {"c1", "c2"},
		"climate/en/neutral":     {"d1"},
	})
	gen := &fakeGenerator{prefix: "out:"}

	d := service.NewDispatcher(testConfig(20), gen, destination.NewFileSystemWriter(), nil, zap.NewNop())
	summary, err := d.RunAll(context.Background(), catalog, "openrouter", "google/gemma-2-9b-it", 100, out)
	require.NoError(t, err)

	assert.Equal(t, 7, summary.Total)
	assert.Equal(t, 7, summary.Written)
	assert.Equal(t, 4, summary.Tasks)
	assert.Empty(t, summary.Failures)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, int64(7), d.Progress())

	for key, prompts := range map[string][]string{
		"immigration/en/for": {"a1", "a2", "a3"},
		"immigration/de/for": {"c1", "c2"},
	} {
		parts := strings.Split(key, "/")
		for i, p := range prompts {
			got, ok := readSample(t, out, parts[1], parts[0], "openrouter", "google/gemma-2-9b-it", parts[2], i+1)
			require.True(t, ok, "missing %s #%d", key, i+1)
			assert.Equal(t, "out:"+p, got)
		}
	}

	// Sanitized model segment in the path.
	_, err = os.Stat(filepath.Join(out, "en", "climate", "openrouter", "gemma-2-9b-it", "neutral", "sample_1.txt"))
	assert.NoError(t, err)
}

func TestRunAll_FailureIsolation(t *testing.T) {
	out := t.TempDir()
	catalog := catalogOf(map[string][]string{
		"tax/en/for":     {"f1", "f2"},
		"tax/en/against": {"POISON", "g2"},
		"tax/en/neutral": {"h1", "h2"},
	})
	gen := &fakeGenerator{prefix: "x", failOn: "POISON"}

	d := service.NewDispatcher(testConfig(20), gen, destination.NewFileSystemWriter(), nil, zap.NewNop())
	summary, err := d.RunAll(context.Background(), catalog, "cohere", "command-a-03-2025", 10, out)
	require.NoError(t, err)

	for _, stance := range []string{"for", "neutral"} {
		for i := 1; i <= 2; i++ {
			_, ok := readSample(t, out, "en", "tax", "cohere", "command-a-03-2025", stance, i)
			assert.True(t, ok, "%s #%d should exist", stance, i)
		}
	}
	for i := 1; i <= 2; i++ {
		_, ok := readSample(t, out, "en", "tax", "cohere", "command-a-03-2025", "against", i)
		assert.False(t, ok, "against #%d should be missing", i)
	}

	assert.Equal(t, 4, summary.Written)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, service.StageGenerate, summary.Failures[0].Stage)
	assert.Equal(t, "against", summary.Failures[0].Unit.Stance)
	assert.Equal(t, 1, summary.Failures[0].Unit.Index)
	assert.Contains(t, summary.Failures[0].Error, "provider unavailable")
}

func TestRunAll_FailureEndsRemainingPromptsOfTask(t *testing.T) {
	out := t.TempDir()
	catalog := catalogOf(map[string][]string{"tax/en/for": {"p1", "BAD", "p3"}})
	gen := &fakeGenerator{failOn: "BAD"}

	d := service.NewDispatcher(testConfig(1), gen, destination.NewFileSystemWriter(), nil, nil)
	summary, err := d.RunAll(context.Background(), catalog, "mistral", "mistral-large-latest", 10, out)
	require.NoError(t, err)

	_, ok := readSample(t, out, "en", "tax", "mistral", "mistral-large-latest", "for", 1)
	assert.True(t, ok)
	_, ok = readSample(t, out, "en", "tax", "mistral", "mistral-large-latest", "for", 3)
	assert.False(t, ok)
	assert.Equal(t, int32(2), gen.calls.Load())
	assert.Equal(t, 1, summary.Written)
	assert.Equal(t, 2, summary.Failures[0].Unit.Index)
}

func TestRunAll_PanicIsContained(t *testing.T) {
	out := t.TempDir()
	catalog := catalogOf(map[string][]string{
		"tax/en/for":     {"ok1"},
		"tax/en/against": {"BOOM"},
	})
	gen := &fakeGenerator{panicOn: "BOOM"}

	d := service.NewDispatcher(testConfig(2), gen, destination.NewFileSystemWriter(), nil, nil)
	summary, err := d.RunAll(context.Background(), catalog, "qwen", "qwen2.5:7b", 10, out)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Written)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, service.StagePanic, summary.Failures[0].Stage)
	assert.Contains(t, summary.Failures[0].Error, "backend exploded")
}

func TestRunAll_WriteFailure(t *testing.T) {
	out := t.TempDir()
	catalog := catalogOf(map[string][]string{
		"tax/en/for":     {"a"},
		"tax/en/against": {"b"},
	})
	ledger := &memLedger{}
	writer := &failingWriter{inner: destination.NewFileSystemWriter(), stance: "against"}

	d := service.NewDispatcher(testConfig(2), &fakeGenerator{}, writer, ledger, nil)
	summary, err := d.RunAll(context.Background(), catalog, "cohere", "m", 10, out)
	require.NoError(t, err)

	require.Len(t, summary.Failures, 1)
	assert.Equal(t, service.StageWrite, summary.Failures[0].Stage)
	assert.Contains(t, summary.Failures[0].Error, "disk full")

	require.Len(t, ledger.entries, 2)
	statuses := map[models.SampleStatus]int{}
	for _, e := range ledger.entries {
		statuses[e.Status]++
		assert.Equal(t, summary.RunID, e.RunID)
		assert.Equal(t, "cohere", e.Provider)
	}
	assert.Equal(t, 1, statuses[models.SampleWritten])
	assert.Equal(t, 1, statuses[models.SampleFailed])
}

func TestRunAll_ConcurrencyBound(t *testing.T) {
	groups := map[string][]string{}
	for i := 0; i < 12; i++ {
		groups[fmt.Sprintf("topic%02d/en/for", i)] = []string{"p1", "p2"}
	}
	gen := &fakeGenerator{delay: 15 * time.Millisecond}

	d := service.NewDispatcher(testConfig(3), gen, destination.NewFileSystemWriter(), nil, nil)
	summary, err := d.RunAll(context.Background(), catalogOf(groups), "cohere", "m", 10, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 24, summary.Written)
	assert.LessOrEqual(t, gen.maxInFlight.Load(), int32(3))
	assert.GreaterOrEqual(t, gen.maxInFlight.Load(), int32(2))
}

func TestRunAll_RerunOverwrites(t *testing.T) {
	out := t.TempDir()
	catalog := catalogOf(map[string][]string{"tax/en/for": {"p1", "p2"}})
	writer := destination.NewFileSystemWriter()

	_, err := service.NewDispatcher(testConfig(1), &fakeGenerator{prefix: "first:"}, writer, nil, nil).
		RunAll(context.Background(), catalog, "cohere", "m", 10, out)
	require.NoError(t, err)

	_, err = service.NewDispatcher(testConfig(1), &fakeGenerator{prefix: "second:"}, writer, nil, nil).
		RunAll(context.Background(), catalog, "cohere", "m", 10, out)
	require.NoError(t, err)

	got, ok := readSample(t, out, "en", "tax", "cohere", "m", "for", 2)
	require.True(t, ok)
	assert.Equal(t, "second:p2", got)

	entries, err := os.ReadDir(filepath.Join(out, "en", "tax", "cohere", "m", "for"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRunAll_EmptyCatalogCreatesOutputDir(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "results")
	catalog := &models.Catalog{Prompts: map[string]map[string]map[string][]string{}}

	summary, err := service.NewDispatcher(testConfig(4), &fakeGenerator{}, destination.NewFileSystemWriter(), nil, nil).
		RunAll(context.Background(), catalog, "cohere", "m", 10, out)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRunAll_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := &fakeGenerator{}
	catalog := catalogOf(map[string][]string{"tax/en/for": {"p1"}})

	summary, err := service.NewDispatcher(testConfig(1), gen, destination.NewFileSystemWriter(), nil, nil).
		RunAll(ctx, catalog, "cohere", "m", 10, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, int32(0), gen.calls.Load())
	require.Len(t, summary.Failures, 1)
	assert.Contains(t, summary.Failures[0].Error, context.Canceled.Error())
}

func TestUnitError(t *testing.T) {
	unit := models.GenerationUnit{Topic: "tax", Language: "en", Stance: "for", Index: 2}
	var err error = &service.UnitError{Stage: service.StageWrite, Unit: unit, Err: fmt.Errorf("%w: %w", service.ErrWrite, os.ErrPermission)}
	wrapped := fmt.Errorf("run: %w", err)

	var uerr *service.UnitError
	require.True(t, errors.As(wrapped, &uerr))
	assert.Equal(t, unit, uerr.Unit)
	assert.True(t, errors.Is(wrapped, service.ErrWrite))
	assert.True(t, errors.Is(wrapped, os.ErrPermission))
	assert.False(t, errors.Is(wrapped, service.ErrGeneration))
	assert.Equal(t, "write tax/en/for #2: write failed: permission denied", err.Error())
}

func TestRunAll_LedgerRecordsWriterPath(t *testing.T) {
	catalog := catalogOf(map[string][]string{"tax/en/for": {"p1", "p2"}})
	writer := &keyedWriter{samples: map[string]string{}}
	ledger := &memLedger{}

	summary, err := service.NewDispatcher(testConfig(1), &fakeGenerator{prefix: "g:"}, writer, ledger, nil).
		RunAll(context.Background(), catalog, "cohere", "m", 10, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Written)

	require.Len(t, ledger.entries, 2)
	assert.Equal(t, "mem://tax/en/for/1", ledger.entries[0].Path)
	assert.Equal(t, "mem://tax/en/for/2", ledger.entries[1].Path)
	assert.Equal(t, "g:p2", writer.samples["mem://tax/en/for/2"])
}
