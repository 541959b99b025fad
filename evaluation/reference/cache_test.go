package reference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finbench/internal/corpus"
	"finbench/internal/domain/benchmark"
	"finbench/internal/logging"
	"finbench/internal/observability"
)

func openTestStore(t *testing.T, opts ...Option) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache", "ground_truth.json")
	store, err := Open(path, append([]Option{WithLogger(logging.Nop())}, opts...)...)
	require.NoError(t, err)
	return store, path
}

func riskKey(companyID string) Key {
	return NewKey(corpus.NewDocumentKey(2020, companyID), benchmark.TaskRiskClassification)
}

func TestKeyStringNormalizesCompanyID(t *testing.T) {
	assert.Equal(t, "2020_320193_risk_classification", riskKey("0000320193").String())
	assert.Equal(t, riskKey(" 320193").String(), riskKey("320193").String())
}

func TestGetOrCreateGeneratesOnceUnderConcurrency(t *testing.T) {
	store, _ := openTestStore(t)
	var calls atomic.Int32
	generate := func(ctx context.Context) (benchmark.Answer, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return benchmark.NewRiskAnswer("Market Risk", "Financial Risk"), nil
	}

	const callers = 16
	results := make([]benchmark.Answer, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = store.GetOrCreate(context.Background(), riskKey("320193"), generate)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
}

func TestGetOrCreateHitSkipsGenerator(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	_, err := store.GetOrCreate(ctx, riskKey("320193"), func(context.Context) (benchmark.Answer, error) {
		return benchmark.NewRiskAnswer("Market Risk"), nil
	})
	require.NoError(t, err)

	got, err := store.GetOrCreate(ctx, riskKey("0000320193"), func(context.Context) (benchmark.Answer, error) {
		t.Fatal("generator must not run on a hit")
		return benchmark.Answer{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Market Risk"}, got.Risk.Categories)

	stats := store.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Generations)
}

func TestFailedGenerationLeavesStoreUnchanged(t *testing.T) {
	store, path := openTestStore(t)
	ctx := context.Background()
	var calls atomic.Int32
	boom := errors.New("upstream unavailable")

	_, err := store.GetOrCreate(ctx, riskKey("320193"), func(context.Context) (benchmark.Answer, error) {
		calls.Add(1)
		return benchmark.Answer{}, boom
	})
	require.ErrorIs(t, err, boom)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
	_, ok := store.Get(riskKey("320193"))
	assert.False(t, ok)

	got, err := store.GetOrCreate(ctx, riskKey("320193"), func(context.Context) (benchmark.Answer, error) {
		calls.Add(1)
		return benchmark.NewRiskAnswer("Operational Risk"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []string{"Operational Risk"}, got.Risk.Categories)
}

func TestInvalidGeneratedAnswerIsRejected(t *testing.T) {
	store, _ := openTestStore(t)
	_, err := store.GetOrCreate(context.Background(), riskKey("320193"), func(context.Context) (benchmark.Answer, error) {
		return benchmark.NewBusinessAnswer("a", "b", "c"), nil
	})
	require.ErrorIs(t, err, benchmark.ErrGenerationFailure)
	assert.Equal(t, 0, store.Stats().TotalEntries)
}

func TestRoundTripThroughReopen(t *testing.T) {
	store, path := openTestStore(t, WithModel("deepseek/deepseek-v3.2"))
	ctx := context.Background()
	doc := corpus.NewDocumentKey(2019, "1725057")
	answers := map[benchmark.TaskID]benchmark.Answer{
		benchmark.TaskRiskClassification: benchmark.NewRiskAnswer("Market Risk", "Cybersecurity Risk"),
		benchmark.TaskBusinessSummary:    benchmark.NewBusinessAnswer("Fintech", "UEPS", "South Africa"),
		benchmark.TaskConsistencyCheck:   benchmark.NewConsistencyAnswer([]string{"Currency volatility", "Regulation"}, []string{"Regulation"}),
	}
	for task, answer := range answers {
		answer := answer
		_, err := store.GetOrCreate(ctx, NewKey(doc, task), func(context.Context) (benchmark.Answer, error) {
			return answer, nil
		})
		require.NoError(t, err)
	}

	reopened, err := Open(path, WithLogger(logging.Nop()))
	require.NoError(t, err)
	for task, want := range answers {
		got, ok := reopened.Get(NewKey(doc, task))
		require.True(t, ok, task)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, "deepseek/deepseek-v3.2", reopened.Stats().Model)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var file map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &file))
	assert.JSONEq(t, `"1.0.0"`, string(file["cache_version"]))
	var entries map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(file["entries"], &entries))
	assert.Contains(t, entries, "2019_1725057_business_summary")
}

func TestGetReturnsIndependentCopies(t *testing.T) {
	store, _ := openTestStore(t)
	_, err := store.GetOrCreate(context.Background(), riskKey("1"), func(context.Context) (benchmark.Answer, error) {
		return benchmark.NewRiskAnswer("Market Risk"), nil
	})
	require.NoError(t, err)

	first, _ := store.Get(riskKey("1"))
	first.Risk.Categories[0] = "mutated"
	second, _ := store.Get(riskKey("1"))
	assert.Equal(t, "Market Risk", second.Risk.Categories[0])
}

func TestOpenMovesCorruptFileAside(t *testing.T) {
	for name, content := range map[string]string{
		"garbage":          "{not json",
		"version mismatch": `{"cache_version":"0.9","entries":{}}`,
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ground_truth.json")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			store, err := Open(path, WithLogger(logging.Nop()))
			require.NoError(t, err)
			assert.Equal(t, 0, store.Stats().TotalEntries)

			backup, err := os.ReadFile(path + ".backup")
			require.NoError(t, err)
			assert.Equal(t, content, string(backup))
		})
	}
}

func TestDefaultLoggerIsTaggedWithComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	logging.SetBase(observability.NewLogger(observability.LogConfig{Level: "info", Format: "text", Output: buf}))
	t.Cleanup(func() { logging.SetBase(nil) })

	path := filepath.Join(t.TempDir(), "ground_truth.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := Open(path)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "component=ReferenceCache")
}

func TestOpenDropsInvalidEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ground_truth.json")
	content := `{
  "cache_version": "1.0.0",
  "created_at": "2025-01-01T00:00:00Z",
  "last_updated": "2025-01-01T00:00:00Z",
  "entries": {
    "2020_320193_risk_classification": {
      "data": {"task": "risk_classification", "risk_classification": {"categories": ["Market Risk"]}},
      "cached_at": "2025-01-01T00:00:00Z", "company_id": "320193", "year": 2020, "task": "risk_classification"
    },
    "2020_320193_business_summary": {
      "data": {"task": "business_summary", "business_summary": {"industry": 42}},
      "cached_at": "2025-01-01T00:00:00Z", "company_id": "320193", "year": 2020, "task": "business_summary"
    }
  }
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	store, err := Open(path, WithLogger(logging.Nop()))
	require.NoError(t, err)
	stats := store.Stats()
	assert.Equal(t, 1, stats.TotalEntries)
	assert.Equal(t, int64(1), stats.Corruptions)

	doc := corpus.NewDocumentKey(2020, "320193")
	var calls int
	got, err := store.GetOrCreate(context.Background(), NewKey(doc, benchmark.TaskBusinessSummary), func(context.Context) (benchmark.Answer, error) {
		calls++
		return benchmark.NewBusinessAnswer("Technology", "Phones", "Global"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "Technology", got.Business.Industry)

	_, ok := store.Get(NewKey(doc, benchmark.TaskRiskClassification))
	assert.True(t, ok)
}

func TestInvalidateAndStats(t *testing.T) {
	store, path := openTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"1", "2"} {
		for _, task := range benchmark.AllTasks {
			task := task
			_, err := store.GetOrCreate(ctx, NewKey(corpus.NewDocumentKey(2018, id), task), func(context.Context) (benchmark.Answer, error) {
				switch task {
				case benchmark.TaskRiskClassification:
					return benchmark.NewRiskAnswer("Market Risk"), nil
				case benchmark.TaskBusinessSummary:
					return benchmark.NewBusinessAnswer("a", "b", "c"), nil
				}
				return benchmark.NewConsistencyAnswer(nil, nil), nil
			})
			require.NoError(t, err)
		}
	}
	stats := store.Stats()
	assert.Equal(t, 6, stats.TotalEntries)
	assert.Equal(t, 2, stats.ByTask[benchmark.TaskBusinessSummary])
	assert.Equal(t, []int{2018}, stats.Years)

	removed, err := store.Invalidate(Filter{CompanyID: "0002"})
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	removed, err = store.Invalidate(Filter{Task: benchmark.TaskRiskClassification})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	reopened, err := Open(path, WithLogger(logging.Nop()))
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Stats().TotalEntries)
}

func TestCallerCancellationDoesNotAbortGeneration(t *testing.T) {
	store, _ := openTestStore(t, WithGenerationTimeout(5*time.Second))
	started := make(chan struct{})
	release := make(chan struct{})
	var genCtxLive atomic.Bool

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := store.GetOrCreate(ctx, riskKey("7"), func(genCtx context.Context) (benchmark.Answer, error) {
			close(started)
			<-release
			genCtxLive.Store(genCtx.Err() == nil)
			return benchmark.NewRiskAnswer("Geopolitical Risk"), nil
		})
		errCh <- err
	}()

	<-started
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
	close(release)

	require.Eventually(t, func() bool {
		_, ok := store.Get(riskKey("7"))
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, genCtxLive.Load())
}

func TestCancelledCallerReturnsImmediately(t *testing.T) {
	store, _ := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.GetOrCreate(ctx, riskKey("1"), func(context.Context) (benchmark.Answer, error) {
		t.Fatal("generator must not run for a cancelled caller")
		return benchmark.Answer{}, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsCorruption(t *testing.T) {
	assert.True(t, IsCorruption(benchmark.NewError(benchmark.KindCacheCorruption, "", errors.New("bad"))))
	assert.False(t, IsCorruption(errors.New("other")))
}
