package snapshot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/and161185/node-watchdog/internal/config"
	"github.com/and161185/node-watchdog/model"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeExecutor struct {
	mu      sync.Mutex
	results map[string]model.RawResult
	errs    map[string]error
	delay   time.Duration

	inFlight    int32
	maxInFlight int32
}

func (f *fakeExecutor) Execute(ctx context.Context, q model.MetricQuery) (model.RawResult, error) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		max := atomic.LoadInt32(&f.maxInFlight)
		if cur <= max || atomic.CompareAndSwapInt32(&f.maxInFlight, max, cur) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return model.RawResult{}, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if ctx.Err() != nil {
		return model.RawResult{}, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[q.Key]; ok {
		return model.RawResult{}, err
	}
	return f.results[q.Key], nil
}

func newTestBuilder(exec Executor, limit int) *Builder {
	return NewBuilder(exec, &config.Config{
		RateLimit:    limit,
		BatchTimeout: 5,
		Logger:       zap.NewNop().Sugar(),
	})
}

func point(v float64, labels map[string]string) model.Point {
	return model.Point{Value: v, Labels: labels}
}

func TestBuild_PartialFailure(t *testing.T) {
	exec := &fakeExecutor{
		results: map[string]model.RawResult{
			"a": {Points: []model.Point{point(1, nil)}},
			"b": {Points: []model.Point{point(2, nil)}},
			"c": {Points: []model.Point{point(3, nil)}},
		},
		errs: map[string]error{
			"d": errors.New("boom"),
			"e": errors.New("boom"),
		},
	}

	queries := []model.MetricQuery{
		{Key: "a", Expr: "a"}, {Key: "b", Expr: "b"}, {Key: "c", Expr: "c"},
		{Key: "d", Expr: "d"}, {Key: "e", Expr: "e"},
	}
	snap := newTestBuilder(exec, 2).Build(context.Background(), queries, model.Summary)

	require.Len(t, snap.Samples, 3)
	require.Len(t, snap.FetchErrors, 2)
	require.True(t, snap.Degraded())

	// every key lands in exactly one of the two maps
	for _, q := range queries {
		_, inSamples := snap.Samples[q.Key]
		_, inErrors := snap.FetchErrors[q.Key]
		require.NotEqual(t, inSamples, inErrors, "key %s", q.Key)
	}
}

func TestBuild_AllFailedIsDegradedNotError(t *testing.T) {
	exec := &fakeExecutor{
		errs: map[string]error{"a": errors.New("boom"), "b": errors.New("boom")},
	}
	snap := newTestBuilder(exec, 2).Build(context.Background(),
		[]model.MetricQuery{{Key: "a", Expr: "a"}, {Key: "b", Expr: "b"}}, model.Summary)

	require.NotNil(t, snap)
	require.Empty(t, snap.Samples)
	require.Len(t, snap.FetchErrors, 2)
	require.True(t, snap.Degraded())
	require.False(t, snap.FetchedAt.IsZero())
}

func TestBuild_ScalarCardinality(t *testing.T) {
	exec := &fakeExecutor{
		results: map[string]model.RawResult{
			"none": {},
			"two":  {Points: []model.Point{point(1, nil), point(2, nil)}},
			"one":  {Points: []model.Point{point(7, nil)}},
		},
	}
	queries := []model.MetricQuery{
		{Key: "none", Expr: "x", Kind: model.Scalar},
		{Key: "two", Expr: "x", Kind: model.Scalar},
		{Key: "one", Expr: "x", Kind: model.Scalar},
	}
	snap := newTestBuilder(exec, 3).Build(context.Background(), queries, model.Summary)

	require.Contains(t, snap.FetchErrors, "none")
	require.Contains(t, snap.FetchErrors, "two")
	require.NotNil(t, snap.Scalar("one"))
	require.InDelta(t, 7, *snap.Scalar("one"), 1e-9)
}

func TestBuild_VectorSortedByLabel(t *testing.T) {
	exec := &fakeExecutor{
		results: map[string]model.RawResult{
			"cpu_by_mode": {Points: []model.Point{
				point(10, map[string]string{"mode": "user"}),
				point(5, map[string]string{"mode": "idle"}),
				point(2, map[string]string{"mode": "system"}),
			}},
		},
	}
	snap := newTestBuilder(exec, 1).Build(context.Background(),
		[]model.MetricQuery{{Key: "cpu_by_mode", Expr: "x", Kind: model.Vector}}, model.Detailed)

	samples := snap.Samples["cpu_by_mode"]
	require.Len(t, samples, 3)
	require.Equal(t, "mode=idle", samples[0].LabelString())
	require.Equal(t, "mode=system", samples[1].LabelString())
	require.Equal(t, "mode=user", samples[2].LabelString())
}

func TestBuild_TopNRanking(t *testing.T) {
	exec := &fakeExecutor{
		results: map[string]model.RawResult{
			"fs": {Points: []model.Point{
				point(60, map[string]string{"mountpoint": "/var"}),
				point(95, map[string]string{"mountpoint": "/"}),
				point(60, map[string]string{"mountpoint": "/home"}),
				point(40, map[string]string{"mountpoint": "/tmp"}),
			}},
		},
	}
	snap := newTestBuilder(exec, 1).Build(context.Background(),
		[]model.MetricQuery{{Key: "fs", Expr: "x", Kind: model.TopN, N: 3}}, model.Summary)

	samples := snap.Samples["fs"]
	require.Len(t, samples, 3)
	require.Equal(t, "mountpoint=/", samples[0].LabelString())
	// equal values break ties by label string
	require.Equal(t, "mountpoint=/home", samples[1].LabelString())
	require.Equal(t, "mountpoint=/var", samples[2].LabelString())
}

func TestBuild_TopNFewerThanN(t *testing.T) {
	exec := &fakeExecutor{
		results: map[string]model.RawResult{
			"fs": {Points: []model.Point{point(95, map[string]string{"mountpoint": "/"})}},
		},
	}
	snap := newTestBuilder(exec, 1).Build(context.Background(),
		[]model.MetricQuery{{Key: "fs", Expr: "x", Kind: model.TopN, N: 5}}, model.Summary)

	require.Len(t, snap.Samples["fs"], 1)
	require.NotContains(t, snap.FetchErrors, "fs")
}

func TestBuild_RespectsConcurrencyLimit(t *testing.T) {
	exec := &fakeExecutor{delay: 20 * time.Millisecond, results: map[string]model.RawResult{}}
	queries := make([]model.MetricQuery, 10)
	for i := range queries {
		queries[i] = model.MetricQuery{Key: string(rune('a' + i)), Expr: "x", Kind: model.Scalar}
	}

	newTestBuilder(exec, 2).Build(context.Background(), queries, model.Summary)
	require.LessOrEqual(t, atomic.LoadInt32(&exec.maxInFlight), int32(2))
}

func TestBuild_BatchTimeout(t *testing.T) {
	exec := &fakeExecutor{
		delay: 500 * time.Millisecond,
		results: map[string]model.RawResult{
			"slow": {Points: []model.Point{point(1, nil)}},
		},
	}
	b := NewBuilder(exec, &config.Config{RateLimit: 2, BatchTimeout: 0, Logger: zap.NewNop().Sugar()})
	b.batchTimeout = 50 * time.Millisecond

	snap := b.Build(context.Background(),
		[]model.MetricQuery{{Key: "slow", Expr: "x", Kind: model.Scalar}}, model.Summary)

	require.Contains(t, snap.FetchErrors, "slow")
	require.Empty(t, snap.Samples)
}
