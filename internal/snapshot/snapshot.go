// Package snapshot fans out query batches and normalizes the results into
// typed snapshots.
package snapshot

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/and161185/node-watchdog/internal/config"
	"github.com/and161185/node-watchdog/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Executor runs one instant query.
type Executor interface {
	Execute(ctx context.Context, q model.MetricQuery) (model.RawResult, error)
}

// Builder fans out a query batch under a bounded worker limit and merges the
// results into a snapshot. A failing query never aborts the batch.
type Builder struct {
	exec         Executor
	limit        int
	batchTimeout time.Duration
	logger       *zap.SugaredLogger
}

// NewBuilder creates a builder from the run configuration.
func NewBuilder(exec Executor, cfg *config.Config) *Builder {
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 1
	}
	return &Builder{
		exec:         exec,
		limit:        limit,
		batchTimeout: time.Duration(cfg.BatchTimeout) * time.Second,
		logger:       cfg.Logger,
	}
}

// Build executes every query of the batch concurrently and returns the merged
// snapshot. Failed keys land in FetchErrors; a snapshot with every key failed
// is still returned, flagged degraded, never an error.
func (b *Builder) Build(ctx context.Context, queries []model.MetricQuery, tier model.Tier) *model.Snapshot {
	ctx, cancel := context.WithTimeout(ctx, b.batchTimeout)
	defer cancel()

	type slot struct {
		raw model.RawResult
		err error
	}
	// one result slot per query; workers never share slots, so the merge
	// below needs no locking
	slots := make([]slot, len(queries))

	var g errgroup.Group
	g.SetLimit(b.limit)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			slots[i].raw, slots[i].err = b.exec.Execute(ctx, q)
			return nil
		})
	}
	_ = g.Wait()

	snap := &model.Snapshot{
		Tier:        tier,
		Samples:     make(map[string][]model.Sample, len(queries)),
		FetchErrors: make(map[string]string),
		FetchedAt:   time.Now(),
	}

	for i, q := range queries {
		if slots[i].err != nil {
			b.logger.Warnw("query failed", "key", q.Key, "tier", tier, "error", slots[i].err)
			snap.FetchErrors[q.Key] = slots[i].err.Error()
			continue
		}
		samples, err := normalize(q, slots[i].raw, snap.FetchedAt)
		if err != nil {
			b.logger.Warnw("query result rejected", "key", q.Key, "tier", tier, "error", err)
			snap.FetchErrors[q.Key] = err.Error()
			continue
		}
		snap.Samples[q.Key] = samples
	}

	if snap.Degraded() {
		b.logger.Warnf("%s snapshot degraded: %d of %d queries failed", tier, len(snap.FetchErrors), len(queries))
	}
	return snap
}

// normalize turns a raw instant-vector result into samples according to the
// query kind declared in the catalog.
func normalize(q model.MetricQuery, raw model.RawResult, ts time.Time) ([]model.Sample, error) {
	switch q.Kind {
	case model.Vector:
		return normalizeVector(q, raw, ts), nil
	case model.TopN:
		return normalizeTopN(q, raw, ts), nil
	default: // Scalar
		if len(raw.Points) != 1 {
			return nil, fmt.Errorf("malformed response: expected exactly 1 point, got %d", len(raw.Points))
		}
		return []model.Sample{{Key: q.Key, Value: raw.Points[0].Value, Labels: raw.Points[0].Labels, Timestamp: ts}}, nil
	}
}

func normalizeVector(q model.MetricQuery, raw model.RawResult, ts time.Time) []model.Sample {
	samples := toSamples(q, raw, ts)
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].LabelString() < samples[j].LabelString()
	})
	return samples
}

// normalizeTopN ranks points by value descending and keeps the top q.N.
// Ties break by label string lexical order; fewer than q.N points is fine.
func normalizeTopN(q model.MetricQuery, raw model.RawResult, ts time.Time) []model.Sample {
	samples := toSamples(q, raw, ts)
	sort.Slice(samples, func(i, j int) bool {
		if samples[i].Value != samples[j].Value {
			return samples[i].Value > samples[j].Value
		}
		return samples[i].LabelString() < samples[j].LabelString()
	})
	if q.N > 0 && len(samples) > q.N {
		samples = samples[:q.N]
	}
	return samples
}

func toSamples(q model.MetricQuery, raw model.RawResult, ts time.Time) []model.Sample {
	samples := make([]model.Sample, 0, len(raw.Points))
	for _, p := range raw.Points {
		samples = append(samples, model.Sample{Key: q.Key, Value: p.Value, Labels: p.Labels, Timestamp: ts})
	}
	return samples
}
