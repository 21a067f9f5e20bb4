package report

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/and161185/node-watchdog/model"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testReport(anomalies []model.AnomalyEvent) *model.Report {
	return &model.Report{
		Summary: &model.Snapshot{
			Tier:      model.Summary,
			Samples:   map[string][]model.Sample{"cpu_usage": {{Key: "cpu_usage", Value: 85}}},
			FetchedAt: time.Now(),
		},
		Anomalies:   anomalies,
		Severity:    "normal",
		GeneratedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func TestFileSink_CleanRun(t *testing.T) {
	dir := t.TempDir()
	sink := NewFileSink(dir, zap.NewNop().Sugar())

	require.NoError(t, sink.Write(context.Background(), testReport(nil)))

	data, err := os.ReadFile(filepath.Join(dir, "metrics_20260830_120000.json"))
	require.NoError(t, err)

	var got model.Report
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, model.Summary, got.Summary.Tier)

	// no anomaly log for a clean run
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestFileSink_AnomalousRunWritesAnomalyLog(t *testing.T) {
	dir := t.TempDir()
	sink := NewFileSink(dir, zap.NewNop().Sugar())

	anomalies := []model.AnomalyEvent{{
		Rule:     model.ThresholdRule{MetricKey: "cpu_usage", Comparator: model.GreaterThan, Limit: 80},
		Severity: model.Warning,
		Value:    85,
		Message:  "cpu_usage 85.0 above limit 80.0",
	}}
	require.NoError(t, sink.Write(context.Background(), testReport(anomalies)))

	data, err := os.ReadFile(filepath.Join(dir, "anomaly_20260830_120000.json"))
	require.NoError(t, err)

	var entry anomalyLog
	require.NoError(t, json.Unmarshal(data, &entry))
	require.Len(t, entry.Anomalies, 1)
	require.Equal(t, "cpu_usage", entry.Anomalies[0].Rule.MetricKey)
}

func TestFileSink_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "output")
	sink := NewFileSink(dir, zap.NewNop().Sugar())

	require.NoError(t, sink.Write(context.Background(), testReport(nil)))
	require.DirExists(t, dir)
}

type fakeSink struct {
	calls int
	err   error
}

func (f *fakeSink) Write(ctx context.Context, r *model.Report) error {
	f.calls++
	return f.err
}

func TestMulti(t *testing.T) {
	a := &fakeSink{}
	b := &fakeSink{}
	require.NoError(t, Multi{a, b}.Write(context.Background(), testReport(nil)))
	require.Equal(t, 1, a.calls)
	require.Equal(t, 1, b.calls)

	failing := &fakeSink{err: errors.New("disk full")}
	after := &fakeSink{}
	err := Multi{failing, after}.Write(context.Background(), testReport(nil))
	require.Error(t, err)
	require.Zero(t, after.calls)
}
