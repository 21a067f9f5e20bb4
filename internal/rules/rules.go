// Package rules evaluates snapshots against threshold rules and scores the
// result into a run-level severity.
package rules

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/and161185/node-watchdog/internal/config"
	"github.com/and161185/node-watchdog/model"
)

// criticalUsageLimit escalates usage-style warnings to critical.
const criticalUsageLimit = 95

// Default builds the rule set for a run from the configured thresholds.
func Default(t config.Thresholds) []model.ThresholdRule {
	return []model.ThresholdRule{
		{MetricKey: "up", Comparator: model.LessThan, Limit: 1, Severity: model.Critical},
		{MetricKey: "cpu_usage", Comparator: model.GreaterThan, Limit: t.CPUUsage, CriticalLimit: criticalUsageLimit, Unit: "%", Severity: model.Warning},
		{MetricKey: "cpu_iowait", Comparator: model.GreaterThan, Limit: t.IOWait, Unit: "%", Severity: model.Warning},
		{MetricKey: "load1_per_core", Comparator: model.GreaterThan, Limit: t.Load1PerCore, Severity: model.Warning},
		{MetricKey: "memory_usage", Comparator: model.GreaterThan, Limit: t.MemoryUsage, CriticalLimit: criticalUsageLimit, Unit: "%", Severity: model.Warning},
		{MetricKey: "swap_usage", Comparator: model.GreaterThan, Limit: t.SwapUsage, Unit: "%", Severity: model.Warning},
		{MetricKey: "fs_usage_top3", Comparator: model.GreaterThan, Limit: t.DiskUsage, CriticalLimit: criticalUsageLimit, Unit: "%", Severity: model.Warning},
		{MetricKey: "fs_readonly", Comparator: model.GreaterThan, Limit: 0, Severity: model.Critical},
		{MetricKey: "network_err_per_sec", Comparator: model.GreaterThan, Limit: t.NetworkErrorsPerSec, Unit: "/s", Severity: model.Warning},
		{MetricKey: "tcp_retrans_per_sec", Comparator: model.GreaterThan, Limit: t.TCPRetransPerSec, Unit: "/s", Severity: model.Warning},
		{MetricKey: "tcp_listen_overflow_per_sec", Comparator: model.GreaterThan, Limit: 0, Unit: "/s", Severity: model.Warning},
	}
}

// Evaluate checks every rule against the snapshot and returns the anomalies
// in deterministic order: critical first, then metric key, then label string.
//
// Keys listed in the snapshot's fetch errors are skipped: missing data is
// never treated as an anomaly. Pure function of its inputs apart from the
// detection timestamp.
func Evaluate(snap *model.Snapshot, ruleSet []model.ThresholdRule) []model.AnomalyEvent {
	now := time.Now()
	var events []model.AnomalyEvent

	for _, r := range ruleSet {
		samples, ok := snap.Samples[r.MetricKey]
		if !ok {
			continue
		}
		for _, s := range samples {
			if !fires(r, s.Value) {
				continue
			}
			sev := r.Severity
			if r.CriticalLimit > 0 && s.Value >= r.CriticalLimit {
				sev = model.Critical
			}
			events = append(events, model.AnomalyEvent{
				Rule:       r,
				Severity:   sev,
				Value:      s.Value,
				Labels:     s.Labels,
				Message:    message(r, s),
				DetectedAt: now,
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Severity.Rank() != events[j].Severity.Rank() {
			return events[i].Severity.Rank() < events[j].Severity.Rank()
		}
		if events[i].Rule.MetricKey != events[j].Rule.MetricKey {
			return events[i].Rule.MetricKey < events[j].Rule.MetricKey
		}
		return model.FormatLabels(events[i].Labels) < model.FormatLabels(events[j].Labels)
	})
	return events
}

// fires applies the rule comparator with strict inequality: a value exactly
// at the limit does not fire.
func fires(r model.ThresholdRule, value float64) bool {
	switch r.Comparator {
	case model.LessThan:
		return value < r.Limit
	default:
		return value > r.Limit
	}
}

func message(r model.ThresholdRule, s model.Sample) string {
	word := "above"
	if r.Comparator == model.LessThan {
		word = "below"
	}
	if ls := s.LabelString(); ls != "" {
		return fmt.Sprintf("%s [%s] %.1f%s %s limit %.1f%s", r.MetricKey, ls, s.Value, r.Unit, word, r.Limit, r.Unit)
	}
	return fmt.Sprintf("%s %.1f%s %s limit %.1f%s", r.MetricKey, s.Value, r.Unit, word, r.Limit, r.Unit)
}

// weights define how much each metric contributes to the run score.
var weights = map[string]float64{
	"up":                          100,
	"cpu_usage":                   30,
	"cpu_iowait":                  20,
	"load1_per_core":              15,
	"memory_usage":                25,
	"swap_usage":                  20,
	"fs_usage_top3":               20,
	"fs_readonly":                 50,
	"network_err_per_sec":         15,
	"tcp_retrans_per_sec":         15,
	"tcp_listen_overflow_per_sec": 20,
}

// Score aggregates anomaly weight into a 0-100 run score. Critical events
// contribute their full weight; warnings contribute proportionally to how far
// past the limit they are.
func Score(events []model.AnomalyEvent) float64 {
	var total float64
	for _, ev := range events {
		w, ok := weights[ev.Rule.MetricKey]
		if !ok {
			w = 10
		}
		if ev.Severity == model.Critical {
			total += w
			continue
		}
		excess := ev.Value - ev.Rule.Limit
		if ev.Rule.Comparator == model.LessThan {
			excess = ev.Rule.Limit - ev.Value
		}
		total += math.Min(w, excess/2)
	}
	return math.Min(100, total)
}

// RunSeverity maps a run score to a severity label.
func RunSeverity(score float64) string {
	switch {
	case score >= 80:
		return "critical"
	case score >= 40:
		return "high"
	case score >= 20:
		return "medium"
	case score >= 1:
		return "low"
	default:
		return "normal"
	}
}
