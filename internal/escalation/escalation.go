// Package escalation orchestrates the two-tier acquisition and analysis flow
// of one run.
package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/and161185/node-watchdog/internal/analyzer"
	"github.com/and161185/node-watchdog/internal/report"
	"github.com/and161185/node-watchdog/internal/rules"
	"github.com/and161185/node-watchdog/model"
	"go.uber.org/zap"
)

// state of the run's state machine.
type state int

const (
	collectingSummary state = iota
	evaluating
	collectingDetail
	analyzing
	done
)

// Builder acquires one tier of metrics.
type Builder interface {
	Build(ctx context.Context, queries []model.MetricQuery, tier model.Tier) *model.Snapshot
}

// Options configures a controller.
type Options struct {
	SummaryQueries []model.MetricQuery
	DetailQueries  []model.MetricQuery
	Rules          []model.ThresholdRule
	Forced         bool // operator-requested unconditional detail fetch
	Logger         *zap.SugaredLogger
}

// Controller drives one run: acquire summary, evaluate, optionally acquire
// detail and analyze, then hand the assembled report to the sink.
type Controller struct {
	builder  Builder
	analyzer analyzer.Analyzer
	sink     report.Sink
	opts     Options
}

// NewController wires a controller from its collaborators.
func NewController(b Builder, a analyzer.Analyzer, sink report.Sink, opts Options) *Controller {
	return &Controller{builder: b, analyzer: a, sink: sink, opts: opts}
}

// Run executes the state machine to completion. The report is fully
// assembled before the sink sees it; only a sink failure makes the run fail.
func (c *Controller) Run(ctx context.Context) (*model.Report, error) {
	logger := c.opts.Logger

	var (
		summary, detail *model.Snapshot
		decision        model.Decision
		narrative       string
		narrativeFailed bool
	)

	for st := collectingSummary; st != done; {
		switch st {
		case collectingSummary:
			logger.Infof("collecting summary metrics (%d queries)", len(c.opts.SummaryQueries))
			summary = c.builder.Build(ctx, c.opts.SummaryQueries, model.Summary)
			logger.Info("\n" + RenderSummary(summary))
			st = evaluating

		case evaluating:
			anomalies := rules.Evaluate(summary, c.opts.Rules)
			decision = model.Decision{
				Anomalies:         anomalies,
				Forced:            c.opts.Forced,
				ShouldFetchDetail: c.opts.Forced || len(anomalies) > 0,
			}
			for _, a := range anomalies {
				logger.Warnf("anomaly [%s] %s", a.Severity, a.Message)
			}
			if decision.ShouldFetchDetail {
				st = collectingDetail
			} else {
				logger.Info("no anomalies detected, summary-only report")
				st = done
			}

		case collectingDetail:
			logger.Infof("collecting detailed metrics (%d queries)", len(c.opts.DetailQueries))
			detail = c.builder.Build(ctx, c.opts.DetailQueries, model.Detailed)
			st = analyzing

		case analyzing:
			n, err := c.analyzer.Analyze(ctx, summary, detail, decision.Anomalies)
			if err != nil {
				logger.Errorf("narrative analysis failed: %v", err)
				narrativeFailed = true
			} else {
				narrative = n
			}
			st = done
		}
	}

	score := rules.Score(decision.Anomalies)
	rep := &model.Report{
		Summary:         summary,
		Detail:          detail,
		Anomalies:       decision.Anomalies,
		Score:           score,
		Severity:        rules.RunSeverity(score),
		Narrative:       narrative,
		NarrativeFailed: narrativeFailed,
		GeneratedAt:     time.Now(),
	}

	if err := c.sink.Write(ctx, rep); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	return rep, nil
}
