package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/and161185/node-watchdog/internal/analyzer"
	"github.com/and161185/node-watchdog/internal/buildinfo"
	"github.com/and161185/node-watchdog/internal/config"
	"github.com/and161185/node-watchdog/internal/escalation"
	"github.com/and161185/node-watchdog/internal/queries"
	"github.com/and161185/node-watchdog/internal/queryexec"
	"github.com/and161185/node-watchdog/internal/report"
	"github.com/and161185/node-watchdog/internal/rules"
	"github.com/and161185/node-watchdog/internal/snapshot"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	buildinfo.PrintBuildInfo(buildVersion, buildDate, buildCommit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.NewConfig()
	logger := cfg.Logger

	if err := config.Validate(cfg); err != nil {
		logger.Fatal(err)
	}

	logger.Infof("Watchdog config: PromURL=%s, OutputDir=%q, ForceDetailed=%t, RateLimit=%d, DatabaseDSN set=%t, LLM set=%t",
		cfg.PromURL,
		cfg.OutputDir,
		cfg.ForceDetailed,
		cfg.RateLimit,
		cfg.DatabaseDsn != "",
		cfg.LLMAPIKey != "",
	)

	exec := queryexec.New(cfg)
	builder := snapshot.NewBuilder(exec, cfg)

	var an analyzer.Analyzer = analyzer.Noop{}
	if cfg.LLMAPIKey != "" && cfg.LLMURL != "" {
		an = analyzer.New(cfg)
	}

	sinks := report.Multi{report.NewFileSink(cfg.OutputDir, logger)}
	if cfg.DatabaseDsn != "" {
		pg, err := report.NewPostgresSink(ctx, cfg.DatabaseDsn)
		if err != nil {
			logger.Fatal(err)
		}
		defer pg.Close()
		sinks = append(sinks, pg)
	}

	ctrl := escalation.NewController(builder, an, sinks, escalation.Options{
		SummaryQueries: queries.Summary(cfg.QueryRange),
		DetailQueries:  queries.Detailed(cfg.QueryRange),
		Rules:          rules.Default(cfg.Thresholds),
		Forced:         cfg.ForceDetailed,
		Logger:         logger,
	})

	rep, err := ctrl.Run(ctx)
	if err != nil {
		logger.Fatal(err)
	}

	logger.Infof("run finished: severity=%s score=%.0f anomalies=%d degraded=%t",
		rep.Severity, rep.Score, len(rep.Anomalies), rep.Summary.Degraded())

	if len(rep.Anomalies) > 0 {
		os.Exit(1)
	}
}
