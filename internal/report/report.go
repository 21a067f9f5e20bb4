// Package report persists finished run reports.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/and161185/node-watchdog/model"
	"go.uber.org/zap"
)

// Sink accepts a fully assembled report for persistence.
type Sink interface {
	Write(ctx context.Context, r *model.Report) error
}

// Multi writes the report to every sink, returning the first failure.
type Multi []Sink

func (m Multi) Write(ctx context.Context, r *model.Report) error {
	for _, s := range m {
		if err := s.Write(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// FileSink writes reports as JSON files into a directory.
type FileSink struct {
	dir    string
	logger *zap.SugaredLogger
}

// NewFileSink creates a file sink rooted at dir.
func NewFileSink(dir string, logger *zap.SugaredLogger) *FileSink {
	return &FileSink{dir: dir, logger: logger}
}

// anomalyLog is the reduced payload written alongside anomalous reports.
type anomalyLog struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Severity    string               `json:"severity"`
	Score       float64              `json:"score"`
	Anomalies   []model.AnomalyEvent `json:"anomalies"`
	Narrative   string               `json:"narrative,omitempty"`
}

// Write stores the report as metrics_<ts>.json; anomalous runs additionally
// get an anomaly_<ts>.json with the detection result only.
func (s *FileSink) Write(ctx context.Context, r *model.Report) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	ts := r.GeneratedAt.Format("20060102_150405")

	if err := s.writeJSON(filepath.Join(s.dir, "metrics_"+ts+".json"), r); err != nil {
		return err
	}

	if len(r.Anomalies) > 0 {
		entry := anomalyLog{
			GeneratedAt: r.GeneratedAt,
			Severity:    r.Severity,
			Score:       r.Score,
			Anomalies:   r.Anomalies,
			Narrative:   r.Narrative,
		}
		if err := s.writeJSON(filepath.Join(s.dir, "anomaly_"+ts+".json"), entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileSink) writeJSON(path string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	s.logger.Infof("saved to %s", path)
	return nil
}
