// Package model contains core data types for the project.
package model

import (
	"sort"
	"strings"
	"time"
)

// Tier identifies the acquisition depth of a snapshot.
type Tier string

const (
	Summary  Tier = "summary"  // Summary is the cheap tier, always fetched.
	Detailed Tier = "detailed" // Detailed is the expensive tier, fetched on escalation.
)

// QueryKind defines the expected result shape of a query. It is fixed in the
// query catalog and never inferred from the response.
type QueryKind string

const (
	Scalar QueryKind = "scalar" // exactly one point expected
	Vector QueryKind = "vector" // one point per label set
	TopN   QueryKind = "topn"   // ranked points, truncated to N
)

// MetricQuery binds a semantic key to an opaque PromQL expression.
type MetricQuery struct {
	Key  string
	Expr string
	Kind QueryKind
	N    int // top-N size, meaningful only for TopN queries
}

// Point is a single label-tagged value from an instant query result.
type Point struct {
	Labels map[string]string
	Value  float64
}

// RawResult is the decoded instant-vector response of one query.
type RawResult struct {
	Points []Point
}

// Sample is one normalized metric value.
type Sample struct {
	Key       string            `json:"key"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// LabelString renders the sample labels as a stable "k=v,k=v" string,
// sorted by label name. Used for deterministic ordering and tie-breaks.
func (s Sample) LabelString() string {
	return FormatLabels(s.Labels)
}

// FormatLabels renders a label mapping as a stable sorted "k=v,k=v" string.
func FormatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+labels[k])
	}
	return strings.Join(parts, ",")
}

// Snapshot is a normalized point-in-time collection of samples for one tier.
// Every key of the originating batch appears either in Samples or in
// FetchErrors, never in both.
type Snapshot struct {
	Tier        Tier                `json:"tier"`
	Samples     map[string][]Sample `json:"samples"`
	FetchErrors map[string]string   `json:"fetch_errors,omitempty"`
	FetchedAt   time.Time           `json:"fetched_at"`
}

// Degraded reports whether at least one query of the batch failed.
func (s *Snapshot) Degraded() bool {
	return len(s.FetchErrors) > 0
}

// Scalar returns the single value stored under key, or nil if the key is
// missing or does not hold exactly one sample.
func (s *Snapshot) Scalar(key string) *float64 {
	samples, ok := s.Samples[key]
	if !ok || len(samples) != 1 {
		return nil
	}
	v := samples[0].Value
	return &v
}

// Comparator defines how an observed value is compared to a rule limit.
type Comparator string

const (
	GreaterThan Comparator = "gt"
	LessThan    Comparator = "lt"
)

// Severity of an anomaly event.
type Severity string

const (
	Warning  Severity = "warning"
	Critical Severity = "critical"
)

// Rank orders severities for sorting: critical before warning.
func (s Severity) Rank() int {
	if s == Critical {
		return 0
	}
	return 1
}

// ThresholdRule is one immutable threshold check against a metric key.
// CriticalLimit, when non-zero, escalates a firing rule to critical once the
// observed value reaches it.
type ThresholdRule struct {
	MetricKey     string     `json:"metric_key"`
	Comparator    Comparator `json:"comparator"`
	Limit         float64    `json:"limit"`
	CriticalLimit float64    `json:"critical_limit,omitempty"`
	Unit          string     `json:"unit,omitempty"`
	Severity      Severity   `json:"severity"`
}

// AnomalyEvent records one threshold violation. Never mutated after creation.
type AnomalyEvent struct {
	Rule       ThresholdRule     `json:"rule"`
	Severity   Severity          `json:"severity"`
	Value      float64           `json:"value"`
	Labels     map[string]string `json:"labels,omitempty"`
	Message    string            `json:"message"`
	DetectedAt time.Time         `json:"detected_at"`
}

// Decision is the outcome of evaluating the summary snapshot.
type Decision struct {
	Anomalies         []AnomalyEvent
	Forced            bool
	ShouldFetchDetail bool
}

// Report is the fully assembled output of one run.
type Report struct {
	Summary         *Snapshot      `json:"summary"`
	Detail          *Snapshot      `json:"detail,omitempty"`
	Anomalies       []AnomalyEvent `json:"anomalies"`
	Score           float64        `json:"score"`
	Severity        string         `json:"severity"`
	Narrative       string         `json:"narrative,omitempty"`
	NarrativeFailed bool           `json:"narrative_failed,omitempty"`
	GeneratedAt     time.Time      `json:"generated_at"`
}
