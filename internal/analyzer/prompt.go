package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/and161185/node-watchdog/model"
)

// buildPrompt picks the detailed template when a detail snapshot is present,
// the summary template otherwise. The collaborator only ever sees the typed
// snapshots and events, never raw transport payloads.
func buildPrompt(summary, detail *model.Snapshot, anomalies []model.AnomalyEvent) (string, error) {
	summaryJSON, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if detail != nil {
		detailJSON, err := json.MarshalIndent(detail, "", "  ")
		if err != nil {
			return "", err
		}
		b.WriteString("These are detailed metrics from a Linux server where anomalies were detected.\n")
		b.WriteString("Propose root cause hypotheses and remediation steps.\n\n")
		fmt.Fprintf(&b, "## Summary metrics\n```json\n%s\n```\n\n", summaryJSON)
		fmt.Fprintf(&b, "## Detailed metrics\n```json\n%s\n```\n\n", detailJSON)
		writeAnomalies(&b, anomalies)
		b.WriteString(`
## Output format
### Root cause hypotheses
(2-3 hypotheses in priority order, inferred from the metrics)

### Estimated impact
(how this affects the system and applications)

### Recommended investigation steps
(3-5 items in priority order, with concrete commands or checkpoints)

### Prevention
(1-2 recommendations to avoid recurrence)
`)
		return b.String(), nil
	}

	b.WriteString("These are monitoring metrics from a Linux server. Summarize its current state briefly.\n\n")
	fmt.Fprintf(&b, "## Summary metrics\n```json\n%s\n```\n\n", summaryJSON)
	writeAnomalies(&b, anomalies)
	b.WriteString(`
## Output format
### Overall state
(1-2 lines on the overall condition)

### Main issues
(only if anomalies exist, 2-3 bullet points)

### Recommended actions
(1-2 highest priority actions, if needed)
`)
	return b.String(), nil
}

func writeAnomalies(b *strings.Builder, anomalies []model.AnomalyEvent) {
	fmt.Fprintf(b, "## Detected anomalies (%d)\n", len(anomalies))
	if len(anomalies) == 0 {
		b.WriteString("none\n")
		return
	}
	for i, a := range anomalies {
		fmt.Fprintf(b, "%d. [%s] %s (value: %.2f, limit: %.2f)\n",
			i+1, strings.ToUpper(string(a.Severity)), a.Message, a.Value, a.Rule.Limit)
	}
}
