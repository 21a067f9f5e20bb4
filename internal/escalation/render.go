package escalation

import (
	"fmt"
	"strings"

	"github.com/and161185/node-watchdog/internal/utils"
	"github.com/and161185/node-watchdog/model"
)

// RenderSummary formats a summary snapshot for the run log.
func RenderSummary(snap *model.Snapshot) string {
	var b strings.Builder
	line := strings.Repeat("=", 60)

	b.WriteString(line + "\nmetrics summary\n" + line + "\n")

	b.WriteString("\n[observability]\n")
	fmt.Fprintf(&b, "  up: %s\n", renderScalar(snap, "up", "%.0f"))
	fmt.Fprintf(&b, "  scrape_duration: %ss\n", renderScalar(snap, "scrape_duration", "%.3f"))

	b.WriteString("\n[cpu]\n")
	fmt.Fprintf(&b, "  usage: %s\n", utils.FormatPercent(snap.Scalar("cpu_usage")))
	fmt.Fprintf(&b, "  iowait: %s\n", utils.FormatPercent(snap.Scalar("cpu_iowait")))
	fmt.Fprintf(&b, "  load1: %s\n", renderScalar(snap, "load1", "%.2f"))
	fmt.Fprintf(&b, "  load5: %s\n", renderScalar(snap, "load5", "%.2f"))
	fmt.Fprintf(&b, "  load15: %s\n", renderScalar(snap, "load15", "%.2f"))

	b.WriteString("\n[memory]\n")
	fmt.Fprintf(&b, "  usage: %s\n", utils.FormatPercent(snap.Scalar("memory_usage")))
	fmt.Fprintf(&b, "  swap: %s\n", utils.FormatPercent(snap.Scalar("swap_usage")))

	b.WriteString("\n[disk io]\n")
	fmt.Fprintf(&b, "  read: %s/s\n", utils.FormatBytes(snap.Scalar("disk_read_bytes_per_sec"), "MB"))
	fmt.Fprintf(&b, "  write: %s/s\n", utils.FormatBytes(snap.Scalar("disk_write_bytes_per_sec"), "MB"))

	b.WriteString("\n[filesystems]\n")
	if samples, ok := snap.Samples["fs_usage_top3"]; ok && len(samples) > 0 {
		for i, s := range samples {
			mp := s.Labels["mountpoint"]
			if mp == "" {
				mp = "unknown"
			}
			fmt.Fprintf(&b, "  %d. %s: %.1f%%\n", i+1, mp, s.Value)
		}
	} else {
		b.WriteString("  no data\n")
	}

	b.WriteString("\n[network]\n")
	fmt.Fprintf(&b, "  rx: %s/s\n", utils.FormatBytes(snap.Scalar("network_rx_bytes_per_sec"), "MB"))
	fmt.Fprintf(&b, "  tx: %s/s\n", utils.FormatBytes(snap.Scalar("network_tx_bytes_per_sec"), "MB"))
	fmt.Fprintf(&b, "  errors: %s\n", utils.FormatRate(snap.Scalar("network_err_per_sec")))

	b.WriteString("\n[tcp]\n")
	fmt.Fprintf(&b, "  established: %s\n", renderScalar(snap, "tcp_curr_estab", "%.0f"))
	fmt.Fprintf(&b, "  retransmits: %s\n", utils.FormatRate(snap.Scalar("tcp_retrans_per_sec")))

	if snap.Degraded() {
		fmt.Fprintf(&b, "\n%d queries failed\n", len(snap.FetchErrors))
	}

	b.WriteString(line)
	return b.String()
}

func renderScalar(snap *model.Snapshot, key, format string) string {
	v := snap.Scalar(key)
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf(format, *v)
}
