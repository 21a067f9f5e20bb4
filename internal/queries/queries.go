// Package queries defines the static PromQL catalogs for both tiers.
//
// Each query binds a semantic key to an opaque expression and a fixed result
// shape. The rng argument is the range window used by rate() expressions.
package queries

import (
	"fmt"

	"github.com/and161185/node-watchdog/model"
)

// Summary returns the cheap catalog fetched on every run.
func Summary(rng string) []model.MetricQuery {
	return []model.MetricQuery{
		// observability health
		{Key: "up", Expr: "up", Kind: model.Scalar},
		{Key: "scrape_duration", Expr: "scrape_duration_seconds", Kind: model.Scalar},

		// CPU
		{Key: "cpu_usage", Expr: fmt.Sprintf(`100 * (1 - avg(rate(node_cpu_seconds_total{mode="idle"}[%s])))`, rng), Kind: model.Scalar},
		{Key: "cpu_iowait", Expr: fmt.Sprintf(`100 * avg(rate(node_cpu_seconds_total{mode="iowait"}[%s]))`, rng), Kind: model.Scalar},
		{Key: "load1", Expr: "node_load1", Kind: model.Scalar},
		{Key: "load5", Expr: "node_load5", Kind: model.Scalar},
		{Key: "load15", Expr: "node_load15", Kind: model.Scalar},
		{Key: "load1_per_core", Expr: "node_load1 / count(node_cpu_seconds_total{mode=\"idle\"}) without (cpu, mode)", Kind: model.Scalar},

		// memory
		{Key: "memory_usage", Expr: "100 * (1 - (node_memory_MemFree_bytes + node_memory_Cached_bytes + node_memory_Buffers_bytes + node_memory_SReclaimable_bytes) / node_memory_MemTotal_bytes)", Kind: model.Scalar},
		{Key: "swap_usage", Expr: "100 * (1 - node_memory_SwapFree_bytes / node_memory_SwapTotal_bytes)", Kind: model.Scalar},

		// disk I/O
		{Key: "disk_read_bytes_per_sec", Expr: fmt.Sprintf("sum(rate(node_disk_read_bytes_total[%s]))", rng), Kind: model.Scalar},
		{Key: "disk_write_bytes_per_sec", Expr: fmt.Sprintf("sum(rate(node_disk_written_bytes_total[%s]))", rng), Kind: model.Scalar},
		{Key: "disk_io_util", Expr: fmt.Sprintf("100 * sum(rate(node_disk_io_time_seconds_total[%s]))", rng), Kind: model.Scalar},

		// filesystems
		{Key: "fs_usage_top3", Expr: `topk(3, 100 * (1 - node_filesystem_avail_bytes{fstype!~"tmpfs|fuse.*"} / node_filesystem_size_bytes{fstype!~"tmpfs|fuse.*"}))`, Kind: model.TopN, N: 3},
		{Key: "fs_readonly", Expr: "max(node_filesystem_readonly)", Kind: model.Scalar},

		// network
		{Key: "network_rx_bytes_per_sec", Expr: fmt.Sprintf("sum(rate(node_network_receive_bytes_total[%s]))", rng), Kind: model.Scalar},
		{Key: "network_tx_bytes_per_sec", Expr: fmt.Sprintf("sum(rate(node_network_transmit_bytes_total[%s]))", rng), Kind: model.Scalar},
		{Key: "network_drop_per_sec", Expr: fmt.Sprintf("sum(rate(node_network_receive_drop_total[%s]) + rate(node_network_transmit_drop_total[%s]))", rng, rng), Kind: model.Scalar},
		{Key: "network_err_per_sec", Expr: fmt.Sprintf("sum(rate(node_network_receive_errs_total[%s]) + rate(node_network_transmit_errs_total[%s]))", rng, rng), Kind: model.Scalar},

		// TCP / sockets
		{Key: "tcp_curr_estab", Expr: "node_netstat_Tcp_CurrEstab", Kind: model.Scalar},
		{Key: "tcp_retrans_per_sec", Expr: fmt.Sprintf("sum(rate(node_netstat_Tcp_RetransSegs[%s]))", rng), Kind: model.Scalar},
		{Key: "tcp_listen_overflow_per_sec", Expr: fmt.Sprintf("sum(rate(node_netstat_TcpExt_ListenOverflows[%s]) + rate(node_netstat_TcpExt_ListenDrops[%s]))", rng, rng), Kind: model.Scalar},
	}
}

// Detailed returns the expensive catalog fetched only on escalation.
func Detailed(rng string) []model.MetricQuery {
	return []model.MetricQuery{
		// CPU by mode
		{Key: "cpu_by_mode", Expr: fmt.Sprintf("100 * sum by (mode) (rate(node_cpu_seconds_total[%s]))", rng), Kind: model.Vector},
		{Key: "context_switches_per_sec", Expr: fmt.Sprintf("rate(node_context_switches_total[%s])", rng), Kind: model.Scalar},

		// memory breakdown
		{Key: "memory_active", Expr: "node_memory_Active_bytes", Kind: model.Scalar},
		{Key: "memory_inactive", Expr: "node_memory_Inactive_bytes", Kind: model.Scalar},
		{Key: "memory_cached", Expr: "node_memory_Cached_bytes", Kind: model.Scalar},
		{Key: "memory_buffers", Expr: "node_memory_Buffers_bytes", Kind: model.Scalar},
		{Key: "memory_slab", Expr: "node_memory_Slab_bytes", Kind: model.Scalar},
		{Key: "memory_dirty", Expr: "node_memory_Dirty_bytes", Kind: model.Scalar},

		// disks by device
		{Key: "disk_read_ops_top5", Expr: fmt.Sprintf("topk(5, sum by (device) (rate(node_disk_reads_completed_total[%s])))", rng), Kind: model.TopN, N: 5},
		{Key: "disk_write_ops_top5", Expr: fmt.Sprintf("topk(5, sum by (device) (rate(node_disk_writes_completed_total[%s])))", rng), Kind: model.TopN, N: 5},
		{Key: "disk_read_bytes_top5", Expr: fmt.Sprintf("topk(5, sum by (device) (rate(node_disk_read_bytes_total[%s])))", rng), Kind: model.TopN, N: 5},
		{Key: "disk_write_bytes_top5", Expr: fmt.Sprintf("topk(5, sum by (device) (rate(node_disk_written_bytes_total[%s])))", rng), Kind: model.TopN, N: 5},
		{Key: "disk_io_time_top5", Expr: fmt.Sprintf("topk(5, sum by (device) (rate(node_disk_io_time_seconds_total[%s])))", rng), Kind: model.TopN, N: 5},

		// filesystems, all mountpoints
		{Key: "fs_all_usage", Expr: `100 * (1 - node_filesystem_avail_bytes{fstype!~"tmpfs|fuse.*"} / node_filesystem_size_bytes{fstype!~"tmpfs|fuse.*"})`, Kind: model.Vector},
		{Key: "fs_inodes_usage", Expr: `100 * (1 - node_filesystem_files_free{fstype!~"tmpfs|fuse.*"} / node_filesystem_files{fstype!~"tmpfs|fuse.*"})`, Kind: model.Vector},

		// network by interface
		{Key: "network_rx_top5", Expr: fmt.Sprintf("topk(5, sum by (device) (rate(node_network_receive_bytes_total[%s])))", rng), Kind: model.TopN, N: 5},
		{Key: "network_tx_top5", Expr: fmt.Sprintf("topk(5, sum by (device) (rate(node_network_transmit_bytes_total[%s])))", rng), Kind: model.TopN, N: 5},
		{Key: "network_drop_top5", Expr: fmt.Sprintf("topk(5, sum by (device) (rate(node_network_receive_drop_total[%s]) + rate(node_network_transmit_drop_total[%s])))", rng, rng), Kind: model.TopN, N: 5},
		{Key: "network_err_top5", Expr: fmt.Sprintf("topk(5, sum by (device) (rate(node_network_receive_errs_total[%s]) + rate(node_network_transmit_errs_total[%s])))", rng, rng), Kind: model.TopN, N: 5},

		// TCP detail
		{Key: "tcp_active_opens_per_sec", Expr: fmt.Sprintf("rate(node_netstat_Tcp_ActiveOpens[%s])", rng), Kind: model.Scalar},
		{Key: "tcp_passive_opens_per_sec", Expr: fmt.Sprintf("rate(node_netstat_Tcp_PassiveOpens[%s])", rng), Kind: model.Scalar},
		{Key: "tcp_in_errs_per_sec", Expr: fmt.Sprintf("rate(node_netstat_Tcp_InErrs[%s])", rng), Kind: model.Scalar},
		{Key: "tcp_out_rsts_per_sec", Expr: fmt.Sprintf("rate(node_netstat_Tcp_OutRsts[%s])", rng), Kind: model.Scalar},
		{Key: "tcp_timeouts_per_sec", Expr: fmt.Sprintf("rate(node_netstat_TcpExt_TCPTimeouts[%s])", rng), Kind: model.Scalar},

		// socket detail
		{Key: "sockets_used", Expr: "node_sockstat_sockets_used", Kind: model.Scalar},
		{Key: "tcp_alloc", Expr: "node_sockstat_TCP_alloc", Kind: model.Scalar},
		{Key: "tcp_inuse", Expr: "node_sockstat_TCP_inuse", Kind: model.Scalar},
		{Key: "tcp_orphan", Expr: "node_sockstat_TCP_orphan", Kind: model.Scalar},
		{Key: "tcp_tw", Expr: "node_sockstat_TCP_tw", Kind: model.Scalar},
	}
}
