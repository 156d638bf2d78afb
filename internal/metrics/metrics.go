// Package metrics is the ambient Prometheus instrumentation every
// component reports into. No exporter or HTTP handler is wired up here —
// metrics export is an explicit Non-goal (spec §1) — this only declares
// the collectors so `prometheus.DefaultRegisterer` already has something
// to serve if the embedding program chooses to expose it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsGauge tracks live Connections per tier, labeled
	// "T1"/"T2" (spec §4.7 "two pools, T1 and T2").
	ConnectionsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "netcore_connections",
		Help: "Number of live, handshaked connections per tier.",
	}, []string{"tier"})

	// BansCounter tracks bans by reason (spec §7 "Ban").
	BansCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netcore_bans_total",
		Help: "Number of peers banned, by reason.",
	}, []string{"reason"})

	// RoutedDroppedCounter tracks the Routed-message drop paths (dedup,
	// TTL-expired, no-route, throttled) by reason.
	RoutedDroppedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netcore_routed_dropped_total",
		Help: "Number of Routed messages dropped, by reason.",
	}, []string{"reason"})

	// FramesRxBytes and FramesTxBytes track FramedStream throughput
	// (spec §4.1).
	FramesRxBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netcore_frame_rx_bytes_total",
		Help: "Total bytes received across all connections.",
	})
	FramesTxBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netcore_frame_tx_bytes_total",
		Help: "Total bytes sent across all connections.",
	})

	// ChunkCacheEntries tracks live ChunkCache entries (spec §4.4).
	ChunkCacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "netcore_chunk_cache_entries",
		Help: "Number of chunk entries currently held by the chunk cache.",
	})

	// HandshakeDuration measures time from Startup to Ready/halt (spec
	// §4.5).
	HandshakeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "netcore_handshake_duration_seconds",
		Help:    "Time from handshake start to completion or failure.",
		Buckets: prometheus.DefBuckets,
	})
)
