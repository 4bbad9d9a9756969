// Package metrics exposes call router operational metrics as a prometheus
// collector that gathers values at scrape time.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/liam123-dot/clearskyai-prod-sub001/internal/database/models"
)

// CallStatusCounter returns call counts grouped by routing status.
type CallStatusCounter interface {
	CountByRoutingStatus(ctx context.Context) (map[string]int64, error)
}

// RouterStatsProvider exposes the router's in-process counters.
type RouterStatsProvider interface {
	ScheduleMatchCount() int64
	VendorForwardFailureCount() int64
	ApologyCount() int64
}

// routingStatuses enumerates the label values emitted for the calls metric.
var routingStatuses = []string{
	models.RoutingStatusDirectToAgent,
	models.RoutingStatusTransferredToTeam,
	models.RoutingStatusTeamNoAnswer,
	models.RoutingStatusCompleted,
}

// Collector is a prometheus.Collector for the call router. Any provider may
// be nil if unavailable.
type Collector struct {
	calls     CallStatusCounter
	stats     RouterStatsProvider
	startTime time.Time

	callsTotalDesc            *prometheus.Desc
	scheduleMatchesDesc       *prometheus.Desc
	vendorForwardFailuresDesc *prometheus.Desc
	apologiesDesc             *prometheus.Desc
	uptimeDesc                *prometheus.Desc
}

// NewCollector creates the metrics collector.
func NewCollector(calls CallStatusCounter, stats RouterStatsProvider, startTime time.Time) *Collector {
	return &Collector{
		calls:     calls,
		stats:     stats,
		startTime: startTime,

		callsTotalDesc: prometheus.NewDesc(
			"callrouter_calls_total",
			"Total calls processed, by routing status",
			[]string{"routing_status"}, nil,
		),
		scheduleMatchesDesc: prometheus.NewDesc(
			"callrouter_schedule_matches_total",
			"Inbound calls that matched a transfer schedule",
			nil, nil,
		),
		vendorForwardFailuresDesc: prometheus.NewDesc(
			"callrouter_vendor_forward_failures_total",
			"Failed forwards to the voice-AI vendor inbound endpoint",
			nil, nil,
		),
		apologiesDesc: prometheus.NewDesc(
			"callrouter_apology_responses_total",
			"Webhook responses degraded to a spoken apology",
			nil, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"callrouter_uptime_seconds",
			"Seconds since the call router process started",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.callsTotalDesc
	ch <- c.scheduleMatchesDesc
	ch <- c.vendorForwardFailuresDesc
	ch <- c.apologiesDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector. It queries all providers at scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.calls != nil {
		counts, err := c.calls.CountByRoutingStatus(ctx)
		if err != nil {
			slog.Error("metrics: failed to count calls by routing status", "error", err)
		} else {
			for _, status := range routingStatuses {
				ch <- prometheus.MustNewConstMetric(
					c.callsTotalDesc, prometheus.CounterValue,
					float64(counts[status]), status,
				)
			}
		}
	}

	if c.stats != nil {
		ch <- prometheus.MustNewConstMetric(
			c.scheduleMatchesDesc, prometheus.CounterValue,
			float64(c.stats.ScheduleMatchCount()),
		)
		ch <- prometheus.MustNewConstMetric(
			c.vendorForwardFailuresDesc, prometheus.CounterValue,
			float64(c.stats.VendorForwardFailureCount()),
		)
		ch <- prometheus.MustNewConstMetric(
			c.apologiesDesc, prometheus.CounterValue,
			float64(c.stats.ApologyCount()),
		)
	}

	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)
}
