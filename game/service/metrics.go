package service

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "pathboard.service"

var (
	// searchesTotal counts searches by outcome.
	// Labels: result (found, not_found, no_points)
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pathboard",
		Name:      "searches_total",
		Help:      "Total path searches by result",
	}, []string{"result"})

	// searchExpanded tracks how many nodes each search closed.
	searchExpanded = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pathboard",
		Name:      "search_expanded_nodes",
		Help:      "Nodes expanded per path search",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	// searchDuration measures wall time per search.
	// Labels: mode (single, batch)
	searchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pathboard",
		Name:      "search_duration_seconds",
		Help:      "Path search latency in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
	}, []string{"mode"})

	// boardEdits counts board mutations.
	// Labels: operation (toggle, set_cell, place_point, set_points, clear_points, regenerate, resize, reset)
	boardEdits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pathboard",
		Name:      "board_edits_total",
		Help:      "Total board mutations by operation",
	}, []string{"operation"})
)

func recordSearch(mode string, found bool, expanded int, d time.Duration) {
	result := "not_found"
	if found {
		result = "found"
	}
	searchesTotal.WithLabelValues(result).Inc()
	searchExpanded.Observe(float64(expanded))
	searchDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func recordEdit(operation string) {
	boardEdits.WithLabelValues(operation).Inc()
}

// startSpan opens a span named BoardService.<op> tagged with the session.
func (s *boardServiceImpl) startSpan(ctx context.Context, op, sessionID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "BoardService."+op,
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
}

// endSpan records err on span, if any, and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
