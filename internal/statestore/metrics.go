package statestore

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Commits
	CommitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "statestore_commits_total",
		Help: "The total number of change set commits",
	}, []string{"result"})

	CommitLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "statestore_commit_latency_seconds",
		Help: "The latency of durable change set commits",
	})

	EntriesWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "statestore_entries_written_total",
		Help: "The total number of records written per region",
	}, []string{"region"})

	// Reads
	ReadErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "statestore_read_errors_total",
		Help: "The total number of failed reads",
	}, []string{"op", "kind"})
)

func init() {
	prometheus.MustRegister(CommitsTotal)
	prometheus.MustRegister(CommitLatency)
	prometheus.MustRegister(EntriesWritten)
	prometheus.MustRegister(ReadErrors)
}

func readFailed(op string, err error) {
	kind := "storage"
	if errors.Is(err, ErrEncoding) {
		kind = "encoding"
	}
	ReadErrors.WithLabelValues(op, kind).Inc()
}
