package media

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_uploads_total",
			Help: "Uploads by media type and result",
		},
		[]string{"type", "result"},
	)

	cleanupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_storage_cleanup_failures_total",
			Help: "Inline storage removals that failed after the record was deleted",
		},
	)
)
