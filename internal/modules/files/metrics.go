package files

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var downloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "portal_file_downloads_total",
	Help: "Completed download counter increments.",
})
