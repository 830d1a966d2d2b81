package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var notificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "portal_notifications_total",
		Help: "Notification transport attempts by transport and result.",
	},
	[]string{"transport", "result"},
)

func observeAttempt(transport string, ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	notificationsTotal.WithLabelValues(transport, result).Inc()
}
