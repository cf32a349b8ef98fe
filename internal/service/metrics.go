package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iliyamo/school-admin/internal/apperr"
)

var authEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_events_total",
		Help: "Auth flow outcomes by operation and result kind",
	},
	[]string{"operation", "outcome"},
)

// observe records the outcome of one auth operation.
func observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = apperr.KindServerError.String()
		if ae, ok := apperr.As(err); ok {
			outcome = ae.Kind.String()
		}
	}
	authEventsTotal.WithLabelValues(op, outcome).Inc()
}
