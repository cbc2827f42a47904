package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statesync_load_total",
		Help: "Aggregate loads by the tier that served them.",
	}, []string{"source"})

	saveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statesync_save_total",
		Help: "Aggregate saves by outcome.",
	}, []string{"outcome"})

	pollRefreshTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "statesync_poll_refresh_total",
		Help: "Poll ticks that observed a changed aggregate.",
	})
)
