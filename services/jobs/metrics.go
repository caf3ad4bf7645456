package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submittedJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dormportal",
		Subsystem: "jobs",
		Name:      "submitted_total",
		Help:      "Jobs handed to the pool, by outcome (accepted or refused).",
	}, []string{"result"})

	finishedJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dormportal",
		Subsystem: "jobs",
		Name:      "finished_total",
		Help:      "Jobs run by the pool workers, by outcome (done or panicked).",
	}, []string{"result"})
)
