package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bot_cycles_total",
	Help: "Cycles by trigger and final status",
}, []string{"trigger", "status"})

var cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "bot_cycle_duration_seconds",
	Help:    "Wall time of completed and failed cycles",
	Buckets: []float64{1, 10, 60, 300, 600, 1200, 1800, 3600},
})

var schedulerTicks = promauto.NewCounter(prometheus.CounterOpts{
	Name: "bot_scheduler_ticks_total",
	Help: "Scheduler ticks that tried to start a cycle",
})
