package stt

import "github.com/prometheus/client_golang/prometheus"

var poolIdle = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "voiced",
		Subsystem: "stt",
		Name:      "pool_idle_engines",
		Help:      "Idle decoder engines currently pooled, per language",
	},
	[]string{"lang"},
)

func init() {
	prometheus.MustRegister(poolIdle)
}
