/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Seednode/secretbingo/records"
)

const metricsNamespace = "secretbingo"

type metrics struct {
	registry   *prometheus.Registry
	store      *records.Metrics
	feedClient prometheus.Gauge
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: reg,
		store:    records.NewMetrics(metricsNamespace, reg),
		feedClient: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "feed",
			Name:      "clients",
			Help:      "Ranking pages currently subscribed to reveal updates.",
		}),
	}

	reg.MustRegister(m.feedClient)

	return m
}

func serveMetrics(m *metrics) httprouter.Handle {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		h.ServeHTTP(w, r)
	}
}
