package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActivationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "license",
		Name:      "activations_total",
		Help:      "License activation attempts by outcome.",
	}, []string{"outcome"})

	StatusChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "license",
		Name:      "status_checks_total",
		Help:      "License status checks by reported status.",
	}, []string{"status"})

	KeysGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "license",
		Name:      "keys_generated_total",
		Help:      "License keys generated by tier code.",
	}, []string{"tier"})

	DeviceBansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "license",
		Name:      "device_bans_total",
		Help:      "Device ban commands applied.",
	})

	BanPropagatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "license",
		Name:      "ban_propagated_licenses_total",
		Help:      "License records banned because their bound device was banned.",
	})
)
