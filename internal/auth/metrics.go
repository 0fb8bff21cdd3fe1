// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BudgetBook Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Result labels for auth metrics.
const (
	ResultSuccess  = "success"
	ResultConflict = "conflict"
	ResultInvalid  = "invalid"
	ResultMissing  = "missing"
	ResultError    = "error"
)

// Registrations counts registration attempts by result.
// Use RegisterMetrics to register this with a Prometheus registry.
var Registrations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "budgetbook_auth_registrations_total",
		Help: "Total number of registration attempts by result",
	},
	[]string{"result"},
)

// Logins counts login attempts by result.
// Use RegisterMetrics to register this with a Prometheus registry.
var Logins = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "budgetbook_auth_logins_total",
		Help: "Total number of login attempts by result",
	},
	[]string{"result"},
)

// TokenVerifications counts bearer token checks performed by the Guard.
// Use RegisterMetrics to register this with a Prometheus registry.
var TokenVerifications = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "budgetbook_auth_token_verifications_total",
		Help: "Total number of bearer token verifications by result",
	},
	[]string{"result"},
)

// RegisterMetrics registers auth package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Registrations)
	reg.MustRegister(Logins)
	reg.MustRegister(TokenVerifications)
}

func recordRegistration(result string) {
	Registrations.WithLabelValues(result).Inc()
}

func recordLogin(result string) {
	Logins.WithLabelValues(result).Inc()
}

func recordTokenVerification(result string) {
	TokenVerifications.WithLabelValues(result).Inc()
}
