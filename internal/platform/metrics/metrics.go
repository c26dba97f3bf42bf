// Package metrics registers Prometheus instrumentation for core operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for contract coordination.
type Metrics struct {
	ContractsCreated   prometheus.Counter
	ContractsSigned    prometheus.Counter
	ContractsDeleted   prometheus.Counter
	InvitesIssued      prometheus.Counter
	InvitesRedeemed    prometheus.Counter
	SignaturesRecorded prometheus.Counter
	SigningSessions    *prometheus.CounterVec
	ProviderPolls      *prometheus.CounterVec
}

// New creates and registers the collectors on reg.
//
// A nil registerer falls back to the default global registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		ContractsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "renteasy_contracts_created_total",
			Help: "Total number of contracts created",
		}),
		ContractsSigned: factory.NewCounter(prometheus.CounterOpts{
			Name: "renteasy_contracts_signed_total",
			Help: "Total number of contracts promoted to signed",
		}),
		ContractsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "renteasy_contracts_deleted_total",
			Help: "Total number of contracts deleted",
		}),
		InvitesIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "renteasy_invites_issued_total",
			Help: "Total number of invite tokens issued",
		}),
		InvitesRedeemed: factory.NewCounter(prometheus.CounterOpts{
			Name: "renteasy_invites_redeemed_total",
			Help: "Total number of invite tokens redeemed",
		}),
		SignaturesRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "renteasy_signatures_recorded_total",
			Help: "Total number of party signatures durably recorded",
		}),
		SigningSessions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "renteasy_signing_sessions_total",
			Help: "Total number of signing sessions by terminal state",
		}, []string{"state"}),
		ProviderPolls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "renteasy_provider_polls_total",
			Help: "Total number of signing provider polls by result",
		}, []string{"result"}),
	}
}
