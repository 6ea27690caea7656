package claims

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	claimsSubmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reasonsform_claims_submitted_total",
		Help: "Claims created, by type and source (public or admin).",
	}, []string{"type", "source"})

	statusTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reasonsform_status_transitions_total",
		Help: "Applied claim status changes.",
	}, []string{"from", "to"})

	attachmentsStoredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reasonsform_attachments_stored_total",
		Help: "Attachments committed, by category.",
	}, []string{"category"})
)
