package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wallet"

// Append outcomes recorded by WalletMetrics.
const (
	OutcomeCreated   = "created"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
)

// WalletMetrics tracks ledger activity.
type WalletMetrics struct {
	appends        *prometheus.CounterVec
	promoted       prometheus.Counter
	promotedPaise  prometheus.Counter
	conflictRetry  prometheus.Counter
	conflictFailed prometheus.Counter
}

// NewWalletMetrics registers the ledger metrics on the provided registerer.
func NewWalletMetrics(reg prometheus.Registerer) *WalletMetrics {
	if reg == nil {
		return &WalletMetrics{}
	}
	m := &WalletMetrics{
		appends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_appends_total",
			Help:      "Ledger append attempts by transaction type and outcome.",
		}, []string{"type", "outcome"}),
		promoted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unlock_promoted_total",
			Help:      "HOLD credits promoted to AVAILABLE.",
		}),
		promotedPaise: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unlock_promoted_paise_total",
			Help:      "Net paise moved from HOLD to AVAILABLE.",
		}),
		conflictRetry: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflict_retries_total",
			Help:      "Units of work retried after a transient conflict.",
		}),
		conflictFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflict_exhausted_total",
			Help:      "Units of work that ran out of conflict retries.",
		}),
	}
	reg.MustRegister(m.appends, m.promoted, m.promotedPaise, m.conflictRetry, m.conflictFailed)
	return m
}

func (m *WalletMetrics) IncAppend(txnType, outcome string) {
	if m == nil || m.appends == nil {
		return
	}
	m.appends.WithLabelValues(normalizeLabel(txnType), outcome).Inc()
}

func (m *WalletMetrics) AddPromoted(count int, paise int64) {
	if m == nil || m.promoted == nil {
		return
	}
	m.promoted.Add(float64(count))
	m.promotedPaise.Add(float64(paise))
}

func (m *WalletMetrics) IncConflictRetry() {
	if m == nil || m.conflictRetry == nil {
		return
	}
	m.conflictRetry.Inc()
}

func (m *WalletMetrics) IncConflictExhausted() {
	if m == nil || m.conflictFailed == nil {
		return
	}
	m.conflictFailed.Inc()
}
