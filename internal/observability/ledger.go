package observability

import "github.com/andino-erp/andino-erp/internal/ledger"

// LedgerMetrics adapts Metrics to the ledger service's metrics port.
type LedgerMetrics struct {
	Metrics *Metrics
}

func (l LedgerMetrics) RecordPost(kind ledger.Kind, txType ledger.TransactionType) {
	l.Metrics.RecordLedgerPost(string(kind), string(txType))
}

func (l LedgerMetrics) RecordViolation(reason string) {
	l.Metrics.RecordInvariantViolation(reason)
}
