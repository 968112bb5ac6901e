// Package obs holds the prometheus collectors of the ledger engine.
package obs

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the ledger collectors. A nil *Metrics is valid and records
// nothing, so services can be built without a registry.
type Metrics struct {
	vouchersCreated     *prometheus.CounterVec
	statusChanges       *prometheus.CounterVec
	attachmentsRejected prometheus.Counter
	busyRetries         prometheus.Counter
	txDuration          *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		vouchersCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_vouchers_created_total",
				Help: "Vouchers created, by voucher type.",
			},
			[]string{"type"},
		),
		statusChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_status_changes_total",
				Help: "Voucher status transitions, by target status.",
			},
			[]string{"status"},
		),
		attachmentsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_attachments_rejected_total",
			Help: "Uploads dropped by the attachment rules.",
		}),
		busyRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_busy_retries_total",
			Help: "Transactions retried after a lock conflict.",
		}),
		txDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_transaction_duration_seconds",
				Help:    "Ledger transaction latencies in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
	}
	reg.MustRegister(m.vouchersCreated, m.statusChanges, m.attachmentsRejected, m.busyRetries, m.txDuration)
	return m
}

func (m *Metrics) VoucherCreated(voucherType int) {
	if m == nil {
		return
	}
	m.vouchersCreated.WithLabelValues(strconv.Itoa(voucherType)).Inc()
}

func (m *Metrics) StatusChanged(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}

func (m *Metrics) AttachmentsRejected(n int) {
	if m == nil || n == 0 {
		return
	}
	m.attachmentsRejected.Add(float64(n))
}

func (m *Metrics) BusyRetry() {
	if m == nil {
		return
	}
	m.busyRetries.Inc()
}

// ObserveTx records the duration of one transaction, retries included.
func (m *Metrics) ObserveTx(d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.txDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// WriteTextfile dumps every metric of g to path in the text exposition format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
