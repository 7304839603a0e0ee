// Package metrics exposes billing pipeline health signals.
package metrics

import (
	"errors"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Config carries constant labels applied to every instrument.
type Config struct {
	ServiceName string
	Environment string
}

// BillingMetrics captures invoice pipeline throughput and failure signals.
type BillingMetrics struct {
	invoicesGenerated *prometheus.CounterVec
	invoiceRunItems   *prometheus.CounterVec
	paymentsRecorded  *prometheus.CounterVec
	creditNotesIssued prometheus.Counter
	runDuration       *prometheus.HistogramVec
}

var (
	billingMetricsOnce sync.Once
	billingMetrics     *BillingMetrics
)

// Billing returns the singleton billing metrics registry.
func Billing() *BillingMetrics {
	return BillingWithConfig(Config{})
}

// BillingWithConfig returns the singleton billing metrics registry using config labels.
func BillingWithConfig(cfg Config) *BillingMetrics {
	billingMetricsOnce.Do(func() {
		billingMetrics = newBillingMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return billingMetrics
}

// ResetBillingMetricsForTest resets the billing metrics singleton for tests.
func ResetBillingMetricsForTest() {
	billingMetricsOnce = sync.Once{}
	billingMetrics = nil
}

func newBillingMetrics(registerer prometheus.Registerer, cfg Config) *BillingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "tenancy"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	invoicesGenerated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tenancy_invoices_generated_total",
		Help:        "Invoices generated by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	invoiceRunItems := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tenancy_invoice_run_items_total",
		Help:        "Invoice run items by run type and status.",
		ConstLabels: constLabels,
	}, []string{"run_type", "status"})
	paymentsRecorded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tenancy_payments_recorded_total",
		Help:        "Payments recorded by mode and status.",
		ConstLabels: constLabels,
	}, []string{"mode", "status"})
	creditNotesIssued := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "tenancy_credit_notes_issued_total",
		Help:        "Credit notes issued.",
		ConstLabels: constLabels,
	})
	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "tenancy_invoice_run_duration_seconds",
		Help:        "Invoice run latency by run type.",
		Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	}, []string{"run_type"})

	for _, collector := range []prometheus.Collector{
		invoicesGenerated,
		invoiceRunItems,
		paymentsRecorded,
		creditNotesIssued,
		runDuration,
	} {
		register(registerer, collector)
	}

	return &BillingMetrics{
		invoicesGenerated: invoicesGenerated,
		invoiceRunItems:   invoiceRunItems,
		paymentsRecorded:  paymentsRecorded,
		creditNotesIssued: creditNotesIssued,
		runDuration:       runDuration,
	}
}

func register(registerer prometheus.Registerer, collector prometheus.Collector) {
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return
		}
	}
}

// ObserveInvoiceGenerated counts a generation by outcome ("created" or "updated").
func (m *BillingMetrics) ObserveInvoiceGenerated(outcome string) {
	if m == nil || m.invoicesGenerated == nil {
		return
	}
	m.invoicesGenerated.WithLabelValues(outcome).Inc()
}

// ObserveRunItem counts one invoice run item outcome.
func (m *BillingMetrics) ObserveRunItem(runType, status string) {
	if m == nil || m.invoiceRunItems == nil {
		return
	}
	m.invoiceRunItems.WithLabelValues(runType, status).Inc()
}

// ObservePaymentRecorded counts a recorded payment by mode and resulting status.
func (m *BillingMetrics) ObservePaymentRecorded(mode, status string) {
	if m == nil || m.paymentsRecorded == nil {
		return
	}
	m.paymentsRecorded.WithLabelValues(mode, status).Inc()
}

// ObserveCreditNoteIssued counts an issued credit note.
func (m *BillingMetrics) ObserveCreditNoteIssued() {
	if m == nil || m.creditNotesIssued == nil {
		return
	}
	m.creditNotesIssued.Inc()
}

// ObserveRunDuration records how long an invoice run took.
func (m *BillingMetrics) ObserveRunDuration(runType string, seconds float64) {
	if m == nil || m.runDuration == nil {
		return
	}
	m.runDuration.WithLabelValues(runType).Observe(seconds)
}
