package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveInvoiceGenerated(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newBillingMetrics(registry, Config{ServiceName: "tenancy", Environment: "test"})

	m.ObserveInvoiceGenerated("created")
	m.ObserveInvoiceGenerated("created")
	m.ObserveInvoiceGenerated("updated")

	created := testutil.ToFloat64(m.invoicesGenerated.WithLabelValues("created"))
	updated := testutil.ToFloat64(m.invoicesGenerated.WithLabelValues("updated"))
	require.Equal(t, float64(2), created)
	require.Equal(t, float64(1), updated)
}

func TestObserveRunItem(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newBillingMetrics(registry, Config{})

	m.ObserveRunItem("MONTHLY_RENT", "SUCCESS")
	m.ObserveRunItem("MONTHLY_RENT", "FAILED")
	m.ObserveRunItem("MONTHLY_RENT", "SUCCESS")

	require.Equal(t, float64(2), testutil.ToFloat64(m.invoiceRunItems.WithLabelValues("MONTHLY_RENT", "SUCCESS")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.invoiceRunItems.WithLabelValues("MONTHLY_RENT", "FAILED")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *BillingMetrics

	m.ObserveInvoiceGenerated("created")
	m.ObserveRunItem("MONTHLY_RENT", "SUCCESS")
	m.ObservePaymentRecorded("CASH", "COMPLETED")
	m.ObserveCreditNoteIssued()
	m.ObserveRunDuration("MONTHLY_RENT", 0.5)
}
