package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHTTPRequest(t *testing.T) {
	// Reset metrics
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	RecordHTTPRequest("POST", "/api/signer/generate-live-payment", "200", 0.123)

	// Verify counter incremented
	counter := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/api/signer/generate-live-payment", "200"))
	if counter != 1.0 {
		t.Errorf("Expected counter to be 1.0, got %f", counter)
	}
}

func TestRecordPaymentForwarded(t *testing.T) {
	PaymentsForwardedTotal.Reset()
	SignerForwardDuration.Reset()

	RecordPaymentForwarded("generate-live-payment", "200", 0.5, 27648000)
	RecordPaymentForwarded("generate-live-payment", "200", 0.3, 27648000)
	RecordPaymentForwarded("sign-orchestrator-info", "502", 0.1, 0)

	ok := testutil.ToFloat64(PaymentsForwardedTotal.WithLabelValues("generate-live-payment", "200"))
	if ok != 2.0 {
		t.Errorf("Expected forwarded counter to be 2.0, got %f", ok)
	}

	failed := testutil.ToFloat64(PaymentsForwardedTotal.WithLabelValues("sign-orchestrator-info", "502"))
	if failed != 1.0 {
		t.Errorf("Expected failed counter to be 1.0, got %f", failed)
	}
}

func TestRecordCreditDeduction(t *testing.T) {
	CreditDeductionsTotal.Reset()

	RecordCreditDeduction("success")
	RecordCreditDeduction("success")
	RecordCreditDeduction("insufficient")

	success := testutil.ToFloat64(CreditDeductionsTotal.WithLabelValues("success"))
	if success != 2.0 {
		t.Errorf("Expected success counter to be 2.0, got %f", success)
	}

	insufficient := testutil.ToFloat64(CreditDeductionsTotal.WithLabelValues("insufficient"))
	if insufficient != 1.0 {
		t.Errorf("Expected insufficient counter to be 1.0, got %f", insufficient)
	}
}

func TestRecordReconciliation(t *testing.T) {
	ReconciliationsTotal.Reset()

	RecordReconciliation("running", 0.05)
	RecordReconciliation("stopped", 0.08)
	RecordReconciliation("running", 0.04)

	running := testutil.ToFloat64(ReconciliationsTotal.WithLabelValues("running"))
	if running != 2.0 {
		t.Errorf("Expected running counter to be 2.0, got %f", running)
	}

	stopped := testutil.ToFloat64(ReconciliationsTotal.WithLabelValues("stopped"))
	if stopped != 1.0 {
		t.Errorf("Expected stopped counter to be 1.0, got %f", stopped)
	}
}

func TestRecordUsageReport(t *testing.T) {
	UsageReportsTotal.Reset()

	RecordUsageReport("success")
	RecordUsageReport("error")
	RecordUsageReport("success")

	success := testutil.ToFloat64(UsageReportsTotal.WithLabelValues("success"))
	if success != 2.0 {
		t.Errorf("Expected success counter to be 2.0, got %f", success)
	}

	failed := testutil.ToFloat64(UsageReportsTotal.WithLabelValues("error"))
	if failed != 1.0 {
		t.Errorf("Expected error counter to be 1.0, got %f", failed)
	}
}

func TestRecordCacheAccess(t *testing.T) {
	CacheHitsTotal.Reset()
	CacheMissesTotal.Reset()

	RecordCacheAccess("auth", true)
	RecordCacheAccess("auth", true)
	RecordCacheAccess("auth", false)

	hits := testutil.ToFloat64(CacheHitsTotal.WithLabelValues("auth"))
	if hits != 2.0 {
		t.Errorf("Expected cache hits to be 2.0, got %f", hits)
	}

	misses := testutil.ToFloat64(CacheMissesTotal.WithLabelValues("auth"))
	if misses != 1.0 {
		t.Errorf("Expected cache misses to be 1.0, got %f", misses)
	}
}

func TestRecordError(t *testing.T) {
	ErrorsTotal.Reset()

	RecordError("proxy", "price_decode")
	RecordError("reporting", "http")
	RecordError("proxy", "price_decode")

	proxyErrors := testutil.ToFloat64(ErrorsTotal.WithLabelValues("proxy", "price_decode"))
	if proxyErrors != 2.0 {
		t.Errorf("Expected proxy price_decode errors to be 2.0, got %f", proxyErrors)
	}

	reportingErrors := testutil.ToFloat64(ErrorsTotal.WithLabelValues("reporting", "http"))
	if reportingErrors != 1.0 {
		t.Errorf("Expected reporting http errors to be 1.0, got %f", reportingErrors)
	}
}

func BenchmarkRecordHTTPRequest(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordHTTPRequest("POST", "/api/signer/generate-live-payment", "200", 0.123)
	}
}
