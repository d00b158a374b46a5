package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLedgerMetricsRecordOutcomes(t *testing.T) {
	m := Ledger()
	before := testutil.ToFloat64(m.operations.WithLabelValues("pay", "custody"))
	m.RecordOperation("pay", "custody", errors.New("insufficient funds"), time.Millisecond)
	m.RecordOperation("pay", "", nil, time.Millisecond)
	if got := testutil.ToFloat64(m.operations.WithLabelValues("pay", "custody")); got != before+1 {
		t.Fatalf("custody outcome %v, want %v", got, before+1)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("pay", "success")); got < 1 {
		t.Fatalf("success outcome not recorded")
	}
	m.SetOutstanding("usdc", 1500)
	if got := testutil.ToFloat64(m.outstanding.WithLabelValues("usdc")); got != 1500 {
		t.Fatalf("outstanding %v, want 1500", got)
	}
	m.SetHeight(9)
	if got := testutil.ToFloat64(m.height); got != 9 {
		t.Fatalf("height %v, want 9", got)
	}
}

func TestRPCMetricsObserve(t *testing.T) {
	m := RPC()
	m.Observe("lulo_getContract", -32031, time.Millisecond)
	if got := testutil.ToFloat64(m.requests.WithLabelValues("lulo_getContract", "error_32031")); got < 1 {
		t.Fatalf("error outcome not recorded")
	}
	m.RecordThrottle("")
	if got := testutil.ToFloat64(m.throttles.WithLabelValues("unspecified")); got < 1 {
		t.Fatalf("throttle not recorded")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var ledger *LedgerMetrics
	ledger.RecordOperation("pay", "", nil, 0)
	ledger.SetOutstanding("x", 1)
	var rpc *RPCMetrics
	rpc.Observe("m", 0, 0)
	rpc.RecordThrottle("r")
}
