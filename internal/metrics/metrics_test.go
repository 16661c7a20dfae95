package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCycle(t *testing.T) {
	before := testutil.ToFloat64(cycles.WithLabelValues("POST", CycleCompleted))
	RecordCycle("POST", CycleCompleted)
	RecordCycle("POST", CycleCompleted)
	after := testutil.ToFloat64(cycles.WithLabelValues("POST", CycleCompleted))

	if got := after - before; got != 2 {
		t.Errorf("cycles delta = %v, want 2", got)
	}
}

func TestSetHeartbeats(t *testing.T) {
	SetHeartbeats(7)
	if got := testutil.ToFloat64(heartbeats); got != 7 {
		t.Errorf("heartbeats = %v, want 7", got)
	}
}

func TestRecordSideEffect(t *testing.T) {
	before := testutil.ToFloat64(sideEffects.WithLabelValues("like", "no_target"))
	RecordSideEffect("like", "no_target")
	after := testutil.ToFloat64(sideEffects.WithLabelValues("like", "no_target"))

	if got := after - before; got != 1 {
		t.Errorf("side effect delta = %v, want 1", got)
	}
}
