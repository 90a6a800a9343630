package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordProviderCall(t *testing.T) {
	before := testutil.ToFloat64(providerCallsTotal.WithLabelValues("commit", "ok"))
	RecordProviderCall("commit", "ok", 120*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(providerCallsTotal.WithLabelValues("commit", "ok")))
}

func TestRecordReconcile(t *testing.T) {
	before := testutil.ToFloat64(reconcileOutcomes.WithLabelValues("Confirmed"))
	RecordReconcile("Confirmed")
	RecordReconcile("Confirmed")
	assert.Equal(t, before+2, testutil.ToFloat64(reconcileOutcomes.WithLabelValues("Confirmed")))
}
