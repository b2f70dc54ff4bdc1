package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("test_endpoint")
		IncNotification("sent")
		IncOrderCreated("EBOOK")
	})
}

func TestBookingCounters(t *testing.T) {
	before := testutil.ToFloat64(bookingsCreated.WithLabelValues("GUIDANCE"))
	IncBookingCreated("GUIDANCE")
	assert.Equal(t, before+1, testutil.ToFloat64(bookingsCreated.WithLabelValues("GUIDANCE")))

	before = testutil.ToFloat64(bookingsRejected.WithLabelValues("capacity"))
	IncBookingRejected("capacity")
	IncBookingRejected("capacity")
	assert.Equal(t, before+2, testutil.ToFloat64(bookingsRejected.WithLabelValues("capacity")))

	before = testutil.ToFloat64(bookingTransitions.WithLabelValues("CONFIRMED"))
	IncBookingTransition("CONFIRMED")
	assert.Equal(t, before+1, testutil.ToFloat64(bookingTransitions.WithLabelValues("CONFIRMED")))
}
