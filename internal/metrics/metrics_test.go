package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestLikeRecorded(t *testing.T) {
	beforeMatched := testutil.ToFloat64(likesTotal.WithLabelValues("true"))
	beforeMatches := testutil.ToFloat64(matchesTotal)

	LikeRecorded(true, true)
	LikeRecorded(true, false)
	LikeRecorded(false, false)

	assert.Equal(t, beforeMatched+2, testutil.ToFloat64(likesTotal.WithLabelValues("true")))
	assert.Equal(t, beforeMatches+1, testutil.ToFloat64(matchesTotal))
}

func TestSubscriberGauge(t *testing.T) {
	before := testutil.ToFloat64(realtimeSubscribers)
	SubscriberOpened()
	SubscriberOpened()
	SubscriberClosed()
	assert.Equal(t, before+1, testutil.ToFloat64(realtimeSubscribers))
}
