package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordersIncrementCounters(t *testing.T) {
	m.init()
	abandoned := testutil.ToFloat64(m.filesAbandoned)
	published := testutil.ToFloat64(m.filesPublished.WithLabelValues("files_queue"))

	RecordAbandoned()
	RecordPublished("files_queue", 3)
	RecordDownloaded(10 * time.Millisecond)

	assert.Equal(t, abandoned+1, testutil.ToFloat64(m.filesAbandoned))
	assert.Equal(t, published+3, testutil.ToFloat64(m.filesPublished.WithLabelValues("files_queue")))
}
