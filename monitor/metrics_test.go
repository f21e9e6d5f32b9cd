package monitor

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/go-docsrag/core"
)

func TestMetricsRecordsRequests(t *testing.T) {
	m := NewMetrics(Config{})
	m.ObserveRequest(StatusOK)
	m.ObserveRequest(StatusOK)
	m.ObserveRequest(StatusError)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues(StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues(StatusError)))
}

func TestMetricsStageAndRetrieved(t *testing.T) {
	m := NewMetrics(Config{})
	m.ObserveStage(core.StageEmbed, 20*time.Millisecond)
	m.ObserveStage(core.StageFetch, time.Second)
	m.ObserveRetrieved(2)

	assert.Equal(t, 2, testutil.CollectAndCount(m.stageDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(m.retrieved))

	expected := `
# HELP docsrag_retrieved_documents Documents returned by the retriever per request.
# TYPE docsrag_retrieved_documents histogram
docsrag_retrieved_documents_bucket{le="0"} 0
docsrag_retrieved_documents_bucket{le="1"} 0
docsrag_retrieved_documents_bucket{le="2"} 1
docsrag_retrieved_documents_bucket{le="3"} 1
docsrag_retrieved_documents_bucket{le="4"} 1
docsrag_retrieved_documents_bucket{le="5"} 1
docsrag_retrieved_documents_bucket{le="+Inf"} 1
docsrag_retrieved_documents_sum 2
docsrag_retrieved_documents_count 1
`
	require.NoError(t, testutil.CollectAndCompare(m.retrieved, strings.NewReader(expected)))
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics(Config{ServiceName: "docsrag-test"})
	m.ObserveRequest(StatusOK)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `docsrag_requests_total{service="docsrag-test",status="ok"} 1`)
}

func TestNoOpCollector(t *testing.T) {
	var c Collector = NewNoOpCollector()
	c.ObserveStage(core.StageEmbed, time.Second)
	c.ObserveRequest(StatusOK)
	c.ObserveRetrieved(3)
}
