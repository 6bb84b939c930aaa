package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveExpert(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveExpert("lsi", 5*time.Millisecond, nil)
	m.ObserveExpert("lsi", 5*time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1, testutil.CollectAndCount(m.ExpertLatency))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ExpertErrorsTotal.WithLabelValues("lsi")))
}

func TestObserveRank(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveRank("ok", "miss", 3, time.Millisecond)
	m.ObserveRank("ok", "hit", 3, time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.RankQueriesTotal.WithLabelValues("ok")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.RankLatency))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveExpert("tfidf", time.Millisecond, nil)
		m.ObserveBuild("vocabulary", time.Second)
		m.ObserveRank("error", "miss", 0, time.Millisecond)
	})
}

func TestHandlerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveRank("ok", "hit", 2, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rank_queries_total")
}
