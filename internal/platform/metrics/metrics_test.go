package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordUpload(t *testing.T) {
	attached := testutil.ToFloat64(uploadsTotal.WithLabelValues("attached"))
	bytes := testutil.ToFloat64(uploadBytesTotal)
	errs := testutil.ToFloat64(uploadsTotal.WithLabelValues("error"))

	RecordUpload("attached", 128)
	RecordUpload("error", 64)

	assert.Equal(t, attached+1, testutil.ToFloat64(uploadsTotal.WithLabelValues("attached")))
	assert.Equal(t, errs+1, testutil.ToFloat64(uploadsTotal.WithLabelValues("error")))
	// 失敗したアップロードはバイト数に含めない
	assert.Equal(t, bytes+128, testutil.ToFloat64(uploadBytesTotal))
}

func TestStreamStarted(t *testing.T) {
	before := testutil.ToFloat64(streamsActive)

	done := StreamStarted()
	assert.Equal(t, before+1, testutil.ToFloat64(streamsActive))

	done()
	assert.Equal(t, before, testutil.ToFloat64(streamsActive))
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := Middleware(mux)

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "GET /items/{id}", "418"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))

	require.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "GET /items/{id}", "418")))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	RecordBuild("reused", 0)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "repo_outliner_builds_total")
}
