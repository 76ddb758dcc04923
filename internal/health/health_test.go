package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/bandcluster/internal/logging"
)

type fixedChecker struct {
	name   string
	status HealthStatus
}

func (f fixedChecker) Name() string { return f.name }

func (f fixedChecker) Check(context.Context) *ComponentHealth {
	return &ComponentHealth{Name: f.name, Status: f.status}
}

func TestCheckHealth_Aggregates(t *testing.T) {
	tests := []struct {
		name     string
		statuses []HealthStatus
		want     HealthStatus
	}{
		{"none", nil, StatusHealthy},
		{"all healthy", []HealthStatus{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"degraded", []HealthStatus{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins", []HealthStatus{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hm := NewHealthManager("test", logging.DiscardLogger())
			for i, s := range tt.statuses {
				hm.RegisterChecker(fixedChecker{name: string(rune('a' + i)), status: s})
			}
			h := hm.CheckHealth(context.Background())
			assert.Equal(t, tt.want, h.Status)
			assert.Len(t, h.Components, len(tt.statuses))
			assert.Equal(t, int64(1), h.CheckCount)
			assert.Equal(t, "test", h.Version)
		})
	}
}

func TestProgress(t *testing.T) {
	p := NewProgress()
	assert.Equal(t, "job", p.Name())

	h := p.Check(context.Background())
	assert.Equal(t, StatusHealthy, h.Status)
	assert.Equal(t, "starting", h.Message)

	p.SetPhase(PhaseClustering)
	p.ObservePass(3, 0.25)
	h = p.Check(context.Background())
	assert.Equal(t, StatusHealthy, h.Status)
	assert.Equal(t, 3, h.Metadata["pass"])
	assert.Equal(t, 0.25, h.Metadata["shift"])

	p.Fail(errors.New("source broke"))
	h = p.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, h.Status)
	assert.Equal(t, "source broke", h.Message)
}

func TestHTTPHandler(t *testing.T) {
	hm := NewHealthManager("v1", logging.DiscardLogger())
	p := NewProgress()
	hm.RegisterChecker(p)

	rec := httptest.NewRecorder()
	hm.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body SystemHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, StatusHealthy, body.Status)
	assert.Contains(t, body.Components, "job")
	assert.Equal(t, 1.0, testutil.ToFloat64(componentStatus.WithLabelValues("job")))

	p.Fail(errors.New("boom"))
	rec = httptest.NewRecorder()
	hm.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 0.0, testutil.ToFloat64(componentStatus.WithLabelValues("job")))
}
