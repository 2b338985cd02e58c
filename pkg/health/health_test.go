package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func up(context.Context) ComponentHealth { return ComponentHealth{Status: StatusUp} }

func TestRunAggregatesWorstStatus(t *testing.T) {
	c := NewChecker(0)
	c.Register("index", up)
	assert.Equal(t, StatusUp, c.Run(context.Background()).Status)

	c.Register("cache", OptionalCheck(PingCheck(func(context.Context) error { return errors.New("refused") })))
	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "refused", report.Components["cache"].Message)

	c.Register("store", PingCheck(func(context.Context) error { return errors.New("gone") }))
	assert.Equal(t, StatusDown, c.Run(context.Background()).Status)
}

func TestRunAppliesCheckTimeout(t *testing.T) {
	c := NewChecker(10 * time.Millisecond)
	c.Register("slow", PingCheck(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	report := c.Run(context.Background())
	assert.Equal(t, StatusDown, report.Status)
	assert.Contains(t, report.Components["slow"].Message, "deadline")
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker(0)
	c.Register("cache", OptionalCheck(PingCheck(func(context.Context) error { return errors.New("x") })))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var report Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, StatusDegraded, report.Status)

	c.Register("index", PingCheck(func(context.Context) error { return errors.New("not loaded") }))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker(0).LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}
