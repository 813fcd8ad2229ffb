package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"companion-saas/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestCheckerDatabaseDown(t *testing.T) {
	c := NewChecker(logger.Discard(), "test", time.Second)
	c.RegisterDatabaseCheck(func(ctx context.Context) error { return errors.New("connection refused") })
	c.RunChecks(context.Background())

	assert.False(t, c.IsSystemHealthy())
	db := c.GetStatus()["database"]
	assert.Equal(t, StatusDown, db.Status)
	assert.Equal(t, "connection refused", db.Error)
}

func TestCheckerNonCriticalDoesNotFail(t *testing.T) {
	c := NewChecker(logger.Discard(), "test", time.Second)
	c.RegisterDatabaseCheck(func(ctx context.Context) error { return nil })
	c.RegisterCheck("tracing", false, func(ctx context.Context) (Status, string, error) {
		return StatusDown, "exporter unavailable", errors.New("boom")
	})
	c.RunChecks(context.Background())

	assert.True(t, c.IsSystemHealthy())
}

func TestCheckerNotCheckedYetIsDown(t *testing.T) {
	c := NewChecker(logger.Discard(), "test", time.Second)
	c.RegisterDatabaseCheck(func(ctx context.Context) error { return nil })
	assert.False(t, c.IsSystemHealthy())
}

func TestCheckerHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := NewChecker(logger.Discard(), "1.2.3", time.Second)
	healthy := true
	c.RegisterDatabaseCheck(func(ctx context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("down")
	})

	r := gin.New()
	r.GET("/health", c.Handler())

	c.RunChecks(context.Background())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"1.2.3"`)

	healthy = false
	c.RunChecks(context.Background())
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
