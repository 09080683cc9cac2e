package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"course-enrollment/internal/domain/user"
	"course-enrollment/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoggedEngine(replay bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Logger(), IdempotencyMiddleware())
	r.Use(func(c *gin.Context) {
		c.Set(ContextActorKey, user.Actor{UserID: 500, Role: user.RoleStudent})
		c.Next()
	})
	r.POST("/api/v1/enrollments/batch", func(c *gin.Context) {
		if replay {
			c.Header(IdempotentReplayedHeader, "true")
		}
		c.JSON(http.StatusAccepted, gin.H{"success": true})
	})
	return r
}

func TestLogger_RecordsIdempotencyKeyAndReplay(t *testing.T) {
	hook := test.NewLocal(logger.GetLogger())
	defer hook.Reset()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/enrollments/batch", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	req.Header.Set(IdempotencyKeyHeader, "key-abc")
	w := httptest.NewRecorder()
	newLoggedEngine(true).ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "Request replayed from idempotency store", entry.Message)
	assert.Equal(t, "req-1", entry.Data["request_id"])
	assert.Equal(t, "key-abc", entry.Data["idempotency_key"])
	assert.Equal(t, true, entry.Data["replayed"])
	assert.Equal(t, int64(500), entry.Data["user_id"])
	assert.Equal(t, user.RoleStudent, entry.Data["role"])
}

func TestLogger_FreshRequestOmitsReplayFields(t *testing.T) {
	hook := test.NewLocal(logger.GetLogger())
	defer hook.Reset()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/enrollments/batch?dry=1", nil)
	w := httptest.NewRecorder()
	newLoggedEngine(false).ServeHTTP(w, req)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "Request completed", entry.Message)
	assert.Equal(t, "/api/v1/enrollments/batch?dry=1", entry.Data["path"])
	assert.Equal(t, http.StatusAccepted, entry.Data["status_code"])
	assert.NotEmpty(t, entry.Data["request_id"])
	assert.NotContains(t, entry.Data, "idempotency_key")
	assert.NotContains(t, entry.Data, "replayed")
}
