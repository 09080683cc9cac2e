package middleware

import (
	"github.com/gin-gonic/gin"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	IdempotencyKeyKey    = "idempotency_key"
)

func IdempotencyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		idempotencyKey := c.GetHeader(IdempotencyKeyHeader)
		c.Set(IdempotencyKeyKey, idempotencyKey)
		c.Next()
	}
}
