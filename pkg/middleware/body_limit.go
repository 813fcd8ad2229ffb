package middleware

import (
	"net/http"

	"companion-saas/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

// BodyLimit caps request bodies at maxBytes. Requests announcing a larger
// Content-Length are refused up front; for chunked bodies the reader fails with
// *http.MaxBytesError, which readers map with errors.IsBodyTooLarge.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 || c.Request.Body == nil {
			c.Next()
			return
		}

		if c.Request.ContentLength > maxBytes {
			c.Error(errors.NewBodyTooLargeError())
			c.Abort()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
