package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/queuectl/common"
)

// ErrorHandler renders the last error recorded on the context. APIErrors are
// sent with their own status and fields; anything else is logged and reported
// as a bare 500 so store internals never reach the client.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err

		var apiErr common.APIError
		switch {
		case errors.As(err, &apiErr):
			if apiErr.Status >= http.StatusInternalServerError {
				slog.Error("request failed",
					slog.String("method", c.Request.Method),
					slog.String("path", c.FullPath()),
					slog.Any("err", err))
			}
			c.JSON(apiErr.Status, apiErr)
		case errors.Is(err, context.DeadlineExceeded):
			c.JSON(http.StatusRequestTimeout, common.Errf(http.StatusRequestTimeout, "request timed out"))
		default:
			slog.Error("unhandled request error",
				slog.String("method", c.Request.Method),
				slog.String("path", c.FullPath()),
				slog.Any("err", err))
			c.JSON(http.StatusInternalServerError, common.Errf(http.StatusInternalServerError, "internal server error"))
		}
	}
}
