package server

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/amurex/inboxtagger/internal/logging"
)

const contextKeyRequestID = "request_id"

// requestID propagates X-Request-ID, generating one when the caller did not
// send it.
func requestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Set(contextKeyRequestID, id)
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			return next(c)
		}
	}
}

// accessLog logs every request and records the HTTP metrics.
func accessLog(sc *ServerContext) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			status := c.Response().Status
			duration := time.Since(start)
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}

			sc.Metrics().RecordHTTPRequest(req.Context(), req.Method, path, status, duration)

			level := slog.LevelInfo
			if status >= 500 {
				level = slog.LevelError
			} else if path != ProcessLabelsRoute {
				level = slog.LevelDebug
			}
			sc.Logger().LogAttrs(req.Context(), level, "http request",
				slog.String("method", req.Method),
				slog.String("path", path),
				slog.Int("status", status),
				logging.Duration(duration),
				slog.String(logging.KeyRequestID, requestIDOf(c)))
			return nil
		}
	}
}

func requestIDOf(c echo.Context) string {
	id, _ := c.Get(contextKeyRequestID).(string)
	return id
}
