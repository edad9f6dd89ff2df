// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package system

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ReqLoggerKey is the context key used to store request-scoped logger in gin context.
const ReqLoggerKey = "reqLogger"

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "requestId"

// RequestIDHeader is echoed back on every response.
const RequestIDHeader = "X-Request-ID"

// NewLogger builds the process logger. Production config emits JSON, debug
// switches to the console encoder. Stacktraces are disabled for non-fatal
// levels and timestamps are RFC3339 UTC under the "ts" key.
func NewLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return logger, nil
}

// GetReqLogger returns a logger carrying the request fields. A named fallback
// keeps its name and gets the request id and client address attached; a nil
// fallback yields the logger stored by RequestContext.
func GetReqLogger(c *gin.Context, fallback *zap.SugaredLogger) *zap.SugaredLogger {
	if c == nil {
		return fallback
	}
	if id := c.GetString(RequestIDKey); id != "" && fallback != nil {
		return fallback.With("requestId", id, "clientIP", c.ClientIP())
	}
	if v, ok := c.Get(ReqLoggerKey); ok {
		if l, ok2 := v.(*zap.SugaredLogger); ok2 {
			return l
		}
	}
	return fallback
}

// RequestContext assigns a request id (keeping a caller supplied one) and
// stores a logger annotated with it and the client address in the gin context.
func RequestContext(base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Set(ReqLoggerKey, base.With("requestId", id, "clientIP", c.ClientIP()))
		c.Next()
	}
}
