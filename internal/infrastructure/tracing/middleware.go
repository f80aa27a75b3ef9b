package tracing

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// HTTPMiddleware creates Gin middleware that traces requests to the
// metrics listener under the trace returned by current, typically the run
// being served. A nil func or an empty ID starts a new trace per request.
func HTTPMiddleware(tracer *Tracer, current func() TraceID) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if current != nil {
			if traceID := current(); traceID != "" {
				ctx = WithTraceID(ctx, traceID)
			}
		}

		span, ctx := tracer.StartSpan(ctx, "http "+c.FullPath())
		span.SetTag("http.method", c.Request.Method)

		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Trace-ID", string(span.TraceID))
		c.Header("X-Span-ID", string(span.SpanID))

		c.Next()

		span.SetTag("http.status", fmt.Sprint(c.Writer.Status()))

		var err error
		if len(c.Errors) > 0 {
			err = c.Errors.Last()
		}
		tracer.Finish(span, err)
	}
}
