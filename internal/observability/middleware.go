package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Handler-set context keys picked up by RequestLogger.
const (
	CtxCommandVerb    = "swarmctl.command_verb"
	CtxCommandOutcome = "swarmctl.command_outcome"
)

// unmatchedRoute labels requests no route claimed, keeping path cardinality bounded.
const unmatchedRoute = "unmatched"

// quietRoutes are polled by scrapers and probes; they log at debug unless they fail.
var quietRoutes = map[string]bool{
	"/metrics": true,
	"/health":  true,
}

func routeOf(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return unmatchedRoute
}

// RequestLogger logs one structured event per request; 5xx at error, 4xx at
// warn. Agent ids from the route and command verb/outcome set by handlers are
// attached when present.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := routeOf(c)

		var event *zerolog.Event
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		case quietRoutes[route]:
			event = logger.Debug()
		default:
			event = logger.Info()
		}

		event = event.
			Str("method", c.Request.Method).
			Str("route", route).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int("bytes", c.Writer.Size())
		if id := c.Param("id"); id != "" {
			event = event.Str("agent_id", id)
		}
		if verb := c.GetString(CtxCommandVerb); verb != "" {
			event = event.Str("verb", verb)
		}
		if outcome := c.GetString(CtxCommandOutcome); outcome != "" {
			event = event.Str("outcome", outcome)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.Msg("http_request")
	}
}

// RequestMetricsMiddleware records request counts and latency by route template.
func RequestMetricsMiddleware(node string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		RecordHTTPRequest(node, c.Request.Method, routeOf(c), c.Writer.Status(), time.Since(start))
	}
}
