package observability

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler exposes the grading collectors on a Fiber route. The default
// registry is served unless an explicit gatherer is supplied.
func MetricsHandler(gatherers ...prometheus.Gatherer) fiber.Handler {
	RegisterMetrics()

	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if len(gatherers) > 0 && gatherers[0] != nil {
		gatherer = gatherers[0]
	}

	return adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
