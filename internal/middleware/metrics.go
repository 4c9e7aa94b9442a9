package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
)

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// InitMetrics returns the process-wide Prometheus HTTP middleware. Its
// collectors live in the default registry, so it is built only once.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.New(serviceName)
	})
	return prom
}

// MetricsMiddleware serves /metrics on app and returns the request recorder.
func MetricsMiddleware(app *fiber.App, p *fiberprometheus.FiberPrometheus) fiber.Handler {
	p.RegisterAt(app, "/metrics")
	return p.Middleware
}
