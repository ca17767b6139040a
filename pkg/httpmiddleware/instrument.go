package httpmiddleware

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Instrument records a request counter and span per request using the given
// providers.
func Instrument(service string, mp metric.MeterProvider, tp trace.TracerProvider) Middleware {
	meter := mp.Meter(service)
	tracer := tp.Tracer(service)

	requests, err := meter.Int64Counter("http.server.requests")
	if err != nil {
		// Metric registration only fails on invalid instrument names.
		panic(err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path)
			defer span.End()

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			requests.Add(ctx, 1,
				metric.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.Int("http.status_code", rec.status),
				),
			)
		})
	}
}
