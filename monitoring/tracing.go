package monitoring

import (
	"context"
	"log"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("flightbind/http")

// InitTracer installs the global tracer provider and W3C propagators.
// With an endpoint, spans are exported over OTLP/HTTP; without one the
// provider is installed with no exporter so span contexts still flow.
// The returned function shuts the provider down.
func InitTracer(endpoint, serviceName string) func() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		)),
	}
	if endpoint != "" {
		exp, err := otlptracehttp.New(context.Background(),
			otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
		if err != nil {
			log.Printf("tracing: create OTLP exporter: %v", err)
		} else {
			opts = append(opts, sdktrace.WithBatcher(exp))
		}
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("tracing: shutdown: %v", err)
		}
	}
}

// TracingMiddleware opens a server span per request, continuing any
// incoming trace context, and echoes the trace id back to the caller.
func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		span.SetAttributes(
			semconv.HTTPMethodKey.String(r.Method),
			semconv.URLPathKey.String(r.URL.Path),
		)
		if rid := chimw.GetReqID(r.Context()); rid != "" {
			span.SetAttributes(attribute.String("http.request_id", rid))
		}
		if sc := span.SpanContext(); sc.IsValid() {
			w.Header().Set("X-Trace-Id", sc.TraceID().String())
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// StartClientSpan opens a client span for an outbound HTTP request.
// The caller ends the span.
func StartClientSpan(ctx context.Context, name, urlStr, method string) (context.Context, trace.Span) {
	if method == "" {
		method = http.MethodGet
	}
	ctx, span := otel.Tracer("flightbind/client").Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		semconv.HTTPMethodKey.String(method),
		attribute.String("http.url", urlStr),
	)
	return ctx, span
}

// StartCycleSpan starts a span covering one matcher cycle against a
// schedule source.
func StartCycleSpan(ctx context.Context, source string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("flightbind/matcher").Start(ctx, "matcher.cycle")
	span.SetAttributes(attribute.String("source", source))
	return ctx, span
}
