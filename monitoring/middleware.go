package monitoring

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
)

// PrometheusHandler exposes every metric registered in this package.
func PrometheusHandler() http.Handler { return promhttp.Handler() }

// MetricsMiddleware counts and times all HTTP traffic.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		HTTPRequests.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(statusOf(ww))).Inc()
		HTTPDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// InstrumentedBindingHandler wraps a query-API handler with per-callsign
// lookup metrics. Handlers without a {callsign} path parameter are
// counted under "all".
func InstrumentedBindingHandler(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callsign := chi.URLParam(r, "callsign")
		if callsign == "" {
			callsign = "all"
		}
		start := time.Now()
		BindingRequests.WithLabelValues(callsign).Inc()

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		handler(ww, r)

		status := statusOf(ww)
		if status >= http.StatusInternalServerError {
			BindingErrors.WithLabelValues(callsign).Inc()
		}
		BindingDuration.WithLabelValues(callsign).Observe(time.Since(start).Seconds())
		LastStatus.WithLabelValues(callsign).Set(float64(status))
	}
}

// LoggingMiddleware writes one structured line per request, correlated
// with the request id and the active trace when present.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		traceID := ""
		if sc := trace.SpanFromContext(r.Context()).SpanContext(); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		}
		log.Printf("http method=%s path=%q status=%d bytes=%d duration=%s remote=%s request_id=%s trace_id=%s",
			r.Method, r.URL.RequestURI(), statusOf(ww), ww.BytesWritten(), time.Since(start),
			remoteHost(r), chimw.GetReqID(r.Context()), traceID)
	})
}

// statusOf reads the wrapped writer's status, defaulting to 200 when the
// handler never called WriteHeader explicitly.
func statusOf(ww chimw.WrapResponseWriter) int {
	if s := ww.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}

// remoteHost prefers the first X-Forwarded-For hop, else the peer address.
func remoteHost(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ETagMiddleware buffers successful GET/HEAD responses, stamps them with
// a strong SHA-256 ETag and answers matching If-None-Match revalidations
// with 304 instead of the body.
func ETagMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}

		buf := newBufferedResponse()
		next.ServeHTTP(buf, r)

		etag := ""
		if buf.status == http.StatusOK && buf.body.Len() > 0 && buf.header.Get("ETag") == "" {
			sum := sha256.Sum256(buf.body.Bytes())
			etag = `"` + hex.EncodeToString(sum[:]) + `"`
		}

		for k, vv := range buf.header {
			for _, v := range vv {
				w.Header().Add(k, v)
			}
		}
		if etag != "" {
			w.Header().Set("ETag", etag)
			w.Header().Add("Vary", "Accept-Encoding")
			if etagMatches(r.Header.Get("If-None-Match"), etag) {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
		w.WriteHeader(buf.status)
		if r.Method != http.MethodHead {
			_, _ = w.Write(buf.body.Bytes())
		}
	})
}

func etagMatches(ifNoneMatch, etag string) bool {
	for _, cand := range strings.Split(ifNoneMatch, ",") {
		if strings.TrimSpace(cand) == etag {
			return true
		}
	}
	return false
}

// bufferedResponse captures a handler's full response so the middleware
// can hash the body before anything reaches the client.
type bufferedResponse struct {
	header http.Header
	body   bytes.Buffer
	status int
	wrote  bool
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: http.Header{}, status: http.StatusOK}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(code int) {
	if !b.wrote {
		b.status = code
		b.wrote = true
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	b.wrote = true
	return b.body.Write(p)
}
