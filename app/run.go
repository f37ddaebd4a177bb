package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/avbind/flightbind/internal/diagnostics"
	"github.com/avbind/flightbind/internal/matcher"
	"github.com/avbind/flightbind/internal/model"
	"github.com/avbind/flightbind/internal/positionfeed"
	"github.com/avbind/flightbind/internal/queryapi"
	"github.com/avbind/flightbind/internal/refdata"
	"github.com/avbind/flightbind/internal/routecheck"
	"github.com/avbind/flightbind/internal/sources/filesource"
	"github.com/avbind/flightbind/internal/store"
	"github.com/avbind/flightbind/monitoring"
	"github.com/avbind/flightbind/security"
)

// Run is the main CLI action: it wires the reference directory, the
// verified-route store, the position feed, the matcher cycle and the
// read-only HTTP query API, then blocks until ctx is cancelled.
func Run(ctx context.Context, c *cli.Command) error {
	listen := c.String("server.listen")
	enableMetrics := c.Bool("metrics.enabled")
	tracingEndpoint := c.String("tracing.endpoint")
	storagePath := c.String("storage.path")
	outdated := c.Duration("store.outdated_threshold")

	if c.Bool("debug") {
		monitoring.SetLogLevel("debug")
	}

	shutdownTracer := monitoring.InitTracer(tracingEndpoint, "flightbind")
	defer shutdownTracer()

	security.ConfigureJWT(c.String("security.jwt.secret"), c.String("security.jwt.file"))
	security.InitAuth()

	st, err := store.Open(storagePath, store.DefaultPolicy(outdated))
	if err != nil {
		return err
	}
	defer st.Close()

	dir := refdata.NewDirectory()
	if err := dir.LoadAirports(c.String("refdata.airports")); err != nil {
		log.Printf("refdata: load airports: %v", err)
	}
	if err := dir.LoadAirlines(c.String("refdata.airlines")); err != nil {
		log.Printf("refdata: load airlines: %v", err)
	}
	engine := routecheck.New(dir)

	src := filesource.New(c.String("source.label"), engine)
	if path := c.String("source.flights"); path != "" {
		n, err := src.LoadFlights(path)
		if err != nil {
			log.Printf("source: load flights: %v", err)
		} else {
			log.Printf("source: loaded scheduled flights count=%d", n)
		}
	}

	var oracle matcher.RouteOracle
	if path := c.String("source.route_oracle"); path != "" {
		o, err := filesource.NewFileRouteOracle(path)
		if err != nil {
			log.Printf("source: load route oracle: %v", err)
		} else {
			oracle = o
		}
	}

	var translation map[string]string
	if path := c.String("source.translation_table"); path != "" {
		if table, err := filesource.LoadTranslationTable(path); err == nil {
			translation = table
		}
	}

	cfg := matcher.Config{
		RecentTierMin: model.Tier(c.Int("match.recent_tier_min")),
		RecentWindow:  c.Duration("match.recent_window"),
	}
	m := matcher.New(engine, st, translation, oracle, cfg)
	diag := diagnostics.NewRecorder(c.Int("diagnostics.capacity"))
	m.Diagnostics = diag

	feed := positionfeed.New(st)
	if d := c.Duration("source.poll_interval"); d > 0 {
		feed.Interval = d
	}
	if d := c.Duration("source.max_age"); d > 0 {
		feed.MaxAge = d
	}
	feed.SetProxy(c.String("source.proxy"))
	feed.User = c.String("source.opensky_user")
	feed.Pass = c.String("source.opensky_pass")

	stop := make(chan struct{})
	go feed.Run(stop)

	matcherStop := make(chan struct{})
	go runMatcherLoop(ctx, m, src, feed.Interval, matcherStop)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(monitoring.ETagMiddleware)
	r.Use(middleware.RequestID)

	api := chi.NewRouter()
	api.Use(middleware.Compress(5))
	api.Use(middleware.Timeout(15 * time.Second))
	api.Use(security.RequireBearerToken)
	api.Use(monitoring.TracingMiddleware)
	api.Use(monitoring.MetricsMiddleware)
	api.Use(monitoring.LoggingMiddleware)

	if enableMetrics {
		api.Handle("/metrics", monitoring.PrometheusHandler())
	}
	api.Get("/api/bindings", monitoring.InstrumentedBindingHandler(queryapi.ListBindings(st)))
	api.Get("/api/bindings/{callsign}", monitoring.InstrumentedBindingHandler(queryapi.BindingsByCallsign(st)))
	api.Get("/api/diagnostics/ambiguous", diag.Handler)
	api.Get("/api/diagnostics/candidates/{key}", queryapi.Candidates(st))

	r.Mount("/", api)

	log.Printf("Server listening on %s\n", listen)
	srv := &http.Server{
		Addr:              listen,
		Handler:           r,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		log.Printf("Shutdown signal received, shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		close(stop)
		close(matcherStop)
		<-errCh
		return nil
	case err := <-errCh:
		close(stop)
		close(matcherStop)
		return err
	}
}

// runMatcherLoop runs one matcher cycle per interval against the most
// recently published position snapshot, skipping cycles until a
// snapshot has been published at least once.
func runMatcherLoop(ctx context.Context, m *matcher.Matcher, src *filesource.Source, interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = 45 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			snap, ok := m.Store.ReadSnapshot()
			if !ok {
				continue
			}
			m.Run(ctx, snap, src)
		}
	}
}
