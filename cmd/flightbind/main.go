package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/avbind/flightbind/app"
)

func main() {
	cmd := &cli.Command{
		Name:  "flightbind",
		Usage: "Reconcile live aircraft positions against scheduled flights and persist verified callsign bindings",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Category: "net",
				Name:     "net.http_proxy",
				Usage:    "Proxy for HTTP requests (Linux-style HTTP_PROXY)",
				Sources:  cli.EnvVars("HTTP_PROXY", "http_proxy"),
				Hidden:   true,
			},
			&cli.StringFlag{
				Category: "net",
				Name:     "net.https_proxy",
				Usage:    "Proxy for HTTPS requests (Linux-style HTTPS_PROXY)",
				Sources:  cli.EnvVars("HTTPS_PROXY", "https_proxy"),
				Hidden:   true,
			},
			&cli.StringFlag{
				Category: "net",
				Name:     "net.no_proxy",
				Usage:    "Comma-separated NO_PROXY list for bypassing proxy (Linux-style NO_PROXY)",
				Sources:  cli.EnvVars("NO_PROXY", "no_proxy"),
				Hidden:   true,
			},
			&cli.StringFlag{
				Category: "server",
				Name:     "server.listen",
				Aliases:  []string{"listen", "l"},
				Value:    ":8080",
				Usage:    "`ADDRESS` the read-only query API listens on (e.g., ':8080')",
			},
			&cli.BoolFlag{
				Category: "monitoring",
				Name:     "metrics.enabled",
				Value:    true,
				Usage:    "Expose Prometheus metrics at /metrics",
			},
			&cli.StringFlag{
				Category: "monitoring",
				Name:     "tracing.endpoint",
				Aliases:  []string{"tracing", "t"},
				Value:    "",
				Usage:    "OpenTelemetry collector `ENDPOINT` for traces",
			},
			&cli.BoolFlag{
				Category: "monitoring",
				Name:     "debug",
				Aliases:  []string{"d"},
				Usage:    "Enable debug logging",
			},
			&cli.StringFlag{
				Category: "security",
				Name:     "security.jwt.secret",
				Usage:    "Bearer-token HS256 secret. If empty, load/generate from security.jwt.file",
				Hidden:   true,
			},
			&cli.StringFlag{
				Category: "security",
				Name:     "security.jwt.file",
				Value:    "./data/jwt.secret",
				Usage:    "Path to file to load/store the bearer-token secret (used if security.jwt.secret is empty)",
			},
			&cli.StringFlag{
				Category: "storage",
				Name:     "storage.path",
				Aliases:  []string{"db"},
				Value:    "./data/flightbind.buntdb",
				Usage:    "Path to the verified-route store's BuntDB file (will be created if missing)",
			},
			&cli.DurationFlag{
				Category: "storage",
				Name:     "store.outdated_threshold",
				Value:    30 * time.Minute,
				Usage:    "Age past which a stored binding is replaced regardless of tier",
			},
			&cli.StringFlag{
				Category: "refdata",
				Name:     "refdata.airports",
				Value:    "./data/airports.yaml",
				Usage:    "Path to the bundled airport reference-data YAML table",
			},
			&cli.StringFlag{
				Category: "refdata",
				Name:     "refdata.airlines",
				Value:    "./data/airlines.yaml",
				Usage:    "Path to the bundled airline reference-data YAML table (plus operator overrides)",
			},
			&cli.StringFlag{
				Category: "source",
				Name:     "source.label",
				Value:    "default",
				Usage:    "Stable label for the bundled file-backed schedule source adapter",
			},
			&cli.StringFlag{
				Category: "source",
				Name:     "source.flights",
				Usage:    "Path to a JSON file of ScheduledFlight records to load into the bundled source adapter at startup",
			},
			&cli.StringFlag{
				Category: "source",
				Name:     "source.translation_table",
				Usage:    "Path to the manual assumed-callsign -> flown-callsign override JSON table",
			},
			&cli.StringFlag{
				Category: "source",
				Name:     "source.route_oracle",
				Usage:    "Path to a historical-route-provider JSON fixture answering 'has callsign X flown route Y'",
			},
			&cli.DurationFlag{
				Category: "source",
				Name:     "source.poll_interval",
				Value:    45 * time.Second,
				Usage:    "Position-feed polling period; also the matcher cycle period",
			},
			&cli.DurationFlag{
				Category: "source",
				Name:     "source.max_age",
				Value:    60 * time.Second,
				Usage:    "Maximum age of a position observation before it is dropped from the snapshot",
			},
			&cli.StringFlag{
				Category: "source",
				Name:     "source.proxy",
				Aliases:  []string{"proxy", "x"},
				Usage:    "Proxy URL override for the position-feed client (e.g., http://host:port)",
			},
			&cli.StringFlag{
				Category: "source",
				Name:     "source.opensky_user",
				Usage:    "OpenSky API username for Basic Auth (optional)",
			},
			&cli.StringFlag{
				Category: "source",
				Name:     "source.opensky_pass",
				Usage:    "OpenSky API password for Basic Auth (optional)",
			},
			&cli.IntFlag{
				Category: "match",
				Name:     "match.recent_tier_min",
				Value:    1,
				Usage:    "Minimum tier for a binding to count toward the recent-callsigns set",
			},
			&cli.DurationFlag{
				Category: "match",
				Name:     "match.recent_window",
				Value:    48 * time.Hour,
				Usage:    "Lookback window for the recent-callsigns set",
			},
			&cli.IntFlag{
				Category: "match",
				Name:     "diagnostics.capacity",
				Value:    500,
				Usage:    "Number of most-recent ambiguous-match diagnostics markers retained in memory",
			},
		},
		Commands: []*cli.Command{
			sourcesCommand(),
			issueTokenCommand(),
		},
		Action: app.Run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
