package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/avbind/flightbind/internal/refdata"
	"github.com/avbind/flightbind/internal/routecheck"
	"github.com/avbind/flightbind/internal/sources/filesource"
	"github.com/avbind/flightbind/security"
)

// sourcesCommand exposes the bundled file-backed source adapter's
// flights-of-day listing as an operational CLI subcommand.
func sourcesCommand() *cli.Command {
	return &cli.Command{
		Name:  "sources",
		Usage: "Inspect the bundled file-backed schedule source adapter",
		Commands: []*cli.Command{
			{
				Name:  "flights-of-day",
				Usage: "List flights whose departure or arrival falls within a UTC day",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "date", Usage: "UTC date YYYY-MM-DD (default: today)"},
					&cli.StringFlag{Name: "flights", Value: "./data/flights.json", Usage: "Path to the ScheduledFlight JSON fixture"},
					&cli.StringFlag{Name: "airports", Value: "./data/airports.yaml"},
					&cli.StringFlag{Name: "airlines", Value: "./data/airlines.yaml"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					dir := refdata.NewDirectory()
					if err := dir.LoadAirports(c.String("airports")); err != nil {
						return fmt.Errorf("load airports: %w", err)
					}
					if err := dir.LoadAirlines(c.String("airlines")); err != nil {
						return fmt.Errorf("load airlines: %w", err)
					}
					engine := routecheck.New(dir)
					src := filesource.New("cli", engine)
					if _, err := src.LoadFlights(c.String("flights")); err != nil {
						return fmt.Errorf("load flights: %w", err)
					}

					day := time.Now().UTC()
					if s := c.String("date"); s != "" {
						t, err := time.Parse("2006-01-02", s)
						if err != nil {
							return fmt.Errorf("invalid --date %q: %w", s, err)
						}
						day = t
					}

					flights := src.GetFlightsOfDay(day)
					enc := json.NewEncoder(c.Writer)
					enc.SetIndent("", "  ")
					return enc.Encode(flights)
				},
			},
		},
	}
}

// issueTokenCommand mints a bearer token for the read-only query API,
// for operators to hand to a monitoring system. Kept separate from the
// server process since token issuance is an operator action, not a
// self-service HTTP endpoint.
func issueTokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "issue-token",
		Usage: "Mint a bearer token for the read-only query API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Value: "operator", Usage: "Token subject"},
			&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, Usage: "Token lifetime"},
			&cli.StringFlag{Name: "security.jwt.secret", Hidden: true},
			&cli.StringFlag{Name: "security.jwt.file", Value: "./data/jwt.secret"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			security.ConfigureJWT(c.String("security.jwt.secret"), c.String("security.jwt.file"))
			security.InitAuth()
			tok, err := security.IssueToken(c.String("subject"), c.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.Writer, tok)
			return nil
		},
	}
}
