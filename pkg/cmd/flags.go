package cmd

import (
	"time"

	"github.com/Happy-Ferret/ggrc-core/pkg/busy"
	cli "github.com/urfave/cli/v3"
)

// CommonFlags are accepted by every binary.
func CommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "Database connection URL for persistence (file://path or postgres://...)",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka broker addresses",
			Value:   "localhost:9092",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for the shared end-cycle busy guard; empty keeps it in process",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.DurationFlag{
			Name:    "busy-ttl",
			Usage:   "Expiry of a Redis busy key; live holders extend it every third of the TTL, so only a crashed holder lets it lapse",
			Value:   busy.DefaultRedisTTL,
			Sources: cli.EnvVars("BUSY_TTL"),
		},
		&cli.BoolFlag{
			Name:    "otel",
			Usage:   "Export traces with OTLP/HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
	}
}

// BusyTTL returns the configured guard expiry, never below one second.
func BusyTTL(command *cli.Command) time.Duration {
	ttl := command.Duration("busy-ttl")
	if ttl < time.Second {
		return time.Second
	}

	return ttl
}
