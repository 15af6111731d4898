// Package drain implements the outbox-draining daemon command.
package drain

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minerva-intel/minerva/internal/cmd/base"
	"github.com/minerva-intel/minerva/internal/config"
	"github.com/minerva-intel/minerva/internal/db"
	"github.com/minerva-intel/minerva/pkg/events"
)

type Command struct {
	*base.Command

	flagConfig      string
	flagInterval    time.Duration
	flagRetryFailed bool
}

func (c *Command) Synopsis() string {
	return "Publish outbox events to the broker"
}

func (c *Command) Help() string {
	return `Usage: minerva drain [-config=config.hcl] [-interval=5s] [-retry-failed]

  Run the outbox drainer until interrupted: pending events are published to
  the configured Kafka brokers, and published entries are pruned after their
  retention window. With -retry-failed, entries that previously failed to
  publish are re-queued on startup.
`
}

func (c *Command) Run(args []string) int {
	flags := flag.NewFlagSet("drain", flag.ContinueOnError)
	flags.StringVar(&c.flagConfig, "config", "", "Path to configuration file")
	flags.DurationVar(&c.flagInterval, "interval", 5*time.Second, "Poll interval")
	flags.BoolVar(&c.flagRetryFailed, "retry-failed", false, "Re-queue failed entries on startup")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	var (
		cfg *config.Config
		err error
	)
	if c.flagConfig != "" {
		cfg, err = config.FromFile(c.flagConfig)
		if err != nil {
			c.UI.Error(fmt.Sprintf("error loading configuration: %v", err))
			return 1
		}
	} else {
		cfg = config.Default(".minerva")
	}

	brokers := cfg.KafkaBrokers()
	if len(brokers) == 0 {
		c.UI.Error("no kafka brokers configured: set a kafka block or MINERVA_KAFKA_BROKERS")
		return 1
	}

	conn, err := db.NewDB(cfg, c.Log)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error connecting to database: %v", err))
		return 1
	}

	publisher, err := events.NewKafkaPublisher(events.KafkaConfig{
		Brokers: brokers,
		Topic:   cfg.KafkaTopic(),
	})
	if err != nil {
		c.UI.Error(fmt.Sprintf("error creating kafka publisher: %v", err))
		return 1
	}
	defer publisher.Close()

	drainer := events.NewDrainer(conn, publisher, c.Log,
		events.WithInterval(c.flagInterval))

	if c.flagRetryFailed {
		if _, err := drainer.RetryFailed(); err != nil {
			c.UI.Error(fmt.Sprintf("error re-queueing failed entries: %v", err))
			return 1
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c.Log.Info("draining outbox", "brokers", brokers, "topic", cfg.KafkaTopic())
	if err := drainer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		c.UI.Error(fmt.Sprintf("drainer stopped: %v", err))
		return 1
	}
	return 0
}
