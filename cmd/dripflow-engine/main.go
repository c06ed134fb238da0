package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/dripflow/dripflow/pkg/cmd"
	"github.com/dripflow/dripflow/pkg/engine"
	"github.com/dripflow/dripflow/pkg/log"
	"github.com/dripflow/dripflow/pkg/notify"
	"github.com/dripflow/dripflow/pkg/otelhelper"
	"github.com/dripflow/dripflow/pkg/scheduler"
	"github.com/dripflow/dripflow/pkg/triggers"
	"github.com/dripflow/dripflow/pkg/triggers/queue"
	"go.opentelemetry.io/otel/trace"
)

func main() {
	command := &cli.Command{
		Name:                  "dripflow-engine",
		Usage:                 "Run automation executions from trigger events",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "trigger-queue",
				Usage:   "Redis list the CRUD application pushes trigger events onto",
				Value:   "dripflow:triggers",
				Sources: cli.EnvVars("TRIGGER_QUEUE"),
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address for the trigger queue",
				Value:   "localhost:6379",
				Sources: cli.EnvVars("REDIS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password for the trigger queue",
				Sources: cli.EnvVars("REDIS_PASSWORD"),
			},
			&cli.StringFlag{
				Name:    "sweep-schedule",
				Usage:   "Cron expression for the scheduled step sweep",
				Value:   scheduler.DefaultSweepSchedule,
				Sources: cli.EnvVars("SWEEP_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "mailer-endpoint",
				Usage:   "Email delivery gateway endpoint (empty logs instead of sending)",
				Sources: cli.EnvVars("MAILER_ENDPOINT"),
			},
			&cli.StringFlag{
				Name:    "mailer-api-key",
				Usage:   "Email delivery gateway API key",
				Sources: cli.EnvVars("MAILER_API_KEY"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OpenTelemetry tracing",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	workerID := fmt.Sprintf("engine-%s", uuid.New().String()[:8])
	logger := log.WithModule("engine").With("worker_id", workerID)

	logger.InfoContext(ctx, "Initializing DripFlow engine")

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), "dripflow-engine", logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	var tracer trace.Tracer

	if command.Bool("tracing") {
		tracer, err = otelhelper.NewTracer(ctx, "dripflow-engine")
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}
	}

	gateway := cmd.NewEmailGateway(
		command.String("mailer-endpoint"), command.String("mailer-api-key"), logger)
	registry := cmd.NewRegistry(logger, persistence, gateway)
	notifier := notify.NewSink(persistence.NotificationRepository(), eventBus, logger)
	eng := engine.NewEngine(persistence, registry, notifier, tracer, logger)

	sweeper, err := scheduler.NewSweeper(eng, command.String("sweep-schedule"), logger)
	if err != nil {
		return err
	}

	consumer, err := queue.NewConsumer(map[string]any{
		"queue": command.String("trigger-queue"),
		"connection": map[string]any{
			"addr":     command.String("redis-addr"),
			"password": command.String("redis-password"),
		},
	}, logger)
	if err != nil {
		return err
	}

	dispatcher := triggers.NewDispatcher(persistence, eng, logger)
	worker := NewWorker(workerID, eng, dispatcher, consumer, eventBus, sweeper, logger)

	if err := worker.Start(ctx); err != nil {
		logger.ErrorContext(ctx, "Failed to start engine worker", "error", err)

		return err
	}

	return nil
}
