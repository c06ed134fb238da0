// Package main provides the DripFlow execution engine worker: it consumes
// trigger events from the intake queue, runs automations, and sweeps
// scheduled wait steps back into execution.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dripflow/dripflow/pkg/engine"
	"github.com/dripflow/dripflow/pkg/eventbus"
	"github.com/dripflow/dripflow/pkg/events"
	"github.com/dripflow/dripflow/pkg/scheduler"
	"github.com/dripflow/dripflow/pkg/triggers"
	"github.com/dripflow/dripflow/pkg/triggers/queue"
)

type Worker struct {
	id         string
	engine     *engine.Engine
	dispatcher *triggers.Dispatcher
	consumer   *queue.Consumer
	eventBus   eventbus.EventBus
	sweeper    *scheduler.Sweeper
	logger     *slog.Logger
}

func NewWorker(
	id string,
	eng *engine.Engine,
	dispatcher *triggers.Dispatcher,
	consumer *queue.Consumer,
	bus eventbus.EventBus,
	sweeper *scheduler.Sweeper,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		id:         id,
		engine:     eng,
		dispatcher: dispatcher,
		consumer:   consumer,
		eventBus:   bus,
		sweeper:    sweeper,
		logger:     logger.With("module", "worker", "worker_id", id),
	}
}

// Start runs the worker until a termination signal arrives.
func (w *Worker) Start(ctx context.Context) error {
	wCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.logger.InfoContext(wCtx, "Starting engine worker")

	if err := w.sweeper.Start(wCtx); err != nil {
		return err
	}

	err := w.consumer.Start(wCtx, func(ctx context.Context, event triggers.TriggerEvent) error {
		return w.dispatcher.Dispatch(ctx, event)
	})
	if err != nil {
		w.sweeper.Stop()

		return err
	}

	if err := w.subscribeTriggers(wCtx); err != nil {
		if stopErr := w.consumer.Stop(wCtx); stopErr != nil {
			w.logger.Error("Failed to stop queue consumer", "error", stopErr)
		}

		w.sweeper.Stop()

		return err
	}

	w.handleSignals(wCtx, cancel)

	<-wCtx.Done()

	return nil
}

// subscribeTriggers routes bus-delivered contact events into the same
// dispatcher the Redis intake feeds.
func (w *Worker) subscribeTriggers(ctx context.Context) error {
	err := w.eventBus.Handle(events.ContactTriggerEventType, func(ctx context.Context, event any) error {
		trigger, ok := event.(*events.ContactTrigger)
		if !ok {
			return fmt.Errorf("unexpected payload type %T for contact trigger", event)
		}

		return w.dispatcher.Dispatch(ctx, triggers.FromContactTrigger(trigger))
	})
	if err != nil {
		return err
	}

	return w.eventBus.Subscribe(ctx)
}

func (w *Worker) handleSignals(ctx context.Context, cancel context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signals
		w.logger.Info("Received signal", "signal", sig)
		w.logger.Info("Shutting down gracefully...")

		if err := w.consumer.Stop(ctx); err != nil {
			w.logger.Error("Failed to stop queue consumer", "error", err)
		}

		w.sweeper.Stop()
		cancel()
	}()
}
