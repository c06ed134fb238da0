package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dripflow/dripflow/pkg/channels/gochannel"
	"github.com/dripflow/dripflow/pkg/eventbus"
	"github.com/dripflow/dripflow/pkg/events"
)

const receiveTimeout = 2 * time.Second

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_DeliversTriggerAndStepEvents(t *testing.T) {
	bus := newTestBus(t)

	triggerCh := make(chan *events.ContactTrigger, 1)
	stepCh := make(chan *events.StepCompleted, 1)

	require.NoError(t, bus.Handle(events.ContactTriggerEventType, func(_ context.Context, event any) error {
		if trigger, ok := event.(*events.ContactTrigger); ok {
			triggerCh <- trigger
		}

		return nil
	}))
	require.NoError(t, bus.Handle(events.StepCompletedEvent, func(_ context.Context, event any) error {
		if step, ok := event.(*events.StepCompleted); ok {
			stepCh <- step
		}

		return nil
	}))

	require.NoError(t, bus.Subscribe(t.Context()))

	err := bus.Publish(t.Context(), "contact-1", events.ContactTrigger{
		BaseEvent: events.BaseEvent{
			ID:             "evt-1",
			Type:           events.ContactTriggerEventType,
			Timestamp:      time.Now().UTC(),
			OrganizationID: "org-1",
		},
		TriggerType: "tag_added",
		ContactID:   "contact-1",
		TriggerData: map[string]any{"tag": "vip"},
	})
	require.NoError(t, err)

	err = bus.Publish(t.Context(), "exec-1", events.StepCompleted{
		BaseEvent: events.BaseEvent{
			ID:             "evt-2",
			Type:           events.StepCompletedEvent,
			Timestamp:      time.Now().UTC(),
			OrganizationID: "org-1",
		},
		ExecutionID: "exec-1",
		StepID:      "send-welcome",
		StepType:    "send_email",
		OutputData:  map[string]any{"emailSent": true},
	})
	require.NoError(t, err)

	select {
	case trigger := <-triggerCh:
		assert.Equal(t, "org-1", trigger.OrganizationID)
		assert.Equal(t, "tag_added", trigger.TriggerType)
		assert.Equal(t, "contact-1", trigger.ContactID)
		assert.Equal(t, "vip", trigger.TriggerData["tag"])
	case <-time.After(receiveTimeout):
		t.Fatal("timed out waiting for contact trigger")
	}

	select {
	case step := <-stepCh:
		assert.Equal(t, "exec-1", step.ExecutionID)
		assert.Equal(t, "send-welcome", step.StepID)
		assert.Equal(t, true, step.OutputData["emailSent"])
	case <-time.After(receiveTimeout):
		t.Fatal("timed out waiting for step event")
	}
}

func TestWatermillEventBus_TriggersRideDedicatedTopic(t *testing.T) {
	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	messages, err := sub.Subscribe(t.Context(), events.TriggerTopic)
	require.NoError(t, err)

	lifecycle, err := sub.Subscribe(t.Context(), events.Topic)
	require.NoError(t, err)

	err = bus.Publish(t.Context(), "contact-1", events.ContactTrigger{
		BaseEvent:   events.BaseEvent{ID: "evt-1", Type: events.ContactTriggerEventType},
		TriggerType: "contact_created",
		ContactID:   "contact-1",
	})
	require.NoError(t, err)

	select {
	case msg := <-messages:
		assert.Equal(t, string(events.ContactTriggerEventType), msg.Metadata.Get(events.EventTypeMetadataKey))
		assert.Equal(t, "contact-1", msg.Metadata.Get(events.EventMetadataKey))
		msg.Ack()
	case <-time.After(receiveTimeout):
		t.Fatal("timed out waiting for trigger topic message")
	}

	select {
	case msg := <-lifecycle:
		t.Fatalf("trigger leaked onto the lifecycle topic: %s", msg.Payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatermillEventBus_UnhandledEventTypesAreAcked(t *testing.T) {
	bus := newTestBus(t)

	require.NoError(t, bus.Subscribe(t.Context()))

	// No handler registered: the publish must still complete instead of
	// waiting on an ack that never comes.
	done := make(chan error, 1)

	go func() {
		done <- bus.Publish(context.Background(), "exec-1", events.ExecutionCompleted{
			BaseEvent:   events.BaseEvent{ID: "evt-1", Type: events.ExecutionCompletedEvent},
			ExecutionID: "exec-1",
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(receiveTimeout):
		t.Fatal("publish blocked on an unhandled event type")
	}
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := newTestBus(t)

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
