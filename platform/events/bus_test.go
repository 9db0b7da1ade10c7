package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"quote_pipeline_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pinged struct {
	BaseEvent
}

func (pinged) EventName() string { return "test.pinged" }

func TestPublishSyncRunsAllHandlers(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	var calls atomic.Int32
	for i := 0; i < 3; i++ {
		bus.Subscribe("test.pinged", HandlerFunc(func(context.Context, Event) error {
			calls.Add(1)
			return nil
		}))
	}

	require.NoError(t, bus.PublishSync(context.Background(), pinged{NewBaseEvent()}))
	assert.Equal(t, int32(3), calls.Load())
}

func TestPublishSyncReturnsHandlerError(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	boom := errors.New("boom")
	bus.Subscribe("test.pinged", HandlerFunc(func(context.Context, Event) error { return boom }))

	err := bus.PublishSync(context.Background(), pinged{NewBaseEvent()})
	assert.ErrorIs(t, err, boom)
}

func TestPublishRecoversPanicsAndOutlivesCancelledContext(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	var ran atomic.Bool
	bus.Subscribe("test.pinged", HandlerFunc(func(context.Context, Event) error {
		panic("handler bug")
	}))
	bus.Subscribe("test.pinged", HandlerFunc(func(ctx context.Context, _ Event) error {
		ran.Store(ctx.Err() == nil)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, pinged{NewBaseEvent()})
	bus.Wait()

	assert.True(t, ran.Load())
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	bus.Publish(context.Background(), pinged{NewBaseEvent()})
	bus.Wait()
	assert.NoError(t, bus.PublishSync(context.Background(), pinged{NewBaseEvent()}))
}
