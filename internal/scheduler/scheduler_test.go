package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"quote_pipeline_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExpirer struct {
	expired []uuid.UUID
	result  bool
	err     error
	overdue []uuid.UUID
}

func (f *fakeExpirer) ExpireOne(_ context.Context, id uuid.UUID) (bool, error) {
	f.expired = append(f.expired, id)
	return f.result, f.err
}

func (f *fakeExpirer) ExpireOverdue(context.Context) ([]uuid.UUID, error) {
	return f.overdue, f.err
}

func TestQuoteExpireTaskCarriesQuoteID(t *testing.T) {
	id := uuid.New()
	task, err := NewQuoteExpireTask(id)
	require.NoError(t, err)
	assert.Equal(t, TaskQuoteExpire, task.Type())

	payload, err := ParseQuoteExpirePayload(task)
	require.NoError(t, err)
	assert.Equal(t, id.String(), payload.QuoteID)
}

func TestQuoteExpireTaskIDChangesWithDeadline(t *testing.T) {
	id := uuid.New()
	first := quoteExpireTaskID(id, 1700000000)
	assert.Equal(t, first, quoteExpireTaskID(id, 1700000000))
	assert.NotEqual(t, first, quoteExpireTaskID(id, 1700003600))
}

func TestHandleQuoteExpireCallsService(t *testing.T) {
	expirer := &fakeExpirer{result: true}
	w := newWorker(expirer, logger.Discard())

	id := uuid.New()
	task, err := NewQuoteExpireTask(id)
	require.NoError(t, err)

	require.NoError(t, w.handleQuoteExpire(context.Background(), task))
	assert.Equal(t, []uuid.UUID{id}, expirer.expired)
}

func TestHandleQuoteExpireSkipsRetryOnBadPayload(t *testing.T) {
	w := newWorker(&fakeExpirer{}, logger.Discard())

	err := w.handleQuoteExpire(context.Background(), asynq.NewTask(TaskQuoteExpire, []byte(`{"quoteId":"nope"}`)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	err = w.handleQuoteExpire(context.Background(), asynq.NewTask(TaskQuoteExpire, []byte(`not json`)))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleQuoteExpireReturnsServiceErrorForRetry(t *testing.T) {
	boom := errors.New("db down")
	w := newWorker(&fakeExpirer{err: boom}, logger.Discard())

	task, err := NewQuoteExpireTask(uuid.New())
	require.NoError(t, err)

	err = w.handleQuoteExpire(context.Background(), task)
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestSweepCountsExpired(t *testing.T) {
	expirer := &fakeExpirer{overdue: []uuid.UUID{uuid.New(), uuid.New()}}
	s := NewExpirySweeper(expirer, logger.Discard(), 0)

	assert.Equal(t, defaultExpirySweepInterval, s.interval)
	assert.Equal(t, 2, s.sweep(context.Background()))

	expirer.err = errors.New("boom")
	assert.Equal(t, 0, s.sweep(context.Background()))
}

func TestSweeperStopsWithContext(t *testing.T) {
	s := NewExpirySweeper(&fakeExpirer{}, logger.Discard(), time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestRedisClientOpt(t *testing.T) {
	opt, err := redisClientOpt("redis://:secret@localhost:6380/2", false)
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", opt.Addr)
	assert.Equal(t, "secret", opt.Password)
	assert.Equal(t, 2, opt.DB)
	assert.Nil(t, opt.TLSConfig)

	opt, err = redisClientOpt("rediss://localhost:6380", true)
	require.NoError(t, err)
	require.NotNil(t, opt.TLSConfig)
	assert.True(t, opt.TLSConfig.InsecureSkipVerify)
}
