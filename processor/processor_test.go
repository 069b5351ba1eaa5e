// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xcherryio/taskexpiry/common/clock"
	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/config"
	"github.com/xcherryio/taskexpiry/engine"
	"github.com/xcherryio/taskexpiry/persistence"
)

type registryCall struct {
	op      string
	name    string
	fireAt  time.Time
	payload persistence.TriggerPayload
}

// fakeRegistry keeps the live triggers by name, like the real registry does
type fakeRegistry struct {
	sync.Mutex
	calls       []registryCall
	live        map[string]time.Time
	registerErr error
	cancelErr   error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{live: map[string]time.Time{}}
}

func (r *fakeRegistry) Register(_ context.Context, req engine.RegisterTriggerRequest) error {
	r.Lock()
	defer r.Unlock()
	r.calls = append(r.calls, registryCall{op: "register", name: req.Name, fireAt: req.FireAt, payload: req.Payload})
	if r.registerErr != nil {
		return r.registerErr
	}
	r.live[req.Name] = req.FireAt
	return nil
}

func (r *fakeRegistry) Cancel(_ context.Context, name string) error {
	r.Lock()
	defer r.Unlock()
	r.calls = append(r.calls, registryCall{op: "cancel", name: name})
	if r.cancelErr != nil {
		return r.cancelErr
	}
	delete(r.live, name)
	return nil
}

func (r *fakeRegistry) ops() []string {
	r.Lock()
	defer r.Unlock()
	var ops []string
	for _, c := range r.calls {
		ops = append(ops, c.op)
	}
	return ops
}

func newTestProcessor(registry engine.TriggerRegistry) Processor {
	cfg := config.ProcessorConfig{
		TriggerNamePrefix:  "TaskExpiry-",
		TriggerGranularity: time.Minute,
		RegistryTimeout:    time.Second,
	}
	return NewProcessor(registry, cfg, clock.NewEventTimeSource(testNow), log.NewNoopLogger())
}

func TestProcessInsertPendingSchedules(t *testing.T) {
	registry := newFakeRegistry()
	p := newTestProcessor(registry)

	result := p.Process(context.Background(), insert(task(persistence.TaskStatusPending, inOneHour)))

	assert.Equal(t, ResultSuccess, result)
	require.Len(t, registry.calls, 1)
	call := registry.calls[0]
	assert.Equal(t, "register", call.op)
	assert.Equal(t, "TaskExpiry-t-1", call.name)
	assert.Equal(t, inOneHour, call.fireAt)
	assert.Equal(t, persistence.TriggerPayload{
		TaskId: "t-1", OwnerId: "u-1", StorageKey: "USER#u-1|TASK#t-1",
	}, call.payload)
}

func TestProcessDeadlineChangeReschedules(t *testing.T) {
	registry := newFakeRegistry()
	p := newTestProcessor(registry)

	require.Equal(t, ResultSuccess, p.Process(context.Background(), insert(task(persistence.TaskStatusPending, inOneHour))))
	result := p.Process(context.Background(), modify(
		task(persistence.TaskStatusPending, inOneHour), task(persistence.TaskStatusPending, inTwoHours),
	))

	assert.Equal(t, ResultSuccess, result)
	assert.Equal(t, []string{"register", "cancel", "register"}, registry.ops())
	assert.Equal(t, map[string]time.Time{"TaskExpiry-t-1": inTwoHours}, registry.live)
}

func TestProcessCompletedCancels(t *testing.T) {
	registry := newFakeRegistry()
	p := newTestProcessor(registry)

	require.Equal(t, ResultSuccess, p.Process(context.Background(), insert(task(persistence.TaskStatusPending, inOneHour))))
	result := p.Process(context.Background(), modify(
		task(persistence.TaskStatusPending, inOneHour), task(persistence.TaskStatusCompleted, inOneHour),
	))

	assert.Equal(t, ResultSuccess, result)
	assert.Equal(t, []string{"register", "cancel"}, registry.ops())
	assert.Empty(t, registry.live)
}

func TestProcessRemoveWithoutTriggerSucceeds(t *testing.T) {
	registry := newFakeRegistry()
	p := newTestProcessor(registry)

	result := p.Process(context.Background(), remove(task(persistence.TaskStatusPending, inOneHour)))

	assert.Equal(t, ResultSuccess, result)
	assert.Equal(t, []string{"cancel"}, registry.ops())
}

func TestProcessNoActionTouchesNothing(t *testing.T) {
	registry := newFakeRegistry()
	p := newTestProcessor(registry)

	records := []persistence.ChangeRecord{
		insert(task(persistence.TaskStatusPending, anHourAgo)),
		insert(task(persistence.TaskStatusCompleted, inOneHour)),
		modify(task(persistence.TaskStatusPending, inOneHour), task(persistence.TaskStatusPending, inOneHour)),
		modify(task(persistence.TaskStatusExpired, anHourAgo), task(persistence.TaskStatusExpired, anHourAgo)),
		remove(task(persistence.TaskStatusCompleted, inOneHour)),
	}
	for _, record := range records {
		assert.Equal(t, ResultSuccess, p.Process(context.Background(), record))
	}
	assert.Empty(t, registry.calls)
}

func TestProcessDuplicateDeliveryKeepsOneTrigger(t *testing.T) {
	registry := newFakeRegistry()
	p := newTestProcessor(registry)
	record := modify(task(persistence.TaskStatusPending, inOneHour), task(persistence.TaskStatusPending, inTwoHours))

	for i := 0; i < 3; i++ {
		require.Equal(t, ResultSuccess, p.Process(context.Background(), record))
	}
	assert.Len(t, registry.live, 1)
}

func TestProcessRegistryErrorsAreRetryable(t *testing.T) {
	registry := newFakeRegistry()
	registry.registerErr = errors.New("connection refused")
	p := newTestProcessor(registry)

	assert.Equal(t, ResultRetryable,
		p.Process(context.Background(), insert(task(persistence.TaskStatusPending, inOneHour))))

	registry = newFakeRegistry()
	registry.cancelErr = errors.New("connection refused")
	p = newTestProcessor(registry)

	assert.Equal(t, ResultRetryable, p.Process(context.Background(), modify(
		task(persistence.TaskStatusPending, inOneHour), task(persistence.TaskStatusPending, inTwoHours),
	)))
	// the new trigger is not registered before the old one is gone
	assert.Equal(t, []string{"cancel"}, registry.ops())
}

func TestResultShouldAck(t *testing.T) {
	assert.True(t, ResultSuccess.ShouldAck())
	assert.True(t, ResultPermanent.ShouldAck())
	assert.False(t, ResultRetryable.ShouldAck())
	assert.Equal(t, "retryable", ResultRetryable.String())
}
