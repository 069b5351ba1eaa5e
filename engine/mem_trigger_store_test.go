// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xcherryio/taskexpiry/expiry"
	"github.com/xcherryio/taskexpiry/persistence"
)

// memTriggerStore follows the sequence rules of the SQL trigger store
type memTriggerStore struct {
	sync.Mutex
	triggers map[string]persistence.Trigger
	lastSeq  int64
}

func newMemTriggerStore() *memTriggerStore {
	return &memTriggerStore{triggers: map[string]persistence.Trigger{}}
}

func (s *memTriggerStore) Close() error {
	return nil
}

func (s *memTriggerStore) UpsertTrigger(_ context.Context, trigger persistence.Trigger) error {
	s.Lock()
	defer s.Unlock()
	if existing, ok := s.triggers[trigger.Name]; ok && existing.FireAt.Equal(trigger.FireAt) {
		existing.Payload = trigger.Payload
		s.triggers[trigger.Name] = existing
		return nil
	}
	s.lastSeq++
	trigger.Sequence = s.lastSeq
	trigger.Attempts = 0
	s.triggers[trigger.Name] = trigger
	return nil
}

func (s *memTriggerStore) DeleteTrigger(_ context.Context, name string) (bool, error) {
	s.Lock()
	defer s.Unlock()
	_, ok := s.triggers[name]
	delete(s.triggers, name)
	return ok, nil
}

func (s *memTriggerStore) GetTrigger(_ context.Context, name string) (*persistence.GetTriggerResponse, error) {
	s.Lock()
	defer s.Unlock()
	trigger, ok := s.triggers[name]
	if !ok {
		return &persistence.GetTriggerResponse{NotExists: true}, nil
	}
	return &persistence.GetTriggerResponse{Trigger: &trigger}, nil
}

func (s *memTriggerStore) GetTriggersUpToTime(
	_ context.Context, request persistence.GetTriggersUpToTimeRequest,
) (*persistence.GetTriggersResponse, error) {
	triggers := s.selectTriggers(func(t persistence.Trigger) bool {
		return !t.FireAt.After(request.MaxFireTimeInclusive)
	}, func(a, b persistence.Trigger) bool {
		return a.FireAt.Before(b.FireAt)
	}, request.PageSize)
	return persistence.NewGetTriggersResponse(triggers, request.PageSize), nil
}

func (s *memTriggerStore) GetTriggersBySequence(
	_ context.Context, request persistence.GetTriggersBySequenceRequest,
) (*persistence.GetTriggersResponse, error) {
	triggers := s.selectTriggers(func(t persistence.Trigger) bool {
		return t.Sequence >= request.MinSequenceInclusive && !t.FireAt.After(request.MaxFireTimeInclusive)
	}, func(a, b persistence.Trigger) bool {
		return a.Sequence < b.Sequence
	}, request.PageSize)
	return persistence.NewGetTriggersResponse(triggers, request.PageSize), nil
}

func (s *memTriggerStore) CompleteFiredTrigger(_ context.Context, request persistence.CompleteFiredTriggerRequest) error {
	s.Lock()
	defer s.Unlock()
	if existing, ok := s.triggers[request.Name]; ok && existing.Sequence == request.Sequence {
		delete(s.triggers, request.Name)
	}
	return nil
}

func (s *memTriggerStore) BackoffFiredTrigger(_ context.Context, request persistence.BackoffFiredTriggerRequest) error {
	s.Lock()
	defer s.Unlock()
	if existing, ok := s.triggers[request.Name]; ok && existing.Sequence == request.Sequence {
		existing.FireAt = request.NextFireAt
		existing.Attempts = request.Attempts
		s.triggers[request.Name] = existing
	}
	return nil
}

func (s *memTriggerStore) selectTriggers(
	match func(persistence.Trigger) bool, less func(a, b persistence.Trigger) bool, limit int32,
) []persistence.Trigger {
	s.Lock()
	defer s.Unlock()
	var triggers []persistence.Trigger
	for _, t := range s.triggers {
		if match(t) {
			triggers = append(triggers, t)
		}
	}
	sort.Slice(triggers, func(i, j int) bool { return less(triggers[i], triggers[j]) })
	if limit > 0 && int32(len(triggers)) > limit {
		triggers = triggers[:limit]
	}
	return triggers
}

func (s *memTriggerStore) size() int {
	s.Lock()
	defer s.Unlock()
	return len(s.triggers)
}

func (s *memTriggerStore) get(name string) (persistence.Trigger, bool) {
	s.Lock()
	defer s.Unlock()
	t, ok := s.triggers[name]
	return t, ok
}

type executorCall struct {
	payload persistence.TriggerPayload
	at      time.Time
}

// fakeExecutor records calls and fails the first failures calls
type fakeExecutor struct {
	sync.Mutex
	calls    []executorCall
	failures int
	err      error
}

func (e *fakeExecutor) Execute(_ context.Context, payload persistence.TriggerPayload) (expiry.Outcome, error) {
	e.Lock()
	defer e.Unlock()
	e.calls = append(e.calls, executorCall{payload: payload, at: time.Now()})
	if e.failures > 0 {
		e.failures--
		return "", e.err
	}
	return expiry.OutcomeExpired, nil
}

func (e *fakeExecutor) callCount() int {
	e.Lock()
	defer e.Unlock()
	return len(e.calls)
}

func (e *fakeExecutor) callsSnapshot() []executorCall {
	e.Lock()
	defer e.Unlock()
	return append([]executorCall(nil), e.calls...)
}

type notifierFunc func(request NotifyTriggersRequest)

func (f notifierFunc) NotifyNewTriggers(request NotifyTriggersRequest) {
	f(request)
}
