// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package clock

import (
	"sync"
	"time"
)

type (
	// TimeSource is the interface for any entity that provides the current time.
	// Services take it as a dependency so that deadline decisions can be tested
	// against a fixed instant.
	TimeSource interface {
		Now() time.Time
	}

	realTimeSource struct{}

	// EventTimeSource serves fake controlled time
	EventTimeSource struct {
		sync.RWMutex
		now time.Time
	}
)

// NewRealTimeSource returns a time source that reads the wall clock
func NewRealTimeSource() TimeSource {
	return &realTimeSource{}
}

func (ts *realTimeSource) Now() time.Time {
	return time.Now().UTC()
}

// NewEventTimeSource returns a time source that only moves when told to
func NewEventTimeSource(now time.Time) *EventTimeSource {
	return &EventTimeSource{now: now}
}

func (ts *EventTimeSource) Now() time.Time {
	ts.RLock()
	defer ts.RUnlock()
	return ts.now
}

// Update sets the fake time
func (ts *EventTimeSource) Update(now time.Time) *EventTimeSource {
	ts.Lock()
	defer ts.Unlock()
	ts.now = now
	return ts
}

// Advance moves the fake time forward by d
func (ts *EventTimeSource) Advance(d time.Duration) *EventTimeSource {
	ts.Lock()
	defer ts.Unlock()
	ts.now = ts.now.Add(d)
	return ts
}
