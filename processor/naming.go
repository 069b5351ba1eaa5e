// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package processor

import "time"

// TriggerName is the deterministic trigger name of a task
func TriggerName(prefix, taskId string) string {
	return prefix + taskId
}

// FireTimeFor rounds the deadline up to the granularity,
// so that a trigger never fires before the deadline
func FireTimeFor(deadline time.Time, granularity time.Duration) time.Time {
	deadline = deadline.UTC()
	if granularity <= 0 {
		return deadline
	}
	fireAt := deadline.Truncate(granularity)
	if fireAt.Before(deadline) {
		fireAt = fireAt.Add(granularity)
	}
	return fireAt
}
