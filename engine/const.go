// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package engine

import (
	"time"

	"github.com/xcherryio/taskexpiry/config"
)

// Default: infinite retry with 1 second initial interval, 120 seconds max interval, and 2 backoff factor,
var defaultTriggerRetryPolicy = config.RetryPolicy{
	InitialInterval:    time.Second,
	BackoffCoefficient: 2,
	MaximumInterval:    120 * time.Second,
	MaximumAttempts:    0,
}
