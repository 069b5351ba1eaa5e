// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package engine

import (
	"math"
	"time"

	"github.com/xcherryio/taskexpiry/config"
)

// GetNextBackoff returns the wait before the next attempt after completedAttempts
// failed ones, or false if the policy gives up
func GetNextBackoff(
	completedAttempts int32, policy config.RetryPolicy,
) (nextBackoff time.Duration, shouldRetry bool) {
	policy = setDefaultRetryPolicyValue(policy)
	if policy.MaximumAttempts > 0 && completedAttempts >= policy.MaximumAttempts {
		return 0, false
	}
	if completedAttempts < 1 {
		completedAttempts = 1
	}
	next := float64(policy.InitialInterval) * math.Pow(policy.BackoffCoefficient, float64(completedAttempts-1))
	if next > float64(policy.MaximumInterval) {
		return policy.MaximumInterval, true
	}
	return time.Duration(next), true
}

func setDefaultRetryPolicyValue(policy config.RetryPolicy) config.RetryPolicy {
	if policy.InitialInterval == 0 {
		policy.InitialInterval = defaultTriggerRetryPolicy.InitialInterval
	}
	if policy.BackoffCoefficient == 0 {
		policy.BackoffCoefficient = defaultTriggerRetryPolicy.BackoffCoefficient
	}
	if policy.MaximumInterval == 0 {
		policy.MaximumInterval = defaultTriggerRetryPolicy.MaximumInterval
	}
	return policy
}
