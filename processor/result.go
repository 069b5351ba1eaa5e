// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package processor

// Result is the outcome of handling one delivered record.
// It decides whether the delivery is acknowledged.
type Result int

const (
	// ResultSuccess means the record was fully acted upon, ack it
	ResultSuccess Result = iota
	// ResultRetryable means a transient failure, nack it for redelivery
	ResultRetryable
	// ResultPermanent means the record can never succeed, ack it to drop it
	ResultPermanent
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultRetryable:
		return "retryable"
	case ResultPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// ShouldAck tells whether the delivery should be acknowledged
func (r Result) ShouldAck() bool {
	return r != ResultRetryable
}
