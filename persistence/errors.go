// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package persistence

import "errors"

var (
	// ErrMalformedRecord means a change record can never be processed, retrying won't help
	ErrMalformedRecord = errors.New("malformed change record")
	// ErrNotTaskRecord means the change record is about an item that is not a task
	ErrNotTaskRecord = errors.New("change record is not about a task")
	// ErrMalformedPayload means a trigger payload can never be executed
	ErrMalformedPayload = errors.New("malformed trigger payload")
)
