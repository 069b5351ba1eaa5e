// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package stream

import (
	"fmt"

	"github.com/xcherryio/taskexpiry/config"
	"github.com/xcherryio/taskexpiry/persistence"
)

// RecordHeader is the part of a raw change record the router needs
// to enqueue it without decoding the images
type RecordHeader struct {
	// RecordId is the deduplication id
	RecordId string
	// OrderingKey groups the records of the same task. It is the task id,
	// or the storage key of the item for items that are not tasks.
	OrderingKey string
}

// Codec maps raw change stream records of one wire format
type Codec interface {
	// Peek reads only the header of a raw record
	Peek(raw []byte) (RecordHeader, error)
	// Decode reads the full record. Errors wrapping persistence.ErrMalformedRecord
	// or persistence.ErrNotTaskRecord are permanent.
	Decode(raw []byte) (persistence.ChangeRecord, error)
}

func NewCodec(format string) (Codec, error) {
	switch format {
	case config.ChangeStreamFormatNative, "":
		return NativeCodec{}, nil
	case config.ChangeStreamFormatDynamoDB:
		return DynamoDBStreamCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported change stream format %v", format)
	}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %v", persistence.ErrMalformedRecord, fmt.Sprintf(format, args...))
}

// RecordIdProperty is the delivery queue message property carrying the record id
const RecordIdProperty = "recordId"
