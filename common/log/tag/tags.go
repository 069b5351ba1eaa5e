// Copyright (c) 2017 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package tag

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

const LoggingCallAtKey = "logging-call-at"

// Tag is the interface for logging system
type Tag struct {
	// keep this field private
	field zap.Field
}

// Field returns a zap field
func (t *Tag) Field() zap.Field {
	return t.field
}

func newStringTag(key string, value string) Tag {
	return Tag{
		field: zap.String(key, value),
	}
}

func newInt64(key string, value int64) Tag {
	return Tag{
		field: zap.Int64(key, value),
	}
}

func newInt(key string, value int) Tag {
	return Tag{
		field: zap.Int(key, value),
	}
}

func newTimeTag(key string, value time.Time) Tag {
	return Tag{
		field: zap.Time(key, value),
	}
}

func newDurationTag(key string, value time.Duration) Tag {
	return Tag{
		field: zap.Duration(key, value),
	}
}

func newObjectTag(key string, value interface{}) Tag {
	return Tag{
		field: zap.String(key, fmt.Sprintf("%v", value)),
	}
}

func newErrorTag(key string, value error) Tag {
	//NOTE zap already chosen "error" as key
	return Tag{
		field: zap.Error(value),
	}
}

// TAGS

func Error(err error) Tag {
	return newErrorTag("error", err)
}

func Service(sv string) Tag {
	return newStringTag("service", sv)
}

func Message(msg string) Tag {
	return newStringTag("message", msg)
}

func TaskId(id string) Tag {
	return newStringTag("task-id", id)
}

func OwnerId(id string) Tag {
	return newStringTag("owner-id", id)
}

func RecordId(id string) Tag {
	return newStringTag("record-id", id)
}

func EventType(et string) Tag {
	return newStringTag("event-type", et)
}

func TriggerName(name string) Tag {
	return newStringTag("trigger-name", name)
}

func Action(action string) Tag {
	return newStringTag("action", action)
}

func Outcome(outcome string) Tag {
	return newStringTag("outcome", outcome)
}

func FireAt(t time.Time) Tag {
	return newTimeTag("fire-at", t)
}

func Deadline(t time.Time) Tag {
	return newTimeTag("deadline", t)
}

func Sequence(seq int64) Tag {
	return newInt64("sequence", seq)
}

func Attempts(n int32) Tag {
	return newInt64("attempts", int64(n))
}

func Count(n int) Tag {
	return newInt("count", n)
}

func Partition(p int) Tag {
	return newInt("partition", p)
}

func Offset(o int64) Tag {
	return newInt64("offset", o)
}

func Backoff(d time.Duration) Tag {
	return newDurationTag("backoff", d)
}

func Recipient(to string) Tag {
	return newStringTag("recipient", to)
}

func Subject(subject string) Tag {
	return newStringTag("subject", subject)
}

func WorkerId(id int) Tag {
	return newInt("worker-id", id)
}

func StatusCode(status int) Tag {
	return newInt("status-code", status)
}

func Value(v interface{}) Tag {
	return newObjectTag("value", v)
}

func Key(v string) Tag {
	return newStringTag("key", v)
}
