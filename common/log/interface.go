// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package log

import (
	"github.com/xcherryio/taskexpiry/common/log/tag"
)

// Logger is the structured logging abstraction shared by every service.
// Usage examples:
//
//	1) logger = logger.WithTags(
//	        tag.TaskId("t-123"),
//	        tag.OwnerId("u-1"))
//	   logger.Info("trigger registered")
//	2) logger.Info("trigger registered",
//	        tag.TaskId("t-123"),
//	        tag.TriggerName("TaskExpiry-t-123"))
//
// Note: msg should be static. Anything dynamic should be tagged.
type Logger interface {
	Debug(msg string, tags ...tag.Tag)
	Info(msg string, tags ...tag.Tag)
	Warn(msg string, tags ...tag.Tag)
	Error(msg string, tags ...tag.Tag)
	Fatal(msg string, tags ...tag.Tag)
	WithTags(tags ...tag.Tag) Logger
}
