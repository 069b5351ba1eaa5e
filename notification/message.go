// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package notification

import (
	"fmt"
	"time"

	"github.com/xcherryio/taskexpiry/persistence"
)

const (
	deadlineLayout     = "January 02, 2006 at 03:04 PM"
	untitledTask       = "Untitled Task"
	unknownDeadline    = "unknown"
	expiredSubjectTmpl = "Task Expired: %v"
)

// FormatDeadline renders the deadline for humans, in UTC
func FormatDeadline(deadline time.Time) string {
	if deadline.IsZero() {
		return unknownDeadline
	}
	return deadline.UTC().Format(deadlineLayout)
}

// ExpiredTaskMessage builds the alert sent when a task expired
func ExpiredTaskMessage(task persistence.Task, recipient string) Message {
	description := task.Description
	if description == "" {
		description = untitledTask
	}
	body := fmt.Sprintf("ALERT: Your To-Do Task has Expired!\n\n"+
		"Task: %v\n"+
		"Task ID: %v\n"+
		"Deadline: %v\n\n"+
		"This task was due and has been automatically marked as expired. "+
		"Please log in to review your tasks.",
		description, task.TaskId, FormatDeadline(task.Deadline))

	return Message{
		Recipient: recipient,
		Subject:   fmt.Sprintf(expiredSubjectTmpl, description),
		Body:      body,
	}
}
