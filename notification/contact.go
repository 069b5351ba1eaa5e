// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package notification

import "github.com/xcherryio/taskexpiry/config"

// ContactResolver finds where to notify a task owner
type ContactResolver interface {
	// Resolve returns false when the owner has no known contact
	Resolve(ownerId string) (string, bool)
}

type staticContactResolver struct {
	defaultRecipient string
	recipients       map[string]string
}

// NewStaticContactResolver resolves owners through the configured map,
// falling back to the default recipient
func NewStaticContactResolver(cfg config.NotificationConfig) ContactResolver {
	return &staticContactResolver{
		defaultRecipient: cfg.DefaultRecipient,
		recipients:       cfg.Recipients,
	}
}

func (r *staticContactResolver) Resolve(ownerId string) (string, bool) {
	if to, ok := r.recipients[ownerId]; ok && to != "" {
		return to, true
	}
	return r.defaultRecipient, r.defaultRecipient != ""
}
