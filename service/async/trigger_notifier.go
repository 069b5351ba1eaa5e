// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package async

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/common/log/tag"
	"github.com/xcherryio/taskexpiry/engine"
)

type localTriggerNotifier struct {
	queue engine.TriggerQueue
}

func newLocalTriggerNotifier(queue engine.TriggerQueue) engine.TriggerNotifier {
	return &localTriggerNotifier{queue: queue}
}

func (n *localTriggerNotifier) NotifyNewTriggers(request engine.NotifyTriggersRequest) {
	n.queue.TriggerPollingTriggers(request)
}

const defaultNotifyTimeout = 3 * time.Second

// httpTriggerNotifier notifies an expiry service running in another process.
// Failures are only logged, the next preload of the queue picks the triggers up.
type httpTriggerNotifier struct {
	url    string
	client *http.Client
	logger log.Logger
}

func NewHttpTriggerNotifier(clientAddress string, logger log.Logger) engine.TriggerNotifier {
	return &httpTriggerNotifier{
		url:    strings.TrimSuffix(clientAddress, "/") + PathNotifyTriggers,
		client: &http.Client{Timeout: defaultNotifyTimeout},
		logger: logger,
	}
}

func (n *httpTriggerNotifier) NotifyNewTriggers(request engine.NotifyTriggersRequest) {
	body, err := json.Marshal(request)
	if err != nil {
		n.logger.Error("failed to encode trigger notification", tag.Error(err))
		return
	}
	resp, err := n.client.Post(n.url, "application/json", bytes.NewReader(body))
	if err != nil {
		n.logger.Warn("failed to notify new triggers", tag.Error(err), tag.Value(n.url))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		n.logger.Warn("failed to notify new triggers", tag.StatusCode(resp.StatusCode), tag.Value(n.url))
	}
}
