// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package config

import "github.com/apache/pulsar-client-go/pulsar"

func (c PulsarConfig) ClientOptions() pulsar.ClientOptions {
	return pulsar.ClientOptions{
		URL:               c.URL,
		OperationTimeout:  c.OperationTimeout,
		ConnectionTimeout: c.ConnectionTimeout,
	}
}
