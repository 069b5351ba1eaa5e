// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package router

import (
	"context"
	"sync"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/google/uuid"
	"github.com/xcherryio/taskexpiry/config"
	"github.com/xcherryio/taskexpiry/stream"
)

// PulsarProducer is the subset of pulsar.Producer used by the publisher
type PulsarProducer interface {
	SendAsync(ctx context.Context, msg *pulsar.ProducerMessage, callback func(pulsar.MessageID, *pulsar.ProducerMessage, error))
	Flush() error
	Close()
}

type pulsarPublisher struct {
	client   pulsar.Client
	producer PulsarProducer
}

func NewPulsarPublisher(cfg config.PulsarConfig) (DeliveryPublisher, error) {
	client, err := pulsar.NewClient(cfg.ClientOptions())
	if err != nil {
		return nil, err
	}
	producer, err := client.CreateProducer(pulsar.ProducerOptions{
		Topic:       cfg.Topic,
		Name:        "taskexpiry-router-" + uuid.NewString(),
		SendTimeout: cfg.SendTimeout,
		// key shared consumers need batches that never mix keys
		BatcherBuilderType: pulsar.KeyBasedBatchBuilder,
	})
	if err != nil {
		client.Close()
		return nil, err
	}
	return &pulsarPublisher{
		client:   client,
		producer: producer,
	}, nil
}

func NewPulsarPublisherWithProducer(producer PulsarProducer) DeliveryPublisher {
	return &pulsarPublisher{producer: producer}
}

func (p *pulsarPublisher) PublishBatch(ctx context.Context, msgs []QueueMessage) []error {
	errs := make([]error, len(msgs))
	wg := sync.WaitGroup{}
	for i, msg := range msgs {
		wg.Add(1)
		p.producer.SendAsync(ctx, &pulsar.ProducerMessage{
			Payload:     msg.Payload,
			Key:         msg.OrderingKey,
			OrderingKey: msg.OrderingKey,
			Properties: map[string]string{
				stream.RecordIdProperty: msg.DedupId,
			},
		}, func(_ pulsar.MessageID, _ *pulsar.ProducerMessage, err error) {
			errs[i] = err
			wg.Done()
		})
	}
	// a failed flush is reported through the callbacks as well
	_ = p.producer.Flush()
	wg.Wait()
	return errs
}

func (p *pulsarPublisher) Close() {
	p.producer.Close()
	if p.client != nil {
		p.client.Close()
	}
}
