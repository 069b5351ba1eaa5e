// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package processor

import (
	"context"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/common/log/tag"
	"github.com/xcherryio/taskexpiry/config"
	"github.com/xcherryio/taskexpiry/stream"
)

// DeliveryConsumer receives records from the delivery queue and dispatches them to a Runner
type DeliveryConsumer interface {
	Start(ctx context.Context) error
	Stop() error
}

type pulsarDeliveryConsumer struct {
	cfg      config.PulsarConfig
	runner   *Runner
	client   pulsar.Client
	consumer pulsar.Consumer
	stopCh   chan struct{}
	doneCh   chan struct{}
	logger   log.Logger
}

func NewPulsarDeliveryConsumer(cfg config.PulsarConfig, runner *Runner, logger log.Logger) DeliveryConsumer {
	return &pulsarDeliveryConsumer{
		cfg:    cfg,
		runner: runner,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		logger: logger,
	}
}

func (p *pulsarDeliveryConsumer) Start(ctx context.Context) error {
	client, err := pulsar.NewClient(p.cfg.ClientOptions())
	if err != nil {
		return err
	}
	// key shared keeps the records of a task on one consumer
	consumer, err := client.Subscribe(pulsar.ConsumerOptions{
		Topic:               p.cfg.Topic,
		SubscriptionName:    p.cfg.SubscriptionName,
		Type:                pulsar.KeyShared,
		NackRedeliveryDelay: p.cfg.NackRedeliveryDelay,
	})
	if err != nil {
		client.Close()
		return err
	}
	p.client = client
	p.consumer = consumer

	p.runner.Start(ctx)
	go p.receiveMessages(ctx)
	return nil
}

func (p *pulsarDeliveryConsumer) Stop() error {
	close(p.stopCh)
	<-p.doneCh

	stopCtx, cancel := context.WithTimeout(context.Background(), p.cfg.OperationTimeout)
	defer cancel()
	err := p.runner.Stop(stopCtx)

	p.consumer.Close()
	p.client.Close()
	return err
}

func (p *pulsarDeliveryConsumer) receiveMessages(ctx context.Context) {
	defer close(p.doneCh)
	msgCh := p.consumer.Chan()
	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				p.logger.Info("delivery channel is closed")
				return
			}
			p.runner.Dispatch(ctx, p.toDelivery(msg))
		case <-p.stopCh:
			p.logger.Info("delivery consumer is stopped")
			return
		case <-ctx.Done():
			p.logger.Info("delivery consumer is cancelled")
			return
		}
	}
}

func (p *pulsarDeliveryConsumer) toDelivery(msg pulsar.ConsumerMessage) Delivery {
	orderingKey := msg.Message.OrderingKey()
	if orderingKey == "" {
		orderingKey = msg.Message.Key()
	}
	recordId := msg.Message.Properties()[stream.RecordIdProperty]

	return Delivery{
		RecordId:    recordId,
		OrderingKey: orderingKey,
		Payload:     msg.Message.Payload(),
		Ack: func() {
			if err := msg.Consumer.Ack(msg.Message); err != nil {
				p.logger.Error("failed to ack the delivery after processing",
					tag.Error(err),
					tag.RecordId(recordId),
					tag.Key(orderingKey))
			}
		},
		Nack: func() {
			msg.Consumer.Nack(msg.Message)
		},
	}
}
