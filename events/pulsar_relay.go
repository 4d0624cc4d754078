// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"
	"encoding/json"

	"github.com/apache/pulsar-client-go/pulsar"

	"github.com/flowqio/flowq/common/log"
	"github.com/flowqio/flowq/common/log/tag"
	"github.com/flowqio/flowq/config"
)

const publisherProperty = "publisher"

// PulsarRelayBus decorates a local bus so events reach the local buses of
// every other orchestrator instance: long-poll waiters are woken no matter
// which instance performed the transition.
type PulsarRelayBus struct {
	cfg    config.PulsarMQConfig
	nodeId string
	local  Bus

	client   pulsar.Client
	producer pulsar.Producer
	consumer pulsar.Consumer
	stopCh   chan struct{}
	logger   log.Logger
}

func NewPulsarRelayBus(
	cfg config.PulsarMQConfig, nodeId string, local Bus, logger log.Logger,
) *PulsarRelayBus {
	return &PulsarRelayBus{
		cfg:    cfg,
		nodeId: nodeId,
		local:  local,
		stopCh: make(chan struct{}),
		logger: logger,
	}
}

func (p *PulsarRelayBus) Start() error {
	client, err := pulsar.NewClient(pulsar.ClientOptions{
		URL: p.cfg.URL,
	})
	if err != nil {
		return err
	}
	producer, err := client.CreateProducer(pulsar.ProducerOptions{
		Topic: p.cfg.TaskEventsTopic,
	})
	if err != nil {
		client.Close()
		return err
	}
	// every instance holds its own exclusive subscription so each one
	// receives every event
	consumer, err := client.Subscribe(pulsar.ConsumerOptions{
		Topic:            p.cfg.TaskEventsTopic,
		SubscriptionName: p.cfg.SubscriptionPrefix + "-" + p.nodeId,
		Type:             pulsar.Exclusive,
	})
	if err != nil {
		producer.Close()
		client.Close()
		return err
	}
	p.client = client
	p.producer = producer
	p.consumer = consumer
	go p.relayMessages()
	return nil
}

func (p *PulsarRelayBus) Stop() error {
	close(p.stopCh)
	p.consumer.Close()
	p.producer.Close()
	p.client.Close()
	return nil
}

func (p *PulsarRelayBus) Publish(event Event) {
	p.local.Publish(event)

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to encode event for relay", tag.Error(err), tag.EventName(event.Name))
		return
	}
	p.producer.SendAsync(context.Background(), &pulsar.ProducerMessage{
		Payload: payload,
		Properties: map[string]string{
			publisherProperty: p.nodeId,
		},
	}, func(_ pulsar.MessageID, _ *pulsar.ProducerMessage, err error) {
		if err != nil {
			p.logger.Error("failed to relay event", tag.Error(err), tag.EventName(event.Name))
		}
	})
}

func (p *PulsarRelayBus) Subscribe(name string) (<-chan Event, func()) {
	return p.local.Subscribe(name)
}

func (p *PulsarRelayBus) relayMessages() {
	msgCh := p.consumer.Chan()
	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				p.logger.Info("relay message channel is closed")
				return
			}
			// our own events already went through the local bus
			if msg.Message.Properties()[publisherProperty] != p.nodeId {
				var event Event
				err := json.Unmarshal(msg.Message.Payload(), &event)
				if err != nil {
					p.logger.Error("failed to decode relayed event",
						tag.Error(err),
						tag.Value(string(msg.Message.Payload())))
				} else {
					p.local.Publish(event)
				}
			}
			err := p.consumer.Ack(msg)
			if err != nil {
				p.logger.Error("failed to ack the relayed event", tag.Error(err))
			}
		case <-p.stopCh:
			p.logger.Info("event relay is closed")
			return
		}
	}
}
