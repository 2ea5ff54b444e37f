// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package record

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Topic is where records of kind k are published under prefix.
func Topic(prefix string, k Kind) string {
	return strings.TrimSuffix(prefix, "/") + "/" + string(k)
}

// publisher is the part of mqtt.Client the sink uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTSink publishes each record as JSON on Topic(prefix, kind).
type MQTTSink struct {
	client publisher
	prefix string
}

// DialMQTT connects to broker and returns a sink publishing under prefix.
func DialMQTT(broker, clientID, prefix string) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect error: %w", token.Error())
	}
	return &MQTTSink{client: client, prefix: prefix}, nil
}

func (s *MQTTSink) Emit(ctx context.Context, r Record) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.Kind(), err)
	}

	token := s.client.Publish(Topic(s.prefix, r.Kind()), 0, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
