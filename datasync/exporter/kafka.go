// Copyright 2023 The powsim Authors
// This file is part of the powsim library.
//
// The powsim library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The powsim library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the powsim library. If not, see <http://www.gnu.org/licenses/>.

// Package exporter streams block mine-success and block-receive events to an
// external broker so a run can be analyzed while it is still going.
package exporter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Shopify/sarama"
	"github.com/hashicorp/go-uuid"
	"github.com/pkg/errors"

	"github.com/powsim/powsim/log"
)

var logger = log.NewModuleLogger(log.Exporter)

// BlockEvent is the wire record published per block event.
type BlockEvent struct {
	Peer       string  `json:"peer"`
	Event      string  `json:"event"`
	BlockID    string  `json:"blockId"`
	Hash       string  `json:"hash"`
	ParentHash string  `json:"parentHash"`
	Miner      string  `json:"miner"`
	Timestamp  float64 `json:"timestamp"`
	Clock      float64 `json:"clock"`
	NumTxns    int     `json:"numTxns"`
	IsPrivate  bool    `json:"isPrivate"`
}

// Key partitions the topic by mining peer.
func (e *BlockEvent) Key() string {
	return e.Miner
}

// Publisher is the narrow surface the driver publishes through.
type Publisher interface {
	Publish(msg interface{}) error
	Close() error
}

type kafkaPublisher struct {
	producer sarama.AsyncProducer
	topic    string
}

// NewKafkaPublisher connects an async producer to the given brokers. The
// producer never blocks the simulation; delivery errors are only logged.
func NewKafkaPublisher(brokers []string, topic string) (Publisher, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 500 * time.Millisecond

	id, _ := uuid.GenerateUUID()
	config.ClientID = fmt.Sprintf("powsim-%s", id)

	producer, err := sarama.NewAsyncProducer(brokers, config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start sarama producer")
	}
	go func() {
		for err := range producer.Errors() {
			logger.Error("Failed to publish block event", "err", err)
		}
	}()
	logger.Info("Kafka exporter connected", "brokers", brokers, "topic", topic)
	return &kafkaPublisher{producer: producer, topic: topic}, nil
}

func (p *kafkaPublisher) Publish(msg interface{}) error {
	item := &sarama.ProducerMessage{
		Topic: p.topic,
	}
	if v, ok := msg.(interface{ Key() string }); ok {
		item.Key = sarama.StringEncoder(v.Key())
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	item.Value = sarama.StringEncoder(data)
	p.producer.Input() <- item
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}
