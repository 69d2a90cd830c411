// Copyright (c) 2023 BVK Chaitanya

// Package kafkapub publishes JSON encoded records to a Kafka topic.
package kafkapub

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/segmentio/kafka-go"
)

type Options struct {
	Brokers []string
	Topic   string

	DialTimeout  time.Duration
	BatchTimeout time.Duration
}

func (v *Options) setDefaults() {
	if v.DialTimeout == 0 {
		v.DialTimeout = 10 * time.Second
	}
	if v.BatchTimeout == 0 {
		v.BatchTimeout = 200 * time.Millisecond
	}
}

func (v *Options) Check() error {
	if len(v.Brokers) == 0 {
		return fmt.Errorf("at least one kafka broker is required: %w", os.ErrInvalid)
	}
	if len(v.Topic) == 0 {
		return fmt.Errorf("kafka topic cannot be empty: %w", os.ErrInvalid)
	}
	return nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	topic string

	writer messageWriter
}

func New(opts *Options) (*Publisher, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}

	dialer := &kafka.Dialer{
		Timeout:   opts.DialTimeout,
		DualStack: true,
	}
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      opts.Brokers,
		Topic:        opts.Topic,
		Balancer:     &kafka.LeastBytes{},
		Dialer:       dialer,
		BatchTimeout: opts.BatchTimeout,
		RequiredAcks: int(kafka.RequireOne),
	})
	return &Publisher{topic: opts.Topic, writer: w}, nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Publish writes v as a JSON message with the given key.
func (p *Publisher) Publish(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("could not json-encode record: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("could not write to kafka topic %q: %w", p.topic, err)
	}
	return nil
}
