// Package events publishes call and transfer lifecycle events to Kafka so
// downstream consumers (reporting, QA, wallboards) can follow handoffs
// without polling the orchestration API.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"warm-transfer-service/internal/observability/metrics"
)

// Event types carried on the two topics.
const (
	CallStarted       = "call.started"
	CallEnded         = "call.ended"
	TransferInitiated = "transfer.initiated"
	TransferCompleted = "transfer.completed"
	TransferExpired   = "transfer.expired"
)

// Publisher publishes lifecycle events to separate Kafka topics for calls
// and transfers. When disabled it degrades to log-only mode; publishing
// never fails the enclosing orchestration operation.
type Publisher struct {
	writerCalls     *kafka.Writer
	writerTransfers *kafka.Writer
	principal       string
	topicCalls      string
	topicTransfers  string
	enabled         bool
	metrics         *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers        []string
	TopicCalls     string
	TopicTransfers string
	Principal      string
	Enabled        bool
}

// New creates a lifecycle event publisher with separate topics for call and
// transfer events.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:      cfg.Principal,
			topicCalls:     cfg.TopicCalls,
			topicTransfers: cfg.TopicTransfers,
			enabled:        false,
			metrics:        m,
		}
	}

	// Custom dialer with longer timeouts for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	writerCalls := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicCalls,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	writerTransfers := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicTransfers,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicCalls", cfg.TopicCalls).
		Str("topicTransfers", cfg.TopicTransfers).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerCalls:     writerCalls,
		writerTransfers: writerTransfers,
		principal:       cfg.Principal,
		topicCalls:      cfg.TopicCalls,
		topicTransfers:  cfg.TopicTransfers,
		enabled:         true,
		metrics:         m,
	}
}

// Enabled reports whether events are actually written to Kafka.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// PublishCall publishes a call lifecycle event keyed by call id.
func (p *Publisher) PublishCall(ctx context.Context, eventType, callID string, event any) error {
	return p.publish(ctx, p.writerCalls, p.topicCalls, eventType, callID, event)
}

// PublishTransfer publishes a transfer lifecycle event keyed by transfer id.
func (p *Publisher) PublishTransfer(ctx context.Context, eventType, transferID string, event any) error {
	return p.publish(ctx, p.writerTransfers, p.topicTransfers, eventType, transferID, event)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Str("eventType", eventType).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("eventType", eventType).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("eventType", eventType).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerCalls != nil {
		if e := p.writerCalls.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing calls writer")
			err = e
		}
	}
	if p.writerTransfers != nil {
		if e := p.writerTransfers.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing transfers writer")
			err = e
		}
	}
	return err
}
