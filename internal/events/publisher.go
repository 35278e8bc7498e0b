// Package events provides event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"ai-speech-coach-service/internal/models"
	"ai-speech-coach-service/internal/observability/metrics"
)

// Default topic names.
const (
	DefaultTopicFeedback = models.EventTypeFeedback
	DefaultTopicSummary  = models.EventTypeSummary
)

// Publisher publishes live feedback and session summaries to separate Kafka topics.
type Publisher struct {
	writerFeedback *kafka.Writer
	writerSummary  *kafka.Writer
	principal      string
	topicFeedback  string
	topicSummary   string
	enabled        bool
	metrics        *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers       []string
	TopicFeedback string
	TopicSummary  string
	Principal     string
	Enabled       bool
}

// New creates a new Kafka event publisher. A nil or disabled config yields a
// log-only publisher.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			topicFeedback: DefaultTopicFeedback,
			topicSummary:  DefaultTopicSummary,
			metrics:       m,
		}
	}

	topicFeedback := cfg.TopicFeedback
	if topicFeedback == "" {
		topicFeedback = DefaultTopicFeedback
	}
	topicSummary := cfg.TopicSummary
	if topicSummary == "" {
		topicSummary = DefaultTopicSummary
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:     cfg.Principal,
			topicFeedback: topicFeedback,
			topicSummary:  topicSummary,
			metrics:       m,
		}
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	// Feedback is high-volume and only the latest value matters to readers,
	// so batch briefly and accept leader-only acks.
	writerFeedback := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topicFeedback,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	writerSummary := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topicSummary,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
		Transport:    transport,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicFeedback", topicFeedback).
		Str("topicSummary", topicSummary).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerFeedback: writerFeedback,
		writerSummary:  writerSummary,
		principal:      cfg.Principal,
		topicFeedback:  topicFeedback,
		topicSummary:   topicSummary,
		enabled:        true,
		metrics:        m,
	}
}

// Enabled reports whether messages reach Kafka.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// PublishFeedback publishes a live feedback event keyed by session.
func (p *Publisher) PublishFeedback(ctx context.Context, ev models.FeedbackEvent) error {
	return p.publish(ctx, p.writerFeedback, p.topicFeedback, "feedback", ev.SessionID, ev)
}

// PublishSummary publishes a session summary keyed by session.
func (p *Publisher) PublishSummary(ctx context.Context, s models.SessionSummary) error {
	return p.publish(ctx, p.writerSummary, p.topicSummary, "summary", s.SessionID, s)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(topic)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
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
	if p.writerFeedback != nil {
		if e := p.writerFeedback.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing feedback writer")
			err = e
		}
	}
	if p.writerSummary != nil {
		if e := p.writerSummary.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing summary writer")
			err = e
		}
	}
	return err
}
