package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
)

// KafkaOptions configures the alert producer.
type KafkaOptions struct {
	Name    string
	Brokers []string
	Topic   string
	Timeout time.Duration
}

// KafkaSink produces events to a Kafka topic, keyed by task id so one
// task's alerts stay ordered within a partition.
type KafkaSink struct {
	opts     KafkaOptions
	producer sarama.SyncProducer
}

// NewKafkaSink builds a synchronous producer against the brokers.
func NewKafkaSink(opts KafkaOptions) (*KafkaSink, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Timeout = opts.Timeout
	cfg.Net.DialTimeout = opts.Timeout

	producer, err := sarama.NewSyncProducer(opts.Brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &KafkaSink{opts: opts, producer: producer}, nil
}

func (s *KafkaSink) Name() string { return s.opts.Name }

func (s *KafkaSink) Send(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: s.opts.Topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(ev.TaskID, 10)),
		Value: sarama.ByteEncoder(payload),
	}
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("produce to %s: %w", s.opts.Topic, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.producer.Close()
}
