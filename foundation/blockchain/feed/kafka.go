package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaConfig represents the settings for the kafka feed.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// Kafka publishes mined blocks to a kafka topic keyed by block number.
type Kafka struct {
	topic  string
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

// NewKafka constructs a kafka publisher. No connection is made until the
// first block is published.
func NewKafka(cfg KafkaConfig, log *zap.SugaredLogger) *Kafka {
	w := kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireAll,
	}

	return &Kafka{
		topic:  cfg.Topic,
		writer: &w,
		log:    log,
	}
}

// PublishBlock implements the Publisher interface.
func (k *Kafka) PublishBlock(ctx context.Context, block database.Block) error {
	key, value, err := encode(block, time.Now().UTC())
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   key,
		Value: value,
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish block %d to topic %s: %w", block.Header.Number, k.topic, err)
	}

	k.log.Infow("feed", "status", "published block", "topic", k.topic, "number", block.Header.Number, "hash", block.Hash)

	return nil
}

// Close implements the Publisher interface.
func (k *Kafka) Close() error {
	if err := k.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}
