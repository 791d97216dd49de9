package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes wager events keyed by owner, so one owner's events
// stay ordered within a partition.
type KafkaPublisher struct {
	wagers      *kafka.Writer
	settlements *kafka.Writer
	now         func() time.Time
}

func NewKafkaPublisher(brokers, wagerTopic, settlementTopic string) *KafkaPublisher {
	return &KafkaPublisher{
		wagers:      NewWriter(brokers, wagerTopic),
		settlements: NewWriter(brokers, settlementTopic),
		now:         time.Now,
	}
}

func NewWriter(brokers, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(SplitBrokers(brokers)...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// SplitBrokers parses a comma separated broker list, dropping blanks.
func SplitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func (p *KafkaPublisher) PublishWagerPlaced(ctx context.Context, e WagerPlaced) error {
	e.Type = TypeWagerPlaced
	e.TsUnixMs = p.now().UnixMilli()
	return writeJSON(ctx, p.wagers, e.Owner, e)
}

func (p *KafkaPublisher) PublishWagerSettled(ctx context.Context, e WagerSettled) error {
	e.Type = TypeWagerSettled
	e.TsUnixMs = p.now().UnixMilli()
	return writeJSON(ctx, p.wagers, e.Owner, e)
}

func (p *KafkaPublisher) PublishSettlementCompleted(ctx context.Context, e SettlementCompleted) error {
	e.Type = TypeSettlementCompleted
	e.TsUnixMs = p.now().UnixMilli()
	return writeJSON(ctx, p.settlements, e.Date+":"+e.Session, e)
}

func (p *KafkaPublisher) Close() error {
	return errors.Join(p.wagers.Close(), p.settlements.Close())
}

func writeJSON(ctx context.Context, w *kafka.Writer, key string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: b,
		Time:  time.Now(),
	})
}
