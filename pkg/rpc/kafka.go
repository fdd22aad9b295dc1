package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/skeinflow/skein/pkg/types"
)

// Producer publishes JSON messages to one Kafka topic.
type Producer struct {
	writer *kafka.Writer
	nodeID string
}

// NewProducer creates a producer for the given brokers and topic.
func NewProducer(brokers []string, topic, nodeID string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
		nodeID: nodeID,
	}
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

func (p *Producer) publish(ctx context.Context, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value}); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.writer.Topic, err)
	}
	return nil
}

// StatusProducer publishes task lifecycle messages keyed by task instance
// id so a single task's messages stay ordered within a partition.
type StatusProducer struct {
	*Producer
}

// NewStatusProducer creates the lifecycle message producer.
func NewStatusProducer(brokers []string, topic, nodeID string) *StatusProducer {
	return &StatusProducer{Producer: NewProducer(brokers, topic, nodeID)}
}

// Send publishes one lifecycle message for taskCtx.
func (p *StatusProducer) Send(ctx context.Context, taskCtx *types.TaskExecutionContext, masterAddress string, kind types.MessageKind) error {
	msg := StatusMessage{
		MessageID:     uuid.NewString(),
		Kind:          kind,
		MasterAddress: masterAddress,
		WorkerNodeID:  p.nodeID,
		SentAt:        time.Now(),
		Context:       taskCtx,
	}
	return p.publish(ctx, strconv.Itoa(taskCtx.TaskInstanceID), msg)
}

// AlertProducer forwards task alerts to the alert service topic.
type AlertProducer struct {
	*Producer
}

// NewAlertProducer creates the alert producer.
func NewAlertProducer(brokers []string, topic, nodeID string) *AlertProducer {
	return &AlertProducer{Producer: NewProducer(brokers, topic, nodeID)}
}

// SendAlert publishes one alert.
func (p *AlertProducer) SendAlert(ctx context.Context, groupID int, title, content string, strategy types.WarningStrategy) error {
	msg := AlertMessage{
		MessageID:    uuid.NewString(),
		WorkerNodeID: p.nodeID,
		AlertGroupID: groupID,
		Title:        title,
		Content:      content,
		Strategy:     strategy,
		SentAt:       time.Now(),
	}
	return p.publish(ctx, strconv.Itoa(groupID), msg)
}

// HeartbeatProducer publishes worker heartbeats.
type HeartbeatProducer struct {
	*Producer
}

// NewHeartbeatProducer creates the heartbeat producer.
func NewHeartbeatProducer(brokers []string, topic, nodeID string) *HeartbeatProducer {
	return &HeartbeatProducer{Producer: NewProducer(brokers, topic, nodeID)}
}

// SendHeartbeat publishes one liveness report.
func (p *HeartbeatProducer) SendHeartbeat(ctx context.Context, hb Heartbeat) error {
	hb.MessageID = uuid.NewString()
	hb.NodeID = p.nodeID
	hb.SentAt = time.Now()
	return p.publish(ctx, p.nodeID, hb)
}

// NewDispatchReader creates the consumer-group reader for task dispatch
// messages from masters.
func NewDispatchReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		Topic:          topic,
		MinBytes:       10e3,
		MaxBytes:       10e6,
		MaxWait:        3 * time.Second,
		CommitInterval: time.Second,
	})
}
