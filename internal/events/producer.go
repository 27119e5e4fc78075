// Package events forwards committed order facts to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"carrental-backend/internal/logger"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

var ErrProducerClosed = errors.New("event producer is closed")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer buffers events in memory and writes them from one goroutine, so a
// slow broker never holds up a request.
type Producer struct {
	w       messageWriter
	name    string
	inbox   chan kafka.Message
	closeCh chan struct{}
	mu      sync.RWMutex
	closed  bool
	now     func() time.Time
	timeout time.Duration
}

func NewProducer(brokers []string, topic, name string, buf int) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return newProducer(w, name, buf)
}

func newProducer(w messageWriter, name string, buf int) *Producer {
	if buf <= 0 {
		buf = 256
	}
	return &Producer{
		w:       w,
		name:    name,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		now:     func() time.Time { return time.Now().UTC() },
		timeout: 10 * time.Second,
	}
}

// Start runs the write loop until Close is called.
func (p *Producer) Start() {
	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			p.write(m)
		}
		if err := p.w.Close(); err != nil {
			logger.Warn("Failed to close kafka writer", "error", err)
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	logger.ExternalServiceCall("kafka", "write", "key", string(m.Key))
	err := p.w.WriteMessages(ctx, m)
	logger.ExternalServiceResult("kafka", "write", err, "key", string(m.Key))
}

// Publish implements service.EventPublisher. It fails only when the buffer
// is full or the producer is closed.
func (p *Producer) Publish(ctx context.Context, eventType, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  envelopeVersion,
		OccurredAt:    p.now(),
		Producer:      p.name,
		CorrelationID: key,
		Payload:       body,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}
	select {
	case p.inbox <- msg:
		return nil
	default:
		return fmt.Errorf("event buffer full, dropped %s for %s", eventType, key)
	}
}

// Close stops accepting events, flushes what is buffered and waits for the
// writer to finish.
func (p *Producer) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
	p.mu.Unlock()
	<-p.closeCh
}
