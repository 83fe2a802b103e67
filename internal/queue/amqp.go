package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/repoqa/repoqa-backend/internal/config"
	"github.com/repoqa/repoqa-backend/internal/entity"
	"go.uber.org/zap"
)

// Broker is a RabbitMQ connection used both for confirmed publishing and
// for consuming. Publishing goes through one confirm-mode channel, each
// consumer gets its own channel.
type Broker struct {
	conn   *amqp.Connection
	pubCh  *amqp.Channel
	pubMu  sync.Mutex
	logger *zap.Logger

	mu        sync.Mutex
	consumers []*amqp.Channel
}

var (
	_ Publisher = (*Broker)(nil)
	_ Consumer  = (*Broker)(nil)
)

// Dial connects to the broker and opens the publishing channel in confirm mode.
func Dial(cfg config.BrokerConfig, logger *zap.Logger) (*Broker, error) {
	conn, err := amqp.DialConfig(cfg.URL, amqp.Config{
		Heartbeat:  cfg.Heartbeat,
		Locale:     "en_US",
		Dial:       amqp.DefaultDial(cfg.DialTimeout),
		Properties: amqp.Table{"connection_name": cfg.ConnectionName},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: dial: %v", entity.ErrBrokerUnavailable, err)
	}

	pubCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: open channel: %v", entity.ErrBrokerUnavailable, err)
	}

	if err := pubCh.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: enable publisher confirms: %v", entity.ErrBrokerUnavailable, err)
	}

	b := &Broker{
		conn:   conn,
		pubCh:  pubCh,
		logger: logger,
	}

	go b.watch()

	logger.Info("connected to message broker", zap.String("connection_name", cfg.ConnectionName))
	return b, nil
}

func (b *Broker) watch() {
	superviseClose(
		b.conn.NotifyClose(make(chan *amqp.Error, 1)),
		b.pubCh.NotifyClose(make(chan *amqp.Error, 1)),
		b.conn.Close,
		b.logger,
	)
}

// superviseClose waits for the connection or the publishing channel to close.
// A publishing channel closed by the broker takes the connection down with it,
// so consumers see their delivery channels close instead of publishes failing
// forever. A nil or drained notification is a local Close.
func superviseClose(connClosed, pubClosed <-chan *amqp.Error, closeConn func() error, logger *zap.Logger) {
	select {
	case err, ok := <-connClosed:
		if ok && err != nil {
			logger.Error("broker connection closed",
				zap.Int("code", err.Code),
				zap.String("reason", err.Reason),
			)
		}
	case err, ok := <-pubClosed:
		if !ok || err == nil {
			return
		}
		logger.Error("broker closed the publishing channel, closing connection",
			zap.Int("code", err.Code),
			zap.String("reason", err.Reason),
		)
		if cerr := closeConn(); cerr != nil && !errors.Is(cerr, amqp.ErrClosed) {
			logger.Warn("failed to close broker connection", zap.Error(cerr))
		}
	}
}

// DeclareTopology declares the durable pipeline queues. Rejected Files Queue
// messages are dead-lettered to the abandoned queue.
func (b *Broker) DeclareTopology() error {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	declarations := []struct {
		name string
		args amqp.Table
	}{
		{name: FilesAbandonedQueue},
		{name: FilesQueue, args: amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": FilesAbandonedQueue,
		}},
		{name: EmbeddingsQueue},
	}

	for _, d := range declarations {
		if _, err := b.pubCh.QueueDeclare(d.name, true, false, false, false, d.args); err != nil {
			return fmt.Errorf("%w: declare queue %s: %v", entity.ErrBrokerUnavailable, d.name, err)
		}
	}

	return nil
}

// Publish sends a persistent message to queue through the default exchange
// and waits for the broker confirmation.
func (b *Broker) Publish(ctx context.Context, queue, contentType string, body []byte) error {
	msg := amqp.Publishing{
		ContentType:  contentType,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	b.pubMu.Lock()
	confirm, err := b.pubCh.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, msg)
	b.pubMu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: publish to %s: %v", entity.ErrBrokerUnavailable, queue, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: confirm on %s: %v", entity.ErrBrokerUnavailable, queue, err)
	}
	if !acked {
		return fmt.Errorf("%w: message to %s was nacked", entity.ErrBrokerUnavailable, queue)
	}

	return nil
}

// Consume starts a consumer on its own channel with the given prefetch
// (0 means unlimited). When ctx is done the consumer is cancelled but the
// channel stays open so in-flight deliveries can still be settled; Close
// releases it.
func (b *Broker) Consume(ctx context.Context, queue string, prefetch int) (<-chan Delivery, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%w: open consumer channel: %v", entity.ErrBrokerUnavailable, err)
	}

	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("%w: set prefetch: %v", entity.ErrBrokerUnavailable, err)
	}

	tag := fmt.Sprintf("%s-%d", queue, time.Now().UnixNano())
	src, err := ch.Consume(queue, tag, false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("%w: consume %s: %v", entity.ErrBrokerUnavailable, queue, err)
	}

	b.mu.Lock()
	b.consumers = append(b.consumers, ch)
	b.mu.Unlock()

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				if err := ch.Cancel(tag, false); err != nil && !errors.Is(err, amqp.ErrClosed) {
					ctxzap.Warn(ctx, "failed to cancel consumer", zap.String("queue", queue), zap.Error(err))
				}
				return
			case d, ok := <-src:
				if !ok {
					return
				}
				select {
				case out <- amqpDelivery{d: d}:
				case <-ctx.Done():
					// Not handed to a worker; let the broker redeliver it.
					_ = d.Reject(true)
				}
			}
		}
	}()

	return out, nil
}

// Close closes consumer channels, the publishing channel and the connection.
func (b *Broker) Close() error {
	b.mu.Lock()
	for _, ch := range b.consumers {
		_ = ch.Close()
	}
	b.consumers = nil
	b.mu.Unlock()

	_ = b.pubCh.Close()
	if err := b.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return fmt.Errorf("close broker connection: %w", err)
	}
	return nil
}

type amqpDelivery struct {
	d amqp.Delivery
}

func (a amqpDelivery) Body() []byte              { return a.d.Body }
func (a amqpDelivery) Redelivered() bool         { return a.d.Redelivered }
func (a amqpDelivery) Ack() error                { return a.d.Ack(false) }
func (a amqpDelivery) Reject(requeue bool) error { return a.d.Reject(requeue) }
