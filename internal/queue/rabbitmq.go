package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/network-extractor/internal/entity"
)

type RabbitConfig struct {
	Exchange   string
	RoutingKey string
	Queue      string
}

func declareExchange(ch *amqp.Channel, exchange string) error {
	return ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
}

// declareTopology declares the exchange and the durable work queue bound to it,
// so messages published before any worker starts are retained.
func declareTopology(ch *amqp.Channel, cfg RabbitConfig) error {
	if err := declareExchange(ch, cfg.Exchange); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(cfg.Queue, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// confirmation is the part of amqp.DeferredConfirmation Publish waits on.
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// awaitConfirm turns a broker nack or an unconfirmed publish into an error.
func awaitConfirm(ctx context.Context, conf confirmation) error {
	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm: %w", err)
	}
	if !acked {
		return errors.New("broker nacked the message")
	}
	return nil
}

// RabbitPublisher publishes job references to a durable topic exchange with
// publisher confirms.
type RabbitPublisher struct {
	mu         sync.Mutex
	channel    *amqp.Channel
	exchange   string
	routingKey string
	log        *slog.Logger
}

func NewRabbitPublisher(conn *amqp.Connection, cfg RabbitConfig, log *slog.Logger) (*RabbitPublisher, error) {
	if log == nil {
		log = slog.Default()
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareTopology(ch, cfg); err != nil {
		_ = ch.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}
	return &RabbitPublisher{
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		log:        log,
	}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, msg entity.QueueMessage) error {
	body, err := msg.Encode()
	if err != nil {
		return err
	}
	// amqp channels are not safe for concurrent publishes
	p.mu.Lock()
	defer p.mu.Unlock()
	conf, err := p.channel.PublishWithDeferredConfirmWithContext(ctx,
		p.exchange,
		p.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.JobID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err == nil {
		err = awaitConfirm(ctx, conf)
	}
	if err != nil {
		p.log.Error("queue.publish.failed", "job_id", msg.JobID, "error", err)
		return fmt.Errorf("publish job %s: %w", msg.JobID, err)
	}
	p.log.Info("queue.published", "job_id", msg.JobID, "routing_key", p.routingKey)
	return nil
}

func (p *RabbitPublisher) Close() error {
	return p.channel.Close()
}

// RabbitConsumer delivers queued job references to a Handler with bounded concurrency.
type RabbitConsumer struct {
	channel     *amqp.Channel
	queue       string
	handler     Handler
	concurrency int
	log         *slog.Logger
}

func NewRabbitConsumer(conn *amqp.Connection, cfg RabbitConfig, handler Handler, concurrency int, log *slog.Logger) (*RabbitConsumer, error) {
	if log == nil {
		log = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareTopology(ch, cfg); err != nil {
		_ = ch.Close()
		return nil, err
	}
	if err := ch.Qos(concurrency, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &RabbitConsumer{
		channel:     ch,
		queue:       cfg.Queue,
		handler:     handler,
		concurrency: concurrency,
		log:         log,
	}, nil
}

// Start consumes until ctx is cancelled or the channel closes, then waits for
// in-flight deliveries.
func (c *RabbitConsumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	c.log.Info("queue.consumer.started", "queue", c.queue, "concurrency", c.concurrency)

	// In-flight jobs run to completion on shutdown.
	workCtx := context.WithoutCancel(ctx)
	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)
	defer func() {
		_ = g.Wait()
		c.log.Info("queue.consumer.stopped", "queue", c.queue)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				c.log.Warn("queue.consumer.channel_closed", "queue", c.queue)
				return nil
			}
			g.Go(func() error {
				c.handleDelivery(workCtx, d)
				return nil
			})
		}
	}
}

// handleDelivery acks every well-formed message once the handler returns, even
// on failure; the handler records failures on the job itself.
func (c *RabbitConsumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	msg, err := entity.DecodeQueueMessage(d.Body)
	if err != nil {
		c.log.Error("queue.message.malformed", "error", err, "delivery_tag", d.DeliveryTag)
		if nErr := d.Nack(false, false); nErr != nil {
			c.log.Warn("queue.nack.failed", "error", nErr)
		}
		return
	}
	if err := c.handler(ctx, msg); err != nil {
		c.log.Error("queue.message.handler_error", "job_id", msg.JobID, "error", err, "redelivered", d.Redelivered)
	}
	if err := d.Ack(false); err != nil {
		c.log.Warn("queue.ack.failed", "job_id", msg.JobID, "error", err)
	}
}

func (c *RabbitConsumer) Close() error {
	return c.channel.Close()
}
