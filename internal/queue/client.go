package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// IndexJob is the wire form of one asynchronous indexing submission. The
// image travels inline (base64 under JSON encoding) so the worker needs
// nothing but the job to replay it.
type IndexJob struct {
	Shard  string `json:"shard"`
	ID     int64  `json:"id"`
	Keys   string `json:"keys"`
	Values string `json:"values"`
	Image  []byte `json:"image"`
}

// Publisher is the producing half of the job queue.
type Publisher interface {
	PublishJob(ctx context.Context, job IndexJob) error
}

// Message is one consumed delivery. Ack removes it from the queue; Nack
// returns it, optionally requeueing.
type Message interface {
	Job() (IndexJob, error)
	Ack() error
	Nack(requeue bool) error
}

// Consumer is the consuming half of the job queue.
type Consumer interface {
	Consume(ctx context.Context, wg *sync.WaitGroup) (<-chan Message, error)
}

// Client is a RabbitMQ-backed job queue. It holds one connection and one
// confirm-mode channel; the queue is declared durable on construction.
type Client struct {
	cfg Config
	log *zap.Logger

	mu   sync.RWMutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

var (
	_ Publisher = (*Client)(nil)
	_ Consumer  = (*Client)(nil)
)

// NewClient dials the broker and declares the job queue.
func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}

	conn, err := amqp.DialConfig(cfg.URL, amqp.Config{Dial: amqp.DefaultDial(cfg.ConnectTimeout)})
	if err != nil {
		return nil, fmt.Errorf("queue: connecting to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("queue: opening channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("queue: enabling publisher confirms: %w", err)
	}
	if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("queue: setting prefetch: %w", err)
	}

	if _, err := ch.QueueDeclare(
		cfg.Queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("queue: declaring queue %q: %w", cfg.Queue, err)
	}

	log.Info("indexing job queue ready", zap.String("queue", cfg.Queue))
	return &Client{cfg: cfg, log: log, conn: conn, ch: ch}, nil
}

// PublishJob publishes one job to the queue on the default exchange.
func (c *Client) PublishJob(ctx context.Context, job IndexJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: encoding job: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	err = c.ch.PublishWithContext(ctx,
		"",          // default exchange
		c.cfg.Queue, // routing key = queue name
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("queue: publishing job: %w", err)
	}
	return nil
}

// Consume starts delivering jobs on the returned channel until ctx is
// cancelled. The WaitGroup is released once the delivery loop exits.
func (c *Client) Consume(ctx context.Context, wg *sync.WaitGroup) (<-chan Message, error) {
	c.mu.RLock()
	deliveries, err := c.ch.Consume(
		c.cfg.Queue,
		"",    // consumer tag, server-generated
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	c.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("queue: starting consumer: %w", err)
	}

	out := make(chan Message)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				select {
				case out <- &delivery{d: d}:
				case <-ctx.Done():
					_ = d.Nack(false, true)
					return
				}
			}
		}
	}()
	return out, nil
}

// Close shuts the channel and connection down.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ch.Close(); err != nil {
		c.log.Warn("closing amqp channel", zap.Error(err))
	}
	return c.conn.Close()
}

type delivery struct {
	d amqp.Delivery
}

func (m *delivery) Job() (IndexJob, error) {
	var job IndexJob
	if err := json.Unmarshal(m.d.Body, &job); err != nil {
		return IndexJob{}, fmt.Errorf("queue: decoding job: %w", err)
	}
	return job, nil
}

func (m *delivery) Ack() error              { return m.d.Ack(false) }
func (m *delivery) Nack(requeue bool) error { return m.d.Nack(false, requeue) }
