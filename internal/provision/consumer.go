package provision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/wincLei/customer-service-sub000/internal/config"
)

// visitorCreated is the event published by the user-lifecycle service after
// a visitor identity is created or resolved.
type visitorCreated struct {
	ProjectID int64  `json:"project_id"`
	UserID    int64  `json:"user_id"`
	Name      string `json:"name"`
}

// Consumer provisions channels off the visitor-created queue. Every
// delivery is acked, malformed and failed ones included; provisioning is
// never retried through redelivery.
type Consumer struct {
	provisioner *Service
	store       Store
	cfg         config.AMQPConfig
	logger      *slog.Logger

	conn *amqp.Connection
	ch   *amqp.Channel
	done chan struct{}
}

func NewConsumer(log *slog.Logger, provisioner *Service, st Store, cfg config.AMQPConfig) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{
		provisioner: provisioner,
		store:       st,
		cfg:         cfg,
		logger:      log.With(slog.String("service", "provision_consumer")),
		done:        make(chan struct{}),
	}
}

// Start dials the broker, declares the topology, and begins consuming.
func (c *Consumer) Start(ctx context.Context) error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(c.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(c.cfg.Queue, "visitor.created", c.cfg.Exchange, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("bind queue: %w", err)
	}
	if err := ch.Qos(8, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("consume: %w", err)
	}

	c.conn = conn
	c.ch = ch
	go c.run(ctx, deliveries)
	c.logger.Info("visitor-created consumer started", slog.String("queue", c.cfg.Queue))
	return nil
}

func (c *Consumer) run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			c.handle(ctx, d)
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var ev visitorCreated
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		c.logger.Error("discard malformed visitor-created event", slog.Any("error", err))
		return
	}
	if ev.ProjectID == 0 || ev.UserID == 0 {
		c.logger.Error("discard visitor-created event with missing identity",
			slog.Int64("project_id", ev.ProjectID),
			slog.Int64("user_id", ev.UserID))
		return
	}
	if _, err := c.store.EnsureUser(ctx, ev.UserID, ev.ProjectID, ev.Name); err != nil {
		c.logger.Error("ensure user failed",
			slog.Int64("user_id", ev.UserID),
			slog.Any("error", err))
	}
	c.provisioner.Provision(ctx, ev.ProjectID, ev.UserID)
}

// Stop closes the AMQP resources and waits for the consume loop to exit.
func (c *Consumer) Stop(ctx context.Context) error {
	if c.conn == nil {
		return nil
	}
	if c.ch != nil {
		_ = c.ch.Close()
	}
	_ = c.conn.Close()
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
