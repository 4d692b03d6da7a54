package events

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-realty-backend/internal/observability"
)

// AMQPConfig describes the RabbitMQ topology: one durable topic exchange and
// one durable queue bound to every property event.
type AMQPConfig struct {
	URL      string
	Exchange string
	Queue    string
	Prefetch int
}

const bindingKey = "property.#"

// AMQPPublisher publishes events as persistent JSON messages.
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// DialPublisher connects and declares the exchange.
func DialPublisher(cfg AMQPConfig) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("events: dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("events: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("events: declare exchange %q: %w", cfg.Exchange, err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: cfg.Exchange}, nil
}

// Publish implements Publisher.
func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := encode(e)
	if err != nil {
		return err
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, string(e.Type), false, false, msg); err != nil {
		return fmt.Errorf("events: publish %s: %w", e.Type, err)
	}
	observability.EventsTotal.WithLabelValues(string(e.Type), "published").Inc()
	return nil
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	var first error
	if p.ch != nil {
		first = p.ch.Close()
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// AMQPConsumer reads events from the queue and feeds them to a Handler.
type AMQPConsumer struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	queue   string
	handler Handler
}

// DialConsumer connects and declares the exchange, queue, and binding.
func DialConsumer(cfg AMQPConfig, h Handler) (*AMQPConsumer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("events: dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("events: open channel: %w", err)
	}
	fail := func(step string, err error) (*AMQPConsumer, error) {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("events: %s: %w", step, err)
	}
	if cfg.Prefetch > 0 {
		if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
			return fail("set qos", err)
		}
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fail("declare exchange", err)
	}
	q, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return fail("declare queue", err)
	}
	if err := ch.QueueBind(q.Name, bindingKey, cfg.Exchange, false, nil); err != nil {
		return fail("bind queue", err)
	}
	return &AMQPConsumer{conn: conn, ch: ch, queue: q.Name, handler: h}, nil
}

// Run consumes until ctx is cancelled or the broker closes the connection.
// Deliveries are handled one at a time in arrival order.
func (c *AMQPConsumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("events: consume %q: %w", c.queue, err)
	}
	closed := c.conn.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-closed:
			if err == nil {
				return nil
			}
			return err
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.dispatch(ctx, d)
		}
	}
}

// Close releases the channel and connection.
func (c *AMQPConsumer) Close() error {
	var first error
	if c.ch != nil {
		first = c.ch.Close()
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// dispatch decodes and handles one delivery. Undecodable messages are
// rejected without requeue; a failed handler gets one redelivery.
func (c *AMQPConsumer) dispatch(ctx context.Context, d amqp.Delivery) {
	e, err := decode(d.Body)
	if err != nil {
		log.Warn().Err(err).Str("message_id", d.MessageId).Msg("dropping undecodable event")
		_ = d.Nack(false, false)
		return
	}
	if err := c.handler.Handle(ctx, e); err != nil {
		observability.EventsTotal.WithLabelValues(string(e.Type), "failed").Inc()
		requeue := !d.Redelivered
		log.Warn().Err(err).Str("event_id", e.ID).Str("event_type", string(e.Type)).Bool("requeue", requeue).Msg("event handling failed")
		_ = d.Nack(false, requeue)
		return
	}
	observability.EventsTotal.WithLabelValues(string(e.Type), "handled").Inc()
	_ = d.Ack(false)
}

func encode(e Event) (amqp.Publishing, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("events: encode %s: %w", e.Type, err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.ID,
		Timestamp:    e.OccurredAt,
		Type:         string(e.Type),
		Body:         body,
	}, nil
}

func decode(body []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return Event{}, fmt.Errorf("events: decode: %w", err)
	}
	if e.Type == "" {
		return Event{}, fmt.Errorf("events: decode: missing type")
	}
	return e, nil
}
