package queue

import (
    "context"
    "encoding/json"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"
)

// Publisher sends domain events to RabbitMQ. A Publisher with an empty URL
// is disabled and every Publish call is a no-op, so callers never need to
// check whether a broker is configured. Errors are logged and returned to
// allow callers to ignore failures without interrupting the request flow.
type Publisher struct {
    url             string
    moderationQueue string
    chatExchange    string
    log             *logrus.Logger
}

// NewPublisher builds a publisher for the given broker URL and names.
func NewPublisher(url, moderationQueue, chatExchange string, log *logrus.Logger) *Publisher {
    return &Publisher{url: url, moderationQueue: moderationQueue, chatExchange: chatExchange, log: log}
}

// Enabled reports whether a broker is configured.
func (p *Publisher) Enabled() bool { return p != nil && p.url != "" }

// PublishCarModerated sends ev to the durable moderation queue.
func (p *Publisher) PublishCarModerated(ctx context.Context, ev CarModeratedEvent) error {
    if !p.Enabled() {
        return nil
    }
    return p.publish(ctx, func(ch *amqp.Channel) (string, string, error) {
        // Durable so messages survive broker restarts.
        _, err := ch.QueueDeclare(p.moderationQueue, true, false, false, false, nil)
        return "", p.moderationQueue, err
    }, ev, amqp.Persistent)
}

// PublishChat broadcasts ev on the chat fanout exchange. Chat deliveries are
// transient: a message is already persisted before it is pushed.
func (p *Publisher) PublishChat(ctx context.Context, ev ChatEvent) error {
    if !p.Enabled() {
        return nil
    }
    return p.publish(ctx, func(ch *amqp.Channel) (string, string, error) {
        err := ch.ExchangeDeclare(p.chatExchange, amqp.ExchangeFanout, true, false, false, false, nil)
        return p.chatExchange, "", err
    }, ev, amqp.Transient)
}

// publish dials, declares the topology via declare and sends one JSON
// message.
func (p *Publisher) publish(ctx context.Context, declare func(*amqp.Channel) (string, string, error), event any, mode uint8) error {
    l := p.log.WithField("component", "publisher")
    conn, err := amqp.Dial(p.url)
    if err != nil {
        l.WithError(err).Warn("rabbitmq: dial failed")
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        l.WithError(err).Warn("rabbitmq: channel open failed")
        return err
    }
    defer func() { _ = ch.Close() }()

    exchange, key, err := declare(ch)
    if err != nil {
        l.WithError(err).Warn("rabbitmq: declare failed")
        return err
    }

    body, err := json.Marshal(event)
    if err != nil {
        l.WithError(err).Warn("rabbitmq: marshal event failed")
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: mode,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, exchange, key, false, false, pub); err != nil {
        l.WithError(err).Warn("rabbitmq: publish failed")
        return err
    }
    return nil
}
