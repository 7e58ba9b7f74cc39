package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"
)

// ChatFanout subscribes this instance to the chat exchange through an
// exclusive auto-deleted queue and hands every event from other instances
// to Deliver.
type ChatFanout struct {
    URL      string
    Exchange string
    Origin   string
    Deliver  func(ChatEvent)
    Log      *logrus.Logger
}

// Run consumes until ctx is cancelled, reconnecting with backoff.
func (f *ChatFanout) Run(ctx context.Context) error {
    l := f.Log.WithField("component", "chat-fanout")
    backoff := time.Second
    for {
        conn, err := amqp.Dial(f.URL)
        if err != nil {
            l.WithError(err).Warnf("failed to dial broker; retrying in %s", backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = f.consume(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        l.WithError(err).Warn("fanout loop ended; reconnecting")
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (f *ChatFanout) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.ExchangeDeclare(f.Exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
        return fmt.Errorf("exchange declare: %w", err)
    }
    q, err := ch.QueueDeclare("", false, true, true, false, nil)
    if err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    if err := ch.QueueBind(q.Name, "", f.Exchange, false, nil); err != nil {
        return fmt.Errorf("queue bind: %w", err)
    }
    msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            var ev ChatEvent
            if err := json.Unmarshal(d.Body, &ev); err != nil {
                f.Log.WithError(err).Warn("chat-fanout: bad event")
                continue
            }
            if ev.Origin == f.Origin {
                continue
            }
            f.Deliver(ev)
        }
    }
}
