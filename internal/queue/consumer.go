package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"
)

// ModerationConsumer listens to the car moderation queue and appends one
// line per decision to a log file.
type ModerationConsumer struct {
    URL     string
    Queue   string
    LogPath string
    Log     *logrus.Logger
}

// Run connects to RabbitMQ, declares the queue (durable) and consumes. It
// runs a reconnect loop with exponential backoff and only returns when ctx
// is cancelled. Malformed messages are rejected without requeue so the loop
// keeps going.
func (c *ModerationConsumer) Run(ctx context.Context) error {
    l := c.Log.WithField("component", "moderation-consumer")
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(c.URL)
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
        backoff = time.Second // reset after successful connect

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        l.WithError(err).Warn("consume loop ended; reconnecting")
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *ModerationConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.Log.WithError(err).Warn("moderation-consumer: set QoS failed")
    }
    if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
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
            if err := c.handle(d.Body); err != nil {
                c.Log.WithError(err).Warn("moderation-consumer: handle message failed")
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func (c *ModerationConsumer) handle(body []byte) error {
    var ev CarModeratedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.CarID == 0 || ev.Decision == "" {
        return errors.New("incomplete event")
    }
    return appendLine(c.LogPath, FormatModeration(ev))
}

// FormatModeration renders the single log line written for ev.
func FormatModeration(ev CarModeratedEvent) string {
    line := fmt.Sprintf("[%s] Car %s | car_id=%d | owner_id=%d | admin=%q | title=%q",
        ev.ModeratedAt, ev.Decision, ev.CarID, ev.OwnerID, ev.AdminName, ev.AdTitle)
    if ev.Reason != "" {
        line += fmt.Sprintf(" | reason=%q", ev.Reason)
    }
    if ev.Comment != "" {
        line += fmt.Sprintf(" | comment=%q", ev.Comment)
    }
    return line + "\n"
}

func appendLine(path, line string) error {
    if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// sleep waits d or until ctx ends; false means ctx ended.
func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
