package queue

import (
    "context"
    "os"
    "path/filepath"
    "strings"
    "testing"

    "github.com/iliyamo/car-marketplace/internal/logging"
)

func TestFormatModeration(t *testing.T) {
    tests := []struct {
        name string
        ev   CarModeratedEvent
        want []string
        not  []string
    }{
        {
            name: "approved",
            ev:   CarModeratedEvent{CarID: 4, OwnerID: 2, AdminName: "root", Decision: "approved", AdTitle: "Civic", ModeratedAt: "t"},
            want: []string{"Car approved", "car_id=4", "owner_id=2", `admin="root"`},
            not:  []string{"reason="},
        },
        {
            name: "rejected with reason",
            ev:   CarModeratedEvent{CarID: 5, Decision: "rejected", Reason: "blurry photos", Comment: "retake"},
            want: []string{"Car rejected", `reason="blurry photos"`, `comment="retake"`},
        },
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            got := FormatModeration(tt.ev)
            if !strings.HasSuffix(got, "\n") {
                t.Errorf("line must end with newline: %q", got)
            }
            for _, w := range tt.want {
                if !strings.Contains(got, w) {
                    t.Errorf("missing %q in %q", w, got)
                }
            }
            for _, n := range tt.not {
                if strings.Contains(got, n) {
                    t.Errorf("unexpected %q in %q", n, got)
                }
            }
        })
    }
}

func TestModerationConsumerHandleAppends(t *testing.T) {
    path := filepath.Join(t.TempDir(), "logs", "moderation.log")
    c := &ModerationConsumer{LogPath: path, Log: logging.Discard()}

    if err := c.handle([]byte(`{"car_id":1,"decision":"approved"}`)); err != nil {
        t.Fatal(err)
    }
    if err := c.handle([]byte(`{"car_id":2,"decision":"rejected","reason":"spam"}`)); err != nil {
        t.Fatal(err)
    }
    if err := c.handle([]byte(`not json`)); err == nil {
        t.Fatal("expected error for malformed body")
    }
    if err := c.handle([]byte(`{"decision":"approved"}`)); err == nil {
        t.Fatal("expected error for missing car id")
    }

    b, err := os.ReadFile(path)
    if err != nil {
        t.Fatal(err)
    }
    if lines := strings.Count(string(b), "\n"); lines != 2 {
        t.Fatalf("expected 2 lines, got %d: %s", lines, b)
    }
}

func TestDisabledPublisherIsNoop(t *testing.T) {
    p := NewPublisher("", "q", "x", logging.Discard())
    if p.Enabled() {
        t.Fatal("empty url must disable the publisher")
    }
    if err := p.PublishCarModerated(context.Background(), CarModeratedEvent{CarID: 1}); err != nil {
        t.Fatal(err)
    }
    var nilPub *Publisher
    if err := nilPub.PublishChat(context.Background(), ChatEvent{}); err != nil {
        t.Fatal(err)
    }
}
