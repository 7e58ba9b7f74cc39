package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func checkPresence(t *testing.T, p Presence) {
	t.Helper()
	ctx := context.Background()
	if on, _ := p.Online(ctx, 7); on {
		t.Fatal("user online before joining")
	}
	if err := p.Join(ctx, 7, "a"); err != nil {
		t.Fatal(err)
	}
	if err := p.Join(ctx, 7, "b"); err != nil {
		t.Fatal(err)
	}
	if err := p.Leave(ctx, 7, "a"); err != nil {
		t.Fatal(err)
	}
	if on, err := p.Online(ctx, 7); err != nil || !on {
		t.Fatalf("second connection should keep user online (err=%v)", err)
	}
	if err := p.Leave(ctx, 7, "b"); err != nil {
		t.Fatal(err)
	}
	if on, _ := p.Online(ctx, 7); on {
		t.Fatal("user online after last leave")
	}
}

func TestMemoryPresence(t *testing.T) {
	checkPresence(t, NewMemoryPresence())
}

func TestRedisPresence(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	checkPresence(t, NewRedisPresence(rdb, "presence", time.Minute))
}

func TestRedisPresenceExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	p := NewRedisPresence(rdb, "", 30*time.Second)
	ctx := context.Background()

	if err := p.Join(ctx, 3, "x"); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(20 * time.Second)
	if err := p.Join(ctx, 3, "x"); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(20 * time.Second)
	if on, _ := p.Online(ctx, 3); !on {
		t.Fatal("heartbeat should have extended presence")
	}
	mr.FastForward(31 * time.Second)
	if on, _ := p.Online(ctx, 3); on {
		t.Fatal("presence should expire without heartbeat")
	}
}
