// Package realtime relays chat messages to connected clients over
// websockets and tracks who is online.
package realtime

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Presence records which users hold at least one live connection.
type Presence interface {
	// Join marks conn of userID online. Calling it again refreshes it.
	Join(ctx context.Context, userID uint64, conn string) error
	Leave(ctx context.Context, userID uint64, conn string) error
	Online(ctx context.Context, userID uint64) (bool, error)
}

// MemoryPresence is the in-process registry for single instance deployments.
type MemoryPresence struct {
	mu    sync.Mutex
	conns map[uint64]map[string]struct{}
}

func NewMemoryPresence() *MemoryPresence {
	return &MemoryPresence{conns: make(map[uint64]map[string]struct{})}
}

func (p *MemoryPresence) Join(_ context.Context, userID uint64, conn string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	set, ok := p.conns[userID]
	if !ok {
		set = make(map[string]struct{})
		p.conns[userID] = set
	}
	set[conn] = struct{}{}
	return nil
}

func (p *MemoryPresence) Leave(_ context.Context, userID uint64, conn string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if set, ok := p.conns[userID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(p.conns, userID)
		}
	}
	return nil
}

func (p *MemoryPresence) Online(_ context.Context, userID uint64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns[userID]) > 0, nil
}

// RedisPresence keeps one set of connection ids per user. The key expires
// unless a connection keeps rejoining, so a crashed instance does not leave
// its users online forever.
type RedisPresence struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisPresence returns a registry whose entries live for ttl between
// heartbeats. Connections should rejoin every ttl/2.
func NewRedisPresence(rdb *redis.Client, prefix string, ttl time.Duration) *RedisPresence {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if prefix == "" {
		prefix = "presence"
	}
	return &RedisPresence{rdb: rdb, prefix: prefix, ttl: ttl}
}

// TTL is the heartbeat window.
func (p *RedisPresence) TTL() time.Duration { return p.ttl }

func (p *RedisPresence) key(userID uint64) string {
	return p.prefix + ":" + strconv.FormatUint(userID, 10)
}

func (p *RedisPresence) Join(ctx context.Context, userID uint64, conn string) error {
	key := p.key(userID)
	pipe := p.rdb.TxPipeline()
	pipe.SAdd(ctx, key, conn)
	pipe.Expire(ctx, key, p.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (p *RedisPresence) Leave(ctx context.Context, userID uint64, conn string) error {
	return p.rdb.SRem(ctx, p.key(userID), conn).Err()
}

func (p *RedisPresence) Online(ctx context.Context, userID uint64) (bool, error) {
	n, err := p.rdb.SCard(ctx, p.key(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
