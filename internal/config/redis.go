package config

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig backs rate limiting, response caching and shared chat presence.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	TLS         bool
	TLSInsecure bool // skip certificate checks; local tunnels only
	PingTimeout time.Duration
}

// LoadRedisConfig reads REDIS_* variables. REDIS_HOST and REDIS_PORT
// together override REDIS_ADDR.
func LoadRedisConfig() RedisConfig {
	addr := envStr("REDIS_ADDR", "localhost:6379")
	if host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); host != "" && port != "" {
		addr = net.JoinHostPort(host, port)
	}
	return RedisConfig{
		Addr:        addr,
		Password:    envStr("REDIS_PASSWORD", ""),
		DB:          envInt("REDIS_DB", 0),
		TLS:         envBool("REDIS_TLS", false),
		TLSInsecure: envBool("REDIS_TLS_INSECURE", false),
		PingTimeout: envDur("REDIS_PING_TIMEOUT", 2*time.Second),
	}
}

// Options converts the config into go-redis client options.
func (c RedisConfig) Options() *redis.Options {
	opts := &redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB}
	if c.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		if c.TLSInsecure {
			opts.TLSConfig.InsecureSkipVerify = true
		}
	}
	return opts
}

// NewRedisClient connects with the environment settings. It returns nil when
// the server does not answer a ping; callers then run without Redis.
func NewRedisClient() *redis.Client {
	cfg := LoadRedisConfig()
	client := redis.NewClient(cfg.Options())
	ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
