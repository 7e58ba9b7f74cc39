package config

import (
	"testing"
	"time"
)

func TestRateLimitConfigNormalizes(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	c := LoadRateLimitConfig()
	if c.Capacity != 1 {
		t.Fatalf("expected capacity clamped to 1, got %d", c.Capacity)
	}
	if c.TTL != 10*time.Second {
		t.Fatalf("expected ttl raised to 5 intervals, got %s", c.TTL)
	}
}

func TestOTPRateLimitDefaults(t *testing.T) {
	c := LoadOTPRateLimitConfig()
	if c.Capacity != 5 || c.RefillInterval != time.Minute || c.KeyStrategy != "ip_route" {
		t.Fatalf("unexpected otp profile: %+v", c)
	}
}

func TestEnvStructLoaders(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "s3")
	t.Setenv("STORAGE_S3_BUCKET", "cars")
	t.Setenv("PRESENCE_BACKEND", "redis")

	s, err := LoadStorageConfig()
	if err != nil {
		t.Fatal(err)
	}
	if s.Type != "s3" || s.S3Bucket != "cars" || s.LocalDir != "uploads" {
		t.Fatalf("unexpected storage config: %+v", s)
	}
	p, err := LoadPresenceConfig()
	if err != nil {
		t.Fatal(err)
	}
	if p.Backend != "redis" || p.TTLSec != 90 {
		t.Fatalf("unexpected presence config: %+v", p)
	}
	c, _ := LoadChatStoreConfig()
	if c.Driver != "sqlite" {
		t.Fatalf("expected sqlite default, got %q", c.Driver)
	}
}

func TestParseMethods(t *testing.T) {
	m := parseMethods(" get, head ,")
	if !m["GET"] || !m["HEAD"] || len(m) != 2 {
		t.Fatalf("unexpected methods: %v", m)
	}
}

func TestRedisTLSVerifiesByDefault(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_TLS", "true")

	c := LoadRedisConfig()
	if c.Addr != "cache.internal:6380" {
		t.Fatalf("unexpected addr %q", c.Addr)
	}
	opts := c.Options()
	if opts.TLSConfig == nil || opts.TLSConfig.InsecureSkipVerify {
		t.Fatalf("expected verified tls, got %+v", opts.TLSConfig)
	}

	t.Setenv("REDIS_TLS_INSECURE", "1")
	if !LoadRedisConfig().Options().TLSConfig.InsecureSkipVerify {
		t.Fatal("expected REDIS_TLS_INSECURE to disable verification")
	}
}

func TestRedisWithoutTLS(t *testing.T) {
	t.Setenv("REDIS_TLS_INSECURE", "1")
	if opts := LoadRedisConfig().Options(); opts.TLSConfig != nil || opts.Addr != "localhost:6379" {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

func TestCacheConfigDefaults(t *testing.T) {
	t.Setenv("CACHE_TTL", "bogus")
	c := LoadCacheConfig()
	if !c.Enabled || !c.Methods["GET"] || c.TTL != 30*time.Second || c.LookupTTL != 10*time.Minute || c.MaxBodyBytes != 1<<20 {
		t.Fatalf("unexpected cache config: %+v", c)
	}
}
