package bufferstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a read-through byte cache in front of another Store.
// Cache failures degrade to the inner store, never to the client.
type RedisCache struct {
	inner     Store
	client    redis.UniversalClient
	ttl       time.Duration
	keyPrefix string
	logf      func(format string, args ...any)
}

func NewRedisCache(inner Store, client redis.UniversalClient, ttl time.Duration, keyPrefix string, logf func(format string, args ...any)) (*RedisCache, error) {
	if inner == nil {
		return nil, fmt.Errorf("inner store is required")
	}
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if strings.TrimSpace(keyPrefix) == "" {
		keyPrefix = "pixelgate:buffer"
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &RedisCache{
		inner:     inner,
		client:    client,
		ttl:       ttl,
		keyPrefix: keyPrefix,
		logf:      logf,
	}, nil
}

func (c *RedisCache) Get(ctx context.Context, uri string) (Object, error) {
	hit := false
	obj, err := GetWith(ctx, c.inner, uri, func(ctx context.Context, uri string) (Object, bool, error) {
		obj, ok := c.lookup(ctx, uri)
		hit = ok
		return obj, ok, nil
	})
	if err != nil || hit {
		return obj, err
	}
	c.writeBack(ctx, uri, obj)
	return obj, nil
}

// lookup is the cache-side intercept. A cache read error degrades to a
// miss so the fetch falls through to the inner store.
func (c *RedisCache) lookup(ctx context.Context, uri string) (Object, bool) {
	fields, err := c.client.HGetAll(ctx, c.keyPrefix+":"+uri).Result()
	if err != nil {
		c.logf("buffer cache read failed uri=%s err=%v", uri, err)
		return Object{}, false
	}
	data, ok := fields["bytes"]
	if !ok {
		return Object{}, false
	}
	return Object{Bytes: []byte(data), ContentType: fields["content_type"]}, true
}

func (c *RedisCache) writeBack(ctx context.Context, uri string, obj Object) {
	key := c.keyPrefix + ":" + uri
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, "bytes", obj.Bytes, "content_type", obj.ContentType)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logf("buffer cache write failed uri=%s err=%v", uri, err)
	}
}
