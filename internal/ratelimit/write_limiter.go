package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/portyard/internal/config"
)

const keyWritePrincipal = "portyard:ratelimit:write:%s"

// gcraScript keeps one theoretical arrival time (ms) per key. ARGV[1] is the
// emission interval and ARGV[2] the burst, both integers. It returns
// {allowed, remaining, retry_after_ms}.
const gcraScript = `
local interval = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local t = redis.call("TIME")
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)
local tat = tonumber(redis.call("GET", KEYS[1]))
if tat == nil or tat < now then
  tat = now
end
local next_tat = tat + interval
local allow_at = next_tat - interval * burst
if now < allow_at then
  return {0, 0, allow_at - now}
end
redis.call("SET", KEYS[1], next_tat, "PX", next_tat - now)
return {1, math.floor((interval * burst - (next_tat - now)) / interval), 0}
`

var script = redis.NewScript(gcraScript)

type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// WriteLimiter throttles mutating API calls per principal. A nil limiter
// allows everything.
type WriteLimiter struct {
	client   *redis.Client
	interval int64
	burst    int
}

func NewWriteLimiter(cfg config.Config, client *redis.Client) (*WriteLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if client == nil {
		return nil, errors.New("rate limit requires REDIS_ADDR")
	}
	if limitCfg.WriteRate <= 0 || limitCfg.WriteBurst <= 0 {
		return nil, errors.New("write rate limit must be positive")
	}
	return &WriteLimiter{
		client:   client,
		interval: int64(math.Max(1, math.Ceil(1000/limitCfg.WriteRate))),
		burst:    limitCfg.WriteBurst,
	}, nil
}

func (l *WriteLimiter) Enabled() bool {
	return l != nil && l.client != nil
}

func (l *WriteLimiter) AllowWrite(ctx context.Context, principal string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	principal = strings.ToLower(strings.TrimSpace(principal))
	if principal == "" {
		principal = "guest"
	}

	res, err := script.Run(ctx, l.client, []string{fmt.Sprintf(keyWritePrincipal, principal)}, l.interval, l.burst).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("write rate limit: %w", err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("write rate limit: unexpected reply %v", res)
	}
	return &RateLimitResult{
		Allowed:    res[0] == 1,
		Limit:      l.burst,
		Remaining:  int(max(res[1], 0)),
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}
