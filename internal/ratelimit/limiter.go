// Package ratelimit counts attempts per identifier in fixed Redis windows.
// Counting fails open: a Redis outage lets the attempt through.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/imadgeboyega/kiekky-events/internal/common/logger"
)

const keyPrefix = "kiekky:quota:"

// Rule is a named quota of Limit attempts per Window.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// BuddyRequestRule caps how many buddy requests one user may send per window.
func BuddyRequestRule(limit int, window time.Duration) Rule {
	return Rule{Name: "buddy_request", Limit: limit, Window: window}
}

func (r Rule) key(identifier string) string {
	return keyPrefix + r.Name + ":" + identifier
}

// Usage is the state of one identifier's window.
type Usage struct {
	Count   int
	ResetIn time.Duration
}

// Allowed reports whether the counted attempts fit the rule.
func (u Usage) Allowed(rule Rule) bool {
	return u.Count <= rule.Limit
}

// Remaining is never negative.
func (u Usage) Remaining(rule Rule) int {
	if u.Count >= rule.Limit {
		return 0
	}
	return rule.Limit - u.Count
}

// Limiter counts attempts in Redis.
type Limiter struct {
	client *redis.Client
	log    *logger.Logger
}

// NewLimiter creates a Limiter backed by client.
func NewLimiter(client *redis.Client, log *logger.Logger) *Limiter {
	return &Limiter{client: client, log: log.With("component", "ratelimit")}
}

// Hit counts one attempt. The increment and the TTL lookup share a
// transaction; a counter without a TTL gets the rule's window.
func (l *Limiter) Hit(ctx context.Context, rule Rule, identifier string) (Usage, error) {
	key := rule.key(identifier)

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return Usage{}, fmt.Errorf("rate limit %s: %w", rule.Name, err)
	}

	usage := Usage{Count: int(incr.Val()), ResetIn: ttl.Val()}
	if usage.ResetIn < 0 {
		if err := l.client.PExpire(ctx, key, rule.Window).Err(); err != nil {
			l.client.Del(ctx, key)
			return Usage{}, fmt.Errorf("rate limit %s: set window: %w", rule.Name, err)
		}
		usage.ResetIn = rule.Window
	}
	return usage, nil
}

// Peek reads the identifier's window without counting an attempt.
func (l *Limiter) Peek(ctx context.Context, rule Rule, identifier string) (Usage, error) {
	key := rule.key(identifier)

	count, err := l.client.Get(ctx, key).Int()
	switch {
	case err == redis.Nil:
		return Usage{}, nil
	case err != nil:
		return Usage{}, fmt.Errorf("rate limit %s: %w", rule.Name, err)
	}

	ttl, err := l.client.PTTL(ctx, key).Result()
	if err != nil {
		return Usage{}, fmt.Errorf("rate limit %s: %w", rule.Name, err)
	}
	return Usage{Count: count, ResetIn: ttl}, nil
}

// Allow counts an attempt and reports whether it fits rule. Errors are
// returned alongside true.
func (l *Limiter) Allow(ctx context.Context, rule Rule, identifier string) (bool, error) {
	usage, err := l.Hit(ctx, rule, identifier)
	if err != nil {
		l.log.Warn("Quota check failed, allowing attempt", "rule", rule.Name, "identifier", identifier, "error", err)
		return true, err
	}
	if !usage.Allowed(rule) {
		l.log.Debug("Quota exhausted", "rule", rule.Name, "identifier", identifier, "reset_in", usage.ResetIn)
	}
	return usage.Allowed(rule), nil
}

// RuleLimiter binds a Limiter to one rule.
type RuleLimiter struct {
	limiter *Limiter
	rule    Rule
}

// For binds l to rule.
func (l *Limiter) For(rule Rule) *RuleLimiter {
	return &RuleLimiter{limiter: l, rule: rule}
}

// Allow counts an attempt by identifier against the bound rule.
func (r *RuleLimiter) Allow(ctx context.Context, identifier string) (bool, error) {
	return r.limiter.Allow(ctx, r.rule, identifier)
}
