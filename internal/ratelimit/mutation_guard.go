package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/benangcapital/benang/internal/config"
)

const (
	keyMutationRate = "benang:mutation:rate:%s"
	keyMutationLock = "benang:mutation:lock:%s"
)

// MutationGuard throttles balance-mutating requests per investor and
// holds a short SETNX lock around each one, so double-submitted forms
// and impatient retries never reach the engines concurrently. Disabled
// when redis is not configured; the database unique indexes remain the
// hard idempotency line.
type MutationGuard struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	rate    float64
	burst   int
	lockTTL time.Duration
}

func NewMutationGuard(cfg config.Config) (*MutationGuard, error) {
	if !cfg.RateLimitEnabled {
		return nil, nil
	}

	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if cfg.MutationRate <= 0 || cfg.MutationBurst <= 0 {
		return nil, errors.New("mutation rate limit must be positive")
	}
	if cfg.MutationLockTTL <= 0 {
		return nil, errors.New("mutation lock ttl must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})

	return &MutationGuard{
		enabled: true,
		bucket:  NewTokenBucket(client),
		locker:  NewLocker(client),
		rate:    cfg.MutationRate,
		burst:   cfg.MutationBurst,
		lockTTL: cfg.MutationLockTTL,
	}, nil
}

func (g *MutationGuard) Enabled() bool {
	return g != nil && g.enabled
}

func (g *MutationGuard) AllowInvestor(ctx context.Context, investorID string) (*Result, error) {
	if !g.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return g.bucket.Allow(ctx, fmt.Sprintf(keyMutationRate, strings.TrimSpace(investorID)), g.rate, g.burst)
}

func (g *MutationGuard) TryLockInvestor(ctx context.Context, investorID string) (string, bool, error) {
	if !g.Enabled() {
		return "", true, nil
	}
	return g.locker.TryLock(ctx, fmt.Sprintf(keyMutationLock, strings.TrimSpace(investorID)), g.lockTTL)
}

func (g *MutationGuard) ReleaseInvestor(ctx context.Context, investorID, token string) error {
	if !g.Enabled() {
		return nil
	}
	return g.locker.Release(ctx, fmt.Sprintf(keyMutationLock, strings.TrimSpace(investorID)), token)
}
