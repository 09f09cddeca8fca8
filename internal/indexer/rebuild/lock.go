package rebuild

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/redis"
)

// Locker hands out named exclusive locks. Acquire fails fast with
// apperrors.ErrRebuildInProgress when the lock is held.
type Locker interface {
	Acquire(ctx context.Context, name string) (release func(), err error)
}

// LocalLocker serializes rebuilds within one process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocalLocker creates an in-process Locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sync.Mutex)}
}

// Acquire implements Locker.
func (l *LocalLocker) Acquire(_ context.Context, name string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[name]
	if !ok {
		m = &sync.Mutex{}
		l.locks[name] = m
	}
	l.mu.Unlock()
	if !m.TryLock() {
		return nil, fmt.Errorf("lock %s: %w", name, apperrors.ErrRebuildInProgress)
	}
	return m.Unlock, nil
}

// LeaseStore is the subset of the Redis client used for leases.
type LeaseStore interface {
	AcquireLease(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	RenewLease(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, key, token string) error
}

var _ LeaseStore = (*redis.Client)(nil)

// RedisLocker serializes rebuilds across processes with a token-guarded
// Redis lease (SET NX PX). The holder renews the lease every third of the TTL
// until it releases it, so the TTL only bounds how long a crashed holder can
// block others.
type RedisLocker struct {
	store  LeaseStore
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisLocker creates a Locker backed by store.
func NewRedisLocker(store LeaseStore, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		store:  store,
		ttl:    ttl,
		logger: slog.Default().With("component", "rebuild-lock"),
	}
}

// Acquire implements Locker.
func (l *RedisLocker) Acquire(ctx context.Context, name string) (func(), error) {
	key := "lock:" + name
	token := uuid.NewString()
	ok, err := l.store.AcquireLease(ctx, key, token, l.ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("lock %s: %w", name, apperrors.ErrRebuildInProgress)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(key, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := l.store.ReleaseLease(releaseCtx, key, token); err != nil {
				l.logger.Warn("failed to release rebuild lease", "key", key, "error", err)
			}
		})
	}, nil
}

func (l *RedisLocker) keepAlive(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(max(l.ttl/3, 10*time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), max(l.ttl/3, time.Second))
			held, err := l.store.RenewLease(ctx, key, token, l.ttl)
			cancel()
			switch {
			case err != nil:
				l.logger.Warn("failed to renew rebuild lease", "key", key, "error", err)
			case !held:
				l.logger.Error("rebuild lease lost, another rebuild may start", "key", key)
				return
			}
		}
	}
}
