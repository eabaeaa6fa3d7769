package lock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTimeout = errors.New("lock wait timed out")
	ErrNotHeld = errors.New("lock not held")
)

// Locker hands out a token per successful Lock. Unlock only releases the key
// while it is still held under that token, so a holder whose TTL ran out cannot
// free a lock someone else has since taken.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

type heldKey struct {
	key   string
	token string
}

// Acquire takes every key in sorted order, retrying each one every poll until
// wait has elapsed. On failure the keys already held are released.
func Acquire(ctx context.Context, l Locker, keys []string, ttl, wait, poll time.Duration) (func(context.Context) error, error) {
	const op = "lock.Acquire"

	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	if poll <= 0 {
		poll = 10 * time.Millisecond
	}
	deadline := time.Now().Add(wait)

	held := make([]heldKey, 0, len(sorted))
	release := func(ctx context.Context) error {
		var errs []error
		for i := len(held) - 1; i >= 0; i-- {
			if err := l.Unlock(ctx, held[i].key, held[i].token); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	abort := func(err error) (func(context.Context) error, error) {
		_ = release(context.WithoutCancel(ctx))
		return nil, err
	}

	for i, key := range sorted {
		if i > 0 && key == sorted[i-1] {
			continue
		}
		for {
			token, ok, err := l.Lock(ctx, key, ttl)
			if err != nil {
				return abort(fmt.Errorf("%s: %w", op, err))
			}
			if ok {
				held = append(held, heldKey{key: key, token: token})
				break
			}

			remaining := time.Until(deadline)
			if remaining <= 0 {
				return abort(fmt.Errorf("%s: %s: %w", op, key, ErrTimeout))
			}
			timer := time.NewTimer(min(poll, remaining))
			select {
			case <-ctx.Done():
				timer.Stop()
				return abort(ctx.Err())
			case <-timer.C:
			}
		}
	}

	return release, nil
}

// LocalLock is an in-process Locker for single-instance deployments.
type LocalLock struct {
	mu       sync.Mutex
	now      func() time.Time
	newToken func() string
	entries  map[string]localEntry
}

type localEntry struct {
	token string
	until time.Time
}

func NewLocalLock() *LocalLock {
	return &LocalLock{
		now:      time.Now,
		newToken: uuid.NewString,
		entries:  make(map[string]localEntry),
	}
}

func (l *LocalLock) Lock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.entries[key]; ok && now.Before(e.until) {
		return "", false, nil
	}
	token := l.newToken()
	l.entries[key] = localEntry{token: token, until: now.Add(ttl)}
	return token, true, nil
}

func (l *LocalLock) Unlock(ctx context.Context, key, token string) error {
	const op = "lock.LocalLock.Unlock"

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || e.token != token {
		return fmt.Errorf("%s: %s: %w", op, key, ErrNotHeld)
	}
	delete(l.entries, key)
	if !l.now().Before(e.until) {
		return fmt.Errorf("%s: %s expired: %w", op, key, ErrNotHeld)
	}
	return nil
}
