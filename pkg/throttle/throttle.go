// Package throttle locks out login keys after repeated failures.
package throttle

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultMaxFailures = 5
	DefaultLockout     = 15 * time.Minute
	defaultSize        = 10000
)

type entry struct {
	failures    int
	lockedUntil time.Time
}

// Limiter counts failures per key in an expiring LRU. Entries vanish after
// the lockout window, so a key that stops failing is forgotten.
type Limiter struct {
	mu          sync.Mutex
	cache       *expirable.LRU[string, entry]
	maxFailures int
	lockout     time.Duration
	now         func() time.Time
}

// New returns a limiter holding at most size keys.
func New(size, maxFailures int, lockout time.Duration) *Limiter {
	if size <= 0 {
		size = defaultSize
	}
	return &Limiter{
		cache:       expirable.NewLRU[string, entry](size, nil, lockout),
		maxFailures: maxFailures,
		lockout:     lockout,
		now:         time.Now,
	}
}

// NewDefault locks a key for 15 minutes after 5 failures.
func NewDefault() *Limiter {
	return New(defaultSize, DefaultMaxFailures, DefaultLockout)
}

// Key combines the login name and client address.
func Key(username, ip string) string {
	return strings.ToLower(strings.TrimSpace(username)) + "|" + ip
}

// Allow reports whether key may attempt a login, and if not, for how long
// it stays locked.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.cache.Get(key)
	if !ok || e.lockedUntil.IsZero() {
		return true, 0
	}
	if wait := e.lockedUntil.Sub(l.now()); wait > 0 {
		return false, wait
	}
	l.cache.Remove(key)
	return true, 0
}

// Fail records a failed attempt and reports whether key is now locked.
func (l *Limiter) Fail(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, _ := l.cache.Get(key)
	e.failures++
	if e.failures >= l.maxFailures {
		e.lockedUntil = l.now().Add(l.lockout)
	}
	l.cache.Add(key, e)
	return !e.lockedUntil.IsZero()
}

// Reset forgets key after a successful login.
func (l *Limiter) Reset(key string) {
	l.cache.Remove(key)
}
