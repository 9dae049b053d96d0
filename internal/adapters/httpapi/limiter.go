package httpapi

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultLimiterTTL    = 10 * time.Minute
	defaultCleanupPeriod = time.Minute
	defaultLimiterRPS    = 2.0
	defaultLimiterBurst  = 10
)

// limiterPool is a per-identity token-bucket pool. A limiter is created on
// first use for a key and evicted once it has been idle for ttl.
type limiterPool struct {
	mu            sync.Mutex
	m             map[string]*limiterEntry
	rps           rate.Limit
	burst         int
	ttl           time.Duration
	cleanupPeriod time.Duration
	now           func() time.Time

	startCleanup sync.Once
	stopOnce     sync.Once
	stop         chan struct{}
}

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if rps <= 0 {
		rps = defaultLimiterRPS
	}
	if burst <= 0 {
		burst = defaultLimiterBurst
	}
	return &limiterPool{
		m:             make(map[string]*limiterEntry),
		rps:           rate.Limit(rps),
		burst:         burst,
		ttl:           defaultLimiterTTL,
		cleanupPeriod: defaultCleanupPeriod,
		now:           time.Now,
		stop:          make(chan struct{}),
	}
}

// get returns the limiter for key, creating one if missing. The cleanup
// goroutine starts on first use.
func (p *limiterPool) get(key string) *rate.Limiter {
	p.startCleanup.Do(func() {
		go p.cleanupLoop()
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.m[key]; ok {
		e.lastSeen = p.now()
		return e.l
	}

	l := rate.NewLimiter(p.rps, p.burst)
	p.m[key] = &limiterEntry{l: l, lastSeen: p.now()}
	return l
}

// Allow reports whether a request for key may proceed now.
func (p *limiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

// Stop ends the cleanup goroutine.
func (p *limiterPool) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *limiterPool) cleanupLoop() {
	ticker := time.NewTicker(p.cleanupPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.evictIdle()
		}
	}
}

// evictIdle drops limiters not seen within ttl.
func (p *limiterPool) evictIdle() {
	cutoff := p.now().Add(-p.ttl)
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, e := range p.m {
		if e.lastSeen.Before(cutoff) {
			delete(p.m, k)
		}
	}
}

func (p *limiterPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}
