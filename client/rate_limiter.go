package client

import (
	"io"
	"sync"
	"time"
)

// RateLimiter is a token bucket shared by every reader it wraps.
type RateLimiter struct {
	mu     sync.Mutex
	rate   int64   // bytes per second
	tokens float64 // current available tokens
	last   time.Time
}

// NewRateLimiter returns a limiter allowing bytesPerSecond. A non-positive
// rate returns nil, which Reader treats as unlimited.
func NewRateLimiter(bytesPerSecond int64) *RateLimiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	return &RateLimiter{rate: bytesPerSecond, tokens: float64(bytesPerSecond), last: time.Now()}
}

// SetRate changes the limit, capping buffered tokens to the new rate.
func (l *RateLimiter) SetRate(bytesPerSecond int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rate = bytesPerSecond
	if l.tokens > float64(bytesPerSecond) {
		l.tokens = float64(bytesPerSecond)
	}
	l.last = time.Now()
}

// Reader wraps r so reads are throttled by the limiter.
func (l *RateLimiter) Reader(r io.Reader) io.Reader {
	if l == nil {
		return r
	}
	return &limitedReader{under: r, lim: l}
}

type limitedReader struct {
	under io.Reader
	lim   *RateLimiter
}

func (lr *limitedReader) Read(p []byte) (int, error) {
	for {
		allowed, wait := lr.lim.take(len(p))
		if allowed < 0 {
			return lr.under.Read(p)
		}
		if allowed > 0 {
			n, err := lr.under.Read(p[:allowed])
			lr.lim.spend(n)
			return n, err
		}
		time.Sleep(wait)
	}
}

// take refills the bucket and reports how many bytes may be read now. A
// negative count means no limit applies; zero means wait and try again.
func (l *RateLimiter) take(want int) (int, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rate <= 0 {
		return -1, 0
	}
	now := time.Now()
	if elapsed := now.Sub(l.last).Seconds(); elapsed > 0 {
		l.tokens += elapsed * float64(l.rate)
		if maxTokens := float64(l.rate); l.tokens > maxTokens {
			l.tokens = maxTokens
		}
		l.last = now
	}

	allowed := int(l.tokens)
	if allowed <= 0 {
		return 0, time.Duration(float64(time.Second) / float64(l.rate))
	}
	if want < allowed {
		allowed = want
	}
	return allowed, 0
}

func (l *RateLimiter) spend(n int) {
	if n <= 0 {
		return
	}
	l.mu.Lock()
	l.tokens -= float64(n)
	l.mu.Unlock()
}
