// service/limiter_service.go
package service

import (
	"sync"

	"go.uber.org/zap"

	logger "github.com/calltoleap/gatekeeper/logging"
)

// AttemptLimiter throttles verification submissions per identity. The
// counter map is process-local and volatile: it only resets through the
// administrative operations or a restart, never by time. Shared across
// concurrent intake invocations, so every access is mutex-guarded.
type AttemptLimiter struct {
	mu       sync.Mutex
	attempts map[string]int
	max      int
}

func NewAttemptLimiter(max int) *AttemptLimiter {
	return &AttemptLimiter{
		attempts: make(map[string]int),
		max:      max,
	}
}

// TryConsume counts one submission for identity and reports whether it is
// still within the threshold.
func (l *AttemptLimiter) TryConsume(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.attempts[identity] >= l.max {
		return false
	}
	l.attempts[identity]++
	return true
}

// Attempts returns the current count for identity.
func (l *AttemptLimiter) Attempts(identity string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts[identity]
}

// Reset clears the counter for one identity.
func (l *AttemptLimiter) Reset(identity string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, identity)
	logger.Info("Attempt counter reset", zap.String("identity", identity))
}

// ResetAll clears the counters for every listed identity.
func (l *AttemptLimiter) ResetAll(identities []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, identity := range identities {
		delete(l.attempts, identity)
	}
	logger.Info("Attempt counters reset", zap.Int("count", len(identities)))
}
