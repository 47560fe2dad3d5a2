// Package memory holds process-local repository implementations used when
// Redis is not wanted, mostly in tests.
package memory

import (
	"context"
	"sync"
)

// SentLog is an in-process repository.SentLog.
type SentLog struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewSentLog creates an empty sent log.
func NewSentLog() *SentLog {
	return &SentLog{seen: make(map[string]struct{})}
}

func (l *SentLog) Claim(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[key]; ok {
		return false, nil
	}
	l.seen[key] = struct{}{}
	return true, nil
}
