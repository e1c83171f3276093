package cache

import (
	"context"
	"time"
)

// Pruner is anything that can drop its stale entries.
type Pruner interface {
	Prune()
}

// RunJanitor prunes p every interval until ctx is done, so expired entries
// are released even when nobody reads the cache. Call it in its own goroutine.
func RunJanitor(ctx context.Context, p Pruner, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTTL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune()
		}
	}
}
