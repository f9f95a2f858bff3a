package ports

import (
	"context"
	"time"
)

// AnalyticsCache memoizes read-only analytics results. Implementations must
// treat misses and backend failures alike: return found=false and let the
// caller recompute.
type AnalyticsCache interface {
	Get(ctx context.Context, key string, dest any) (found bool, err error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}
