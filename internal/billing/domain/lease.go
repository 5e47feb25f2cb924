package billing

import (
	"context"
	"time"
)

// Lease is an exclusive hold on a key, released when the holder is done.
type Lease interface {
	Release(ctx context.Context) error
}

// Leaser grants leases. TryAcquire reports false when the key is already held.
type Leaser interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error)
}

// RunLeaseKey is the lease key guarding billing runs of a period.
func RunLeaseKey(period Period) string {
	return "billing:run:" + period.String()
}
