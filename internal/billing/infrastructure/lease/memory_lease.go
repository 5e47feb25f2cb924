package lease

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	billing "gas-billing/internal/billing/domain"
)

type heldLease struct {
	owner     string
	expiresAt time.Time
}

// MemoryLeaser grants leases within one process.
type MemoryLeaser struct {
	mu   sync.Mutex
	held map[string]heldLease
	now  func() time.Time
}

// NewMemoryLeaser constructs an in-process leaser.
func NewMemoryLeaser() *MemoryLeaser {
	return &MemoryLeaser{
		held: make(map[string]heldLease),
		now:  time.Now,
	}
}

// TryAcquire owns key for ttl unless an unexpired lease holds it.
func (l *MemoryLeaser) TryAcquire(ctx context.Context, key string, ttl time.Duration) (billing.Lease, bool, error) {
	_ = ctx
	if key == "" {
		return nil, false, errors.New("memory leaser: empty key")
	}
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}

	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if current, ok := l.held[key]; ok && now.Before(current.expiresAt) {
		return nil, false, nil
	}
	owner := uuid.NewString()
	l.held[key] = heldLease{owner: owner, expiresAt: now.Add(ttl)}
	return &memoryLease{leaser: l, key: key, owner: owner}, true, nil
}

func (l *MemoryLeaser) release(key, owner string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if current, ok := l.held[key]; ok && current.owner == owner {
		delete(l.held, key)
	}
}

type memoryLease struct {
	leaser *MemoryLeaser
	key    string
	owner  string
}

func (l *memoryLease) Release(ctx context.Context) error {
	_ = ctx
	l.leaser.release(l.key, l.owner)
	return nil
}
