package bucketing

import (
	"hash"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"attendance-service/internal/config"
)

// Manager assigns consistent buckets for Scylla partition keys and audit
// event sharding. Bucketing keeps wide rows (one employee's full history)
// from concentrating on a single partition range.
type Manager struct {
	employeeBuckets int
	eventBuckets    int
	hasherPool      sync.Pool
}

func NewManager(cfg *config.Config) *Manager {
	m := &Manager{
		employeeBuckets: cfg.Bucketing.EmployeeBuckets,
		eventBuckets:    cfg.Bucketing.EventBuckets,
	}

	// Pool of hashers avoids allocation on the check-in hot path.
	m.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New64()
		},
	}

	return m
}

// EmployeeBucket returns the stable bucket for an employee id
// (0 to employeeBuckets-1).
func (m *Manager) EmployeeBucket(employeeID string) int {
	return m.getBucket(employeeID, m.employeeBuckets)
}

// EventBucket returns the bucket for audit events.
func (m *Manager) EventBucket(identifier string) int {
	return m.getBucket(identifier, m.eventBuckets)
}

// DateBucket returns the UTC calendar-date bucket.
func (m *Manager) DateBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func (m *Manager) getBucket(key string, numBuckets int) int {
	if numBuckets <= 0 {
		return 0
	}
	return int(m.getHash(key) % uint64(numBuckets))
}

func (m *Manager) getHash(key string) uint64 {
	hasher := m.hasherPool.Get().(hash.Hash64)
	defer m.hasherPool.Put(hasher)

	hasher.Reset()
	hasher.Write([]byte(key))
	return hasher.Sum64()
}
