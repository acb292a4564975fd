package bucketing

import (
	"testing"
	"time"

	"attendance-service/internal/config"

	"github.com/stretchr/testify/assert"
)

func testManager() *Manager {
	cfg := &config.Config{}
	cfg.Bucketing.EmployeeBuckets = 64
	cfg.Bucketing.EventBuckets = 16
	return NewManager(cfg)
}

func TestEmployeeBucketStable(t *testing.T) {
	m := testManager()
	first := m.EmployeeBucket("emp-001")
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, m.EmployeeBucket("emp-001"))
	}
}

func TestEmployeeBucketInRange(t *testing.T) {
	m := testManager()
	ids := []string{"emp-001", "emp-002", "a", "", "very-long-employee-identifier-string"}
	for _, id := range ids {
		b := m.EmployeeBucket(id)
		assert.GreaterOrEqual(t, b, 0)
		assert.Less(t, b, 64)
	}
}

func TestEventBucketInRange(t *testing.T) {
	m := testManager()
	b := m.EventBucket("emp-001")
	assert.GreaterOrEqual(t, b, 0)
	assert.Less(t, b, 16)
}

func TestDateBucket(t *testing.T) {
	m := testManager()
	ts := time.Date(2026, 3, 2, 23, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
	assert.Equal(t, "2026-03-02", m.DateBucket(ts))
}
