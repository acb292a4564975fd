package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"attendance-service/internal/bucketing"
	"attendance-service/internal/client"
	"attendance-service/internal/models"
	"attendance-service/internal/util"
)

const insertEventsSQL = `INSERT INTO attendance_security_events
	(event_bucket, employee_id, event_date, event_time, event_type, risk_score, risk_level, passed, details)`

const (
	flushInterval = 2 * time.Second
	flushSize     = 64
)

// Recorder buffers security audit events and batch-inserts them into
// ClickHouse. Writes are best-effort; a failed flush is logged and the
// batch is dropped rather than retried into the request path.
type Recorder struct {
	ch       *client.ClickHouseClient
	buckets  *bucketing.Manager
	mu       sync.Mutex
	pending  []models.SecurityEvent
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewRecorder(ch *client.ClickHouseClient, buckets *bucketing.Manager) *Recorder {
	r := &Recorder{
		ch:      ch,
		buckets: buckets,
		stopCh:  make(chan struct{}),
	}
	r.wg.Add(1)
	go r.loop()
	return r
}

// RecordAssessment queues an audit row for one scored check-in attempt.
func (r *Recorder) RecordAssessment(employeeID string, at time.Time, eventType string, assessment *models.SecurityAssessment) {
	details, err := json.Marshal(map[string]interface{}{
		"warnings":        assessment.Warnings,
		"critical_issues": assessment.CriticalIssues,
	})
	if err != nil {
		details = []byte("{}")
	}

	event := models.SecurityEvent{
		EventBucket: r.buckets.EventBucket(employeeID),
		EmployeeID:  employeeID,
		EventDate:   r.buckets.DateBucket(at),
		EventTime:   at.UTC(),
		EventType:   eventType,
		RiskScore:   assessment.FraudScore,
		RiskLevel:   string(assessment.RiskLevel),
		Passed:      assessment.Passed(),
		Details:     string(details),
	}

	r.mu.Lock()
	r.pending = append(r.pending, event)
	shouldFlush := len(r.pending) >= flushSize
	r.mu.Unlock()

	if shouldFlush {
		r.flush()
	}
}

func (r *Recorder) loop() {
	defer r.wg.Done()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.flush()
		case <-r.stopCh:
			r.flush()
			return
		}
	}
}

func (r *Recorder) flush() {
	r.mu.Lock()
	if len(r.pending) == 0 {
		r.mu.Unlock()
		return
	}
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	rows := make([][]interface{}, 0, len(batch))
	for _, e := range batch {
		rows = append(rows, []interface{}{
			e.EventBucket, e.EmployeeID, e.EventDate, e.EventTime,
			e.EventType, e.RiskScore, e.RiskLevel, e.Passed, e.Details,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.ch.BatchInsert(ctx, insertEventsSQL, rows); err != nil {
		util.Error("Failed to flush security events to ClickHouse",
			zap.Int("batch_size", len(rows)), zap.Error(err))
	}
}

// Close flushes remaining events and stops the background loop.
func (r *Recorder) Close() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		r.wg.Wait()
	})
}
