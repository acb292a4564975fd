package notification

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"attendance-service/internal/client"
	"attendance-service/internal/config"
	"attendance-service/internal/util"
)

// Event is published after a check-in outcome is decided. Delivery is
// best-effort and never blocks or fails the check-in itself.
type Event struct {
	EventType        string    `json:"event_type"`
	EmployeeID       string    `json:"employee_id"`
	AttendanceID     string    `json:"attendance_id,omitempty"`
	Status           string    `json:"status,omitempty"`
	FailureKind      string    `json:"failure_kind,omitempty"`
	FraudScore       int       `json:"fraud_score"`
	MinutesLate      int       `json:"minutes_late,omitempty"`
	RequiresApproval bool      `json:"requires_approval"`
	OccurredAt       time.Time `json:"occurred_at"`
}

const (
	EventCheckInSucceeded = "checkin_succeeded"
	EventCheckInFailed    = "checkin_failed"
	EventFraudSuspected   = "fraud_suspected"
	// EventApprovalPending notifies the approval workflow that a check-in
	// landed beyond the grace period and waits on a manager decision.
	EventApprovalPending = "late_approval_pending"
)

// Dispatcher queues events and ships them to Kafka from a background
// worker. A full queue drops the event rather than backpressuring the
// request path.
type Dispatcher struct {
	producer *client.KafkaProducer
	topic    string
	queue    chan Event
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewDispatcher(producer *client.KafkaProducer, cfg *config.KafkaConfig) *Dispatcher {
	d := &Dispatcher{
		producer: producer,
		topic:    cfg.NotificationTopic,
		queue:    make(chan Event, 1024),
		stopCh:   make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Publish enqueues an event without blocking.
func (d *Dispatcher) Publish(event Event) {
	select {
	case d.queue <- event:
	default:
		util.Warn("Notification queue full, dropping event",
			zap.String("event_type", event.EventType),
			zap.String("employee_id", event.EmployeeID))
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.stopCh:
			// Drain whatever is already queued.
			for {
				select {
				case event := <-d.queue:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		util.Error("Failed to marshal notification event", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = d.producer.ProduceMessage(ctx, d.topic, []byte(event.EmployeeID), payload, map[string]string{
		"event_type": event.EventType,
	})
	if err != nil {
		util.Error("Failed to publish notification event",
			zap.String("event_type", event.EventType),
			zap.String("employee_id", event.EmployeeID),
			zap.Error(err))
	}
}

// Close stops the worker after draining queued events.
func (d *Dispatcher) Close() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
		d.wg.Wait()
	})
}
