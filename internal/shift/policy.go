package shift

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"attendance-service/internal/models"
	"attendance-service/internal/util"

	"go.uber.org/zap"
)

// ArrivalKind classifies a check-in time against a shift window.
type ArrivalKind string

const (
	ArrivalOnTime          ArrivalKind = "on_time"
	ArrivalLateWithinGrace ArrivalKind = "late_within_grace"
	ArrivalLateBeyondGrace ArrivalKind = "late_beyond_grace"
)

// Classification is the outcome of evaluating one timestamp against a window.
type Classification struct {
	Kind             ArrivalKind
	MinutesLate      int
	RequiresApproval bool
}

// WindowLookup resolves a shift window by its ID.
type WindowLookup interface {
	GetShiftWindow(ctx context.Context, shiftID string) (*models.ShiftWindow, error)
}

// Policy resolves an employee's active shift window and classifies arrival
// times against it.
type Policy struct {
	lookup   WindowLookup
	fallback models.ShiftWindow
}

func NewPolicy(lookup WindowLookup, fallback models.ShiftWindow) *Policy {
	return &Policy{lookup: lookup, fallback: fallback}
}

// Resolve returns the employee's assigned window, or the system-wide fallback
// when no assignment exists or the assigned shift cannot be found.
func (p *Policy) Resolve(ctx context.Context, employee *models.Employee) models.ShiftWindow {
	if employee.ShiftID == "" {
		return p.fallback
	}
	window, err := p.lookup.GetShiftWindow(ctx, employee.ShiftID)
	if err != nil || window == nil {
		util.Warn("shift window lookup failed, using fallback window",
			zap.String("employee_id", employee.EmployeeID),
			zap.String("shift_id", employee.ShiftID),
			zap.Error(err))
		return p.fallback
	}
	return *window
}

// Classify evaluates now against the window. Arrivals at or before the window
// end are on time; arrivals before the window start are also treated as on
// time. Arrivals within the grace period after the end are late but do not
// need approval; anything later does.
func (p *Policy) Classify(now time.Time, window models.ShiftWindow) (Classification, error) {
	end, err := clockOn(now, window.EndTime)
	if err != nil {
		return Classification{}, fmt.Errorf("invalid shift window %q: %w", window.ShiftID, err)
	}

	if !now.After(end) {
		return Classification{Kind: ArrivalOnTime}, nil
	}

	minutesLate := int(now.Sub(end) / time.Minute)
	graceEnd := end.Add(time.Duration(window.GraceMinutes) * time.Minute)

	if !now.After(graceEnd) {
		return Classification{
			Kind:        ArrivalLateWithinGrace,
			MinutesLate: minutesLate,
		}, nil
	}

	return Classification{
		Kind:             ArrivalLateBeyondGrace,
		MinutesLate:      minutesLate,
		RequiresApproval: true,
	}, nil
}

// clockOn places an "HH:MM" clock value on the calendar day of ref.
func clockOn(ref time.Time, clock string) (time.Time, error) {
	parts := strings.Split(clock, ":")
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("malformed clock value %q", clock)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return time.Time{}, fmt.Errorf("malformed clock hour %q", clock)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("malformed clock minute %q", clock)
	}
	return time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, 0, 0, ref.Location()), nil
}
