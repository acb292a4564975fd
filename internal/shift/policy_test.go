package shift

import (
	"context"
	"errors"
	"testing"
	"time"

	"attendance-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testWindow = models.ShiftWindow{
	ShiftID:      "day",
	Name:         "Day Shift",
	StartTime:    "09:00",
	EndTime:      "10:00",
	GraceMinutes: 15,
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
}

func TestClassifyOnTimeWithinWindow(t *testing.T) {
	p := NewPolicy(nil, testWindow)
	c, err := p.Classify(at(9, 30), testWindow)
	require.NoError(t, err)
	assert.Equal(t, ArrivalOnTime, c.Kind)
	assert.Equal(t, 0, c.MinutesLate)
	assert.False(t, c.RequiresApproval)
}

func TestClassifyExactlyAtEnd(t *testing.T) {
	p := NewPolicy(nil, testWindow)
	c, err := p.Classify(at(10, 0), testWindow)
	require.NoError(t, err)
	assert.Equal(t, ArrivalOnTime, c.Kind)
}

func TestClassifyOneMinuteIntoGrace(t *testing.T) {
	p := NewPolicy(nil, testWindow)
	c, err := p.Classify(at(10, 1), testWindow)
	require.NoError(t, err)
	assert.Equal(t, ArrivalLateWithinGrace, c.Kind)
	assert.Equal(t, 1, c.MinutesLate)
	assert.False(t, c.RequiresApproval)
}

func TestClassifyAtGraceBoundary(t *testing.T) {
	p := NewPolicy(nil, testWindow)
	c, err := p.Classify(at(10, 15), testWindow)
	require.NoError(t, err)
	assert.Equal(t, ArrivalLateWithinGrace, c.Kind)
	assert.Equal(t, 15, c.MinutesLate)
}

func TestClassifyBeyondGrace(t *testing.T) {
	p := NewPolicy(nil, testWindow)
	c, err := p.Classify(at(10, 16), testWindow)
	require.NoError(t, err)
	assert.Equal(t, ArrivalLateBeyondGrace, c.Kind)
	assert.Equal(t, 16, c.MinutesLate)
	assert.True(t, c.RequiresApproval)
}

func TestClassifyBeforeStartIsOnTime(t *testing.T) {
	p := NewPolicy(nil, testWindow)
	c, err := p.Classify(at(7, 45), testWindow)
	require.NoError(t, err)
	assert.Equal(t, ArrivalOnTime, c.Kind)
}

func TestClassifyRejectsMalformedWindow(t *testing.T) {
	p := NewPolicy(nil, testWindow)
	broken := testWindow
	broken.EndTime = "25:99"
	_, err := p.Classify(at(10, 0), broken)
	assert.Error(t, err)
}

type fakeLookup struct {
	windows map[string]models.ShiftWindow
}

func (f *fakeLookup) GetShiftWindow(_ context.Context, id string) (*models.ShiftWindow, error) {
	w, ok := f.windows[id]
	if !ok {
		return nil, errors.New("shift not found")
	}
	return &w, nil
}

func TestResolveAssignedShift(t *testing.T) {
	night := models.ShiftWindow{ShiftID: "night", StartTime: "21:00", EndTime: "22:00", GraceMinutes: 10}
	p := NewPolicy(&fakeLookup{windows: map[string]models.ShiftWindow{"night": night}}, testWindow)

	got := p.Resolve(context.Background(), &models.Employee{EmployeeID: "e1", ShiftID: "night"})
	assert.Equal(t, night, got)
}

func TestResolveFallsBackWhenUnassigned(t *testing.T) {
	p := NewPolicy(&fakeLookup{windows: map[string]models.ShiftWindow{}}, testWindow)

	got := p.Resolve(context.Background(), &models.Employee{EmployeeID: "e1"})
	assert.Equal(t, testWindow, got)
}

func TestResolveFallsBackOnLookupFailure(t *testing.T) {
	p := NewPolicy(&fakeLookup{windows: map[string]models.ShiftWindow{}}, testWindow)

	got := p.Resolve(context.Background(), &models.Employee{EmployeeID: "e1", ShiftID: "missing"})
	assert.Equal(t, testWindow, got)
}
