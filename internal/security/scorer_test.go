package security

import (
	"strings"
	"testing"
	"time"

	"attendance-service/internal/models"

	"github.com/stretchr/testify/assert"
)

// validPhoto is a JPEG-prefixed payload large enough to pass the size checks.
func validPhoto() []byte {
	photo := make([]byte, 4096)
	copy(photo, []byte{0xFF, 0xD8, 0xFF})
	return photo
}

// weekday 10:00, a plain Monday morning.
func weekdayMorning() time.Time {
	return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
}

func cleanInput() *Input {
	return &Input{
		Employee:          &models.Employee{EmployeeID: "e1", IsActive: true},
		Photo:             validPhoto(),
		WorkMode:          models.WorkModeOffice,
		HasCoords:         true,
		Latitude:          12.9716,
		Longitude:         77.5946,
		GeofenceDistanceM: 40,
		Now:               weekdayMorning(),
		RecentAttempts:    []time.Time{weekdayMorning()},
	}
}

func newScorer() *Scorer {
	return NewScorer(100, 50)
}

func TestAssessCleanAttempt(t *testing.T) {
	a := newScorer().Assess(cleanInput())

	assert.Empty(t, a.CriticalIssues)
	assert.Empty(t, a.Warnings)
	assert.Equal(t, 0, a.FraudScore)
	assert.Equal(t, models.RiskMinimal, a.RiskLevel)
	assert.True(t, a.Passed())
}

func TestMissingPhotoIsCritical(t *testing.T) {
	in := cleanInput()
	in.Photo = nil

	a := newScorer().Assess(in)
	assert.Equal(t, 50, a.FraudScore)
	assert.Len(t, a.CriticalIssues, 1)
	assert.Contains(t, a.CriticalIssues[0], "photo_missing")
	assert.False(t, a.Passed())
}

func TestNonImagePayloadWarns(t *testing.T) {
	in := cleanInput()
	in.Photo = []byte(strings.Repeat("not an image ", 100))

	a := newScorer().Assess(in)
	assert.Equal(t, 10, a.FraudScore)
	assert.Empty(t, a.CriticalIssues)
	assert.Contains(t, a.Warnings[0], "photo_invalid")
}

func TestTinyPhotoWarns(t *testing.T) {
	in := cleanInput()
	in.Photo = []byte{0xFF, 0xD8, 0xFF, 0x00}

	a := newScorer().Assess(in)
	assert.Equal(t, 15, a.FraudScore)
	assert.Contains(t, a.Warnings[0], "photo_too_small")
}

func TestOversizedPhotoWarns(t *testing.T) {
	in := cleanInput()
	big := make([]byte, (10<<20)+1)
	copy(big, []byte{0xFF, 0xD8, 0xFF})
	in.Photo = big

	a := newScorer().Assess(in)
	assert.Equal(t, 5, a.FraudScore)
	assert.Contains(t, a.Warnings[0], "photo_too_large")
}

func TestOfficeModeWithoutCoordsIsCritical(t *testing.T) {
	in := cleanInput()
	in.HasCoords = false

	a := newScorer().Assess(in)
	assert.Equal(t, 40, a.FraudScore)
	assert.Contains(t, a.CriticalIssues[0], "location_missing")
	assert.False(t, a.Passed())
}

func TestOutsideGeofenceIsCritical(t *testing.T) {
	in := cleanInput()
	in.GeofenceDistanceM = 150

	a := newScorer().Assess(in)
	assert.Equal(t, 30, a.FraudScore)
	assert.Contains(t, a.CriticalIssues[0], "location_outside_geofence")
	assert.False(t, a.Passed())
}

func TestWarnBandDistance(t *testing.T) {
	in := cleanInput()
	in.GeofenceDistanceM = 80

	a := newScorer().Assess(in)
	assert.Equal(t, 10, a.FraudScore)
	assert.Contains(t, a.Warnings[0], "location_edge_of_geofence")
	assert.True(t, a.Passed())
}

func TestWFHSkipsLocationChecks(t *testing.T) {
	in := cleanInput()
	in.WorkMode = models.WorkModeWFH
	in.HasCoords = false
	in.GeofenceDistanceM = 0

	a := newScorer().Assess(in)
	assert.Empty(t, a.CriticalIssues)
	assert.Equal(t, 0, a.FraudScore)
}

func coord(v float64) *float64 { return &v }

func TestHistoryLocationJump(t *testing.T) {
	in := cleanInput()
	// About 300 km away from the current coordinate.
	in.RecentGeotagged = []models.AttendanceDigest{
		{Latitude: coord(13.0827), Longitude: coord(80.2707)},
	}

	a := newScorer().Assess(in)
	assert.Equal(t, 15, a.FraudScore)
	assert.Contains(t, a.Warnings[0], "location_jump")
}

func TestHistoryLocationShiftFirstMatchWins(t *testing.T) {
	in := cleanInput()
	// First record ~2 km away (shift band), second would be a jump; only the
	// first fires.
	in.RecentGeotagged = []models.AttendanceDigest{
		{Latitude: coord(12.9896), Longitude: coord(77.5946)},
		{Latitude: coord(13.0827), Longitude: coord(80.2707)},
	}

	a := newScorer().Assess(in)
	assert.Equal(t, 5, a.FraudScore)
	assert.Len(t, a.Warnings, 1)
	assert.Contains(t, a.Warnings[0], "location_shift")
}

func TestRapidAttemptsIsCritical(t *testing.T) {
	in := cleanInput()
	now := weekdayMorning()
	in.RecentAttempts = []time.Time{now.Add(-2 * time.Minute), now}

	a := newScorer().Assess(in)
	assert.GreaterOrEqual(t, a.FraudScore, 50)
	assert.Contains(t, a.CriticalIssues[0], "rapid_attempts")
	assert.False(t, a.Passed())
}

func TestWeekendWithoutOverrideWarns(t *testing.T) {
	in := cleanInput()
	in.Now = time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC) // Saturday
	in.RecentAttempts = []time.Time{in.Now}

	a := newScorer().Assess(in)
	assert.Equal(t, 20, a.FraudScore)
	assert.Contains(t, a.Warnings[0], "weekend_checkin")
}

func TestWeekendWithOverrideDoesNotWarn(t *testing.T) {
	in := cleanInput()
	in.Now = time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)
	in.RecentAttempts = []time.Time{in.Now}
	in.HasWFHOverride = true
	in.WorkMode = models.WorkModeWFH

	a := newScorer().Assess(in)
	assert.Equal(t, 0, a.FraudScore)
}

func TestOddHoursWarns(t *testing.T) {
	early := cleanInput()
	early.Now = time.Date(2026, 3, 2, 5, 59, 0, 0, time.UTC)
	early.RecentAttempts = []time.Time{early.Now}
	a := newScorer().Assess(early)
	assert.Equal(t, 10, a.FraudScore)
	assert.Contains(t, a.Warnings[0], "odd_hours")

	late := cleanInput()
	late.Now = time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC)
	late.RecentAttempts = []time.Time{late.Now}
	a = newScorer().Assess(late)
	assert.Equal(t, 10, a.FraudScore)

	boundary := cleanInput()
	boundary.Now = time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	boundary.RecentAttempts = []time.Time{boundary.Now}
	a = newScorer().Assess(boundary)
	assert.Equal(t, 0, a.FraudScore)
}

func TestRepeatedMinutePattern(t *testing.T) {
	in := cleanInput()
	checkIn := time.Date(2026, 2, 10, 9, 14, 0, 0, time.UTC)
	in.History = []models.AttendanceDigest{
		{CheckInAt: checkIn},
		{CheckInAt: checkIn.AddDate(0, 0, 1)},
		{CheckInAt: checkIn.AddDate(0, 0, 2)},
	}

	a := newScorer().Assess(in)
	assert.Equal(t, 15, a.FraudScore)
	assert.Contains(t, a.Warnings[0], "repeated_time")
}

func TestPriorFraudRecordsAccumulate(t *testing.T) {
	in := cleanInput()
	in.History = []models.AttendanceDigest{
		{CheckInAt: time.Date(2026, 2, 10, 9, 1, 0, 0, time.UTC), IsFraudSuspected: true},
		{CheckInAt: time.Date(2026, 2, 11, 9, 2, 0, 0, time.UTC), IsFraudSuspected: true},
	}

	a := newScorer().Assess(in)
	assert.Equal(t, 10, a.FraudScore)
	assert.Contains(t, a.Warnings[0], "prior_fraud_flags")
}

func TestFrequentApprovalsWarn(t *testing.T) {
	in := cleanInput()
	for i := 0; i < 6; i++ {
		in.History = append(in.History, models.AttendanceDigest{
			CheckInAt:        time.Date(2026, 2, 10+i, 9, i, 0, 0, time.UTC),
			RequiresApproval: true,
		})
	}

	a := newScorer().Assess(in)
	assert.Equal(t, 10, a.FraudScore)
	assert.Contains(t, a.Warnings[0], "frequent_approvals")
}

func TestScoreCappedAt100(t *testing.T) {
	in := cleanInput()
	in.Photo = nil      // +50 critical
	in.HasCoords = false // +40 critical
	now := weekdayMorning()
	in.RecentAttempts = []time.Time{now.Add(-time.Minute), now} // +50 critical
	for i := 0; i < 10; i++ {
		in.History = append(in.History, models.AttendanceDigest{
			CheckInAt:        time.Date(2026, 2, 1+i, 9, 0, 0, 0, time.UTC),
			IsFraudSuspected: true,
		})
	}

	a := newScorer().Assess(in)
	assert.Equal(t, 100, a.FraudScore)
	assert.Equal(t, models.RiskHigh, a.RiskLevel)
	assert.False(t, a.Passed())
}

func TestCriticalAlwaysFailsRegardlessOfScore(t *testing.T) {
	in := cleanInput()
	in.GeofenceDistanceM = 150 // critical, +30 only

	a := newScorer().Assess(in)
	assert.Less(t, a.FraudScore, 70)
	assert.False(t, a.Passed())
}

func TestRiskLevelThresholds(t *testing.T) {
	assert.Equal(t, models.RiskMinimal, models.RiskLevelForScore(0))
	assert.Equal(t, models.RiskMinimal, models.RiskLevelForScore(19))
	assert.Equal(t, models.RiskLow, models.RiskLevelForScore(20))
	assert.Equal(t, models.RiskLow, models.RiskLevelForScore(39))
	assert.Equal(t, models.RiskMedium, models.RiskLevelForScore(40))
	assert.Equal(t, models.RiskMedium, models.RiskLevelForScore(69))
	assert.Equal(t, models.RiskHigh, models.RiskLevelForScore(70))
	assert.Equal(t, models.RiskHigh, models.RiskLevelForScore(100))
}
