package security

import (
	"bytes"
	"fmt"
	"time"

	"attendance-service/internal/geo"
	"attendance-service/internal/models"
)

// Sub-check weights. Contributions are additive; the total is capped at 100
// once, at the end.
const (
	scorePhotoMissing    = 50
	scorePhotoNotImage   = 10
	scorePhotoTooSmall   = 15
	scorePhotoTooLarge   = 5
	scoreCoordsMissing   = 40
	scoreOutsideFence    = 30
	scoreWarnBand        = 10
	scoreFarFromHistory  = 15
	scoreAwayFromHistory = 5
	scoreRapidAttempts   = 50
	scoreWeekendCheckIn  = 20
	scoreOddHours        = 10
	scoreRepeatedMinute  = 15
	scorePriorFraudEach  = 5
	scoreManyApprovals   = 10
)

const (
	minPhotoBytes = 1000
	maxPhotoBytes = 10 << 20

	earliestHour = 6
	latestHour   = 23

	historyFarM  = 5000.0
	historyAwayM = 1000.0

	repeatedMinuteThreshold = 3
	approvalCountThreshold  = 5
)

// Input is the full snapshot one assessment runs on. The scorer performs no
// I/O: the pipeline gathers bounded history and hands it over as data.
type Input struct {
	Employee  *models.Employee
	Photo     []byte
	WorkMode  string
	HasCoords bool
	Latitude  float64
	Longitude float64
	// GeofenceDistanceM is the distance already computed by the geofence
	// checker; zero under WFH where location checks are skipped.
	GeofenceDistanceM float64
	Now               time.Time
	HasWFHOverride    bool
	// RecentAttempts holds the check-in attempt timestamps seen in the last
	// five minutes, including the current one.
	RecentAttempts []time.Time
	// RecentGeotagged holds up to the last 5 geotagged records from the past
	// 7 days.
	RecentGeotagged []models.AttendanceDigest
	// History holds the last 30 days of attendance digests.
	History []models.AttendanceDigest
}

// Scorer aggregates independent heuristics into one fraud assessment.
type Scorer struct {
	fenceRadiusM float64
	warnRadiusM  float64
}

func NewScorer(fenceRadiusM, warnRadiusM float64) *Scorer {
	return &Scorer{fenceRadiusM: fenceRadiusM, warnRadiusM: warnRadiusM}
}

// Assess runs all sub-checks and returns the composite assessment.
func (s *Scorer) Assess(in *Input) *models.SecurityAssessment {
	out := &models.SecurityAssessment{
		Warnings:       []string{},
		CriticalIssues: []string{},
		AssessedAt:     in.Now,
	}

	checks := []func(*Input, *models.SecurityAssessment){
		s.checkPhoto,
		s.checkLocation,
		s.checkTiming,
		s.checkPattern,
	}
	for _, check := range checks {
		check(in, out)
	}

	if out.FraudScore > 100 {
		out.FraudScore = 100
	}
	out.RiskLevel = models.RiskLevelForScore(out.FraudScore)
	return out
}

func (s *Scorer) checkPhoto(in *Input, out *models.SecurityAssessment) {
	if len(in.Photo) == 0 {
		out.CriticalIssues = append(out.CriticalIssues, "photo_missing: no photo supplied with check-in")
		out.FraudScore += scorePhotoMissing
		return
	}

	if !looksLikeImage(in.Photo) {
		out.Warnings = append(out.Warnings, "photo_invalid: payload does not look like an image")
		out.FraudScore += scorePhotoNotImage
	}
	if len(in.Photo) < minPhotoBytes {
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("photo_too_small: %d bytes is implausibly small for a live capture", len(in.Photo)))
		out.FraudScore += scorePhotoTooSmall
	}
	if len(in.Photo) > maxPhotoBytes {
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("photo_too_large: %d bytes exceeds expected capture size", len(in.Photo)))
		out.FraudScore += scorePhotoTooLarge
	}
}

func (s *Scorer) checkLocation(in *Input, out *models.SecurityAssessment) {
	if in.WorkMode != models.WorkModeOffice {
		return
	}

	if !in.HasCoords {
		out.CriticalIssues = append(out.CriticalIssues, "location_missing: office check-in without coordinates")
		out.FraudScore += scoreCoordsMissing
		return
	}

	if in.GeofenceDistanceM > s.fenceRadiusM {
		out.CriticalIssues = append(out.CriticalIssues,
			fmt.Sprintf("location_outside_geofence: %.0fm from office, allowed %.0fm", in.GeofenceDistanceM, s.fenceRadiusM))
		out.FraudScore += scoreOutsideFence
	} else if in.GeofenceDistanceM > s.warnRadiusM {
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("location_edge_of_geofence: %.0fm from office", in.GeofenceDistanceM))
		out.FraudScore += scoreWarnBand
	}

	// Compare against recent geotagged history; the first record far enough
	// away wins, this is not an exhaustive scan.
	for _, rec := range in.RecentGeotagged {
		if !rec.HasCoordinates() {
			continue
		}
		d := geo.Distance(in.Latitude, in.Longitude, *rec.Latitude, *rec.Longitude)
		if d > historyFarM {
			out.Warnings = append(out.Warnings,
				fmt.Sprintf("location_jump: %.1fkm from recent check-in location", d/1000))
			out.FraudScore += scoreFarFromHistory
			break
		}
		if d > historyAwayM {
			out.Warnings = append(out.Warnings,
				fmt.Sprintf("location_shift: %.1fkm from recent check-in location", d/1000))
			out.FraudScore += scoreAwayFromHistory
			break
		}
	}
}

func (s *Scorer) checkTiming(in *Input, out *models.SecurityAssessment) {
	if len(in.RecentAttempts) > 1 {
		out.CriticalIssues = append(out.CriticalIssues,
			fmt.Sprintf("rapid_attempts: %d check-in attempts within 5 minutes", len(in.RecentAttempts)))
		out.FraudScore += scoreRapidAttempts
	}

	weekday := in.Now.Weekday()
	if (weekday == time.Saturday || weekday == time.Sunday) && !in.HasWFHOverride {
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("weekend_checkin: %s check-in without a WFH override", weekday))
		out.FraudScore += scoreWeekendCheckIn
	}

	if hour := in.Now.Hour(); hour < earliestHour || hour >= latestHour {
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("odd_hours: check-in at %02d:%02d", hour, in.Now.Minute()))
		out.FraudScore += scoreOddHours
	}
}

func (s *Scorer) checkPattern(in *Input, out *models.SecurityAssessment) {
	minuteBuckets := make(map[string]int)
	fraudCount := 0
	approvalCount := 0

	for _, rec := range in.History {
		minuteBuckets[rec.CheckInAt.Format("15:04")]++
		if rec.IsFraudSuspected {
			fraudCount++
		}
		if rec.RequiresApproval {
			approvalCount++
		}
	}

	for bucket, count := range minuteBuckets {
		if count >= repeatedMinuteThreshold {
			out.Warnings = append(out.Warnings,
				fmt.Sprintf("repeated_time: %d check-ins at exactly %s in the last 30 days", count, bucket))
			out.FraudScore += scoreRepeatedMinute
		}
	}

	if fraudCount > 0 {
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("prior_fraud_flags: %d fraud-suspected records in the last 30 days", fraudCount))
		out.FraudScore += scorePriorFraudEach * fraudCount
	}

	if approvalCount > approvalCountThreshold {
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("frequent_approvals: %d approval-required records in the last 30 days", approvalCount))
		out.FraudScore += scoreManyApprovals
	}
}

var imageMagics = [][]byte{
	{0xFF, 0xD8, 0xFF},       // JPEG
	{0x89, 'P', 'N', 'G'},    // PNG
	{'G', 'I', 'F', '8'},     // GIF
	{'R', 'I', 'F', 'F'},     // WebP container
	{'B', 'M'},               // BMP
	{0x49, 0x49, 0x2A, 0x00}, // TIFF LE
	{0x4D, 0x4D, 0x00, 0x2A}, // TIFF BE
}

func looksLikeImage(payload []byte) bool {
	for _, magic := range imageMagics {
		if bytes.HasPrefix(payload, magic) {
			return true
		}
	}
	return false
}
