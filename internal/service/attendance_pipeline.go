package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"attendance-service/internal/audit"
	"attendance-service/internal/face"
	"attendance-service/internal/geo"
	"attendance-service/internal/hashing"
	"attendance-service/internal/models"
	"attendance-service/internal/notification"
	"attendance-service/internal/repository/scylla"
	"attendance-service/internal/search"
	"attendance-service/internal/security"
	"attendance-service/internal/shift"
	"attendance-service/internal/util"
)

const (
	historyDays        = 30
	geotaggedDays      = 7
	maxGeotaggedPoints = 5
)

// FaceVerifier compares a probe capture against a stored reference image.
type FaceVerifier interface {
	Verify(ctx context.Context, reference, probe []byte) (face.MatchResult, error)
}

// AttemptTracker records check-in attempts and serves the recent window.
type AttemptTracker interface {
	RecordAttempt(employeeID string, at time.Time) error
	RecentAttempts(employeeID string, now time.Time) ([]time.Time, error)
}

// EventPublisher receives the fire-and-forget outcome events.
type EventPublisher interface {
	Publish(event notification.Event)
}

// CheckInResult is the success outcome of one pipeline run: the persisted
// row summary plus the verification data that produced it.
type CheckInResult struct {
	AttendanceID       string                     `json:"attendance_id"`
	EmployeeID         string                     `json:"employee_id"`
	AttendanceDate     string                     `json:"attendance_date"`
	CheckInAt          time.Time                  `json:"check_in_at"`
	Status             string                     `json:"status"`
	WorkMode           string                     `json:"work_mode"`
	VerificationMethod string                     `json:"verification_method"`
	MinutesLate        int                        `json:"minutes_late"`
	RequiresApproval   bool                       `json:"requires_approval"`
	ApprovalStatus     string                     `json:"approval_status"`
	FaceConfidence     *float64                   `json:"face_confidence,omitempty"`
	GeofenceDistanceM  *float64                   `json:"geofence_distance_m,omitempty"`
	IsFraudSuspected   bool                       `json:"is_fraud_suspected"`
	Assessment         *models.SecurityAssessment `json:"assessment"`
}

// AttendancePipeline runs one check-in attempt through
// PreCheck, Verification, Validation and RecordCreation. The first failing
// stage terminates the run with a typed PipelineError; nothing is persisted
// unless all four stages pass.
type AttendancePipeline struct {
	personnel  scylla.PersonnelRepository
	attendance scylla.AttendanceRepository
	profiles   scylla.ProfileImageRepository
	attempts   AttemptTracker
	verifier   FaceVerifier
	fence      *geo.Checker
	shifts     *shift.Policy
	scorer     *security.Scorer
	dispatcher EventPublisher
	auditor    *audit.Recorder
	reviews    *search.ReviewIndexer
	logger     *zap.Logger
}

// NewAttendancePipeline wires the pipeline. dispatcher, auditor and reviews
// are optional side-effect sinks; nil disables them.
func NewAttendancePipeline(
	personnel scylla.PersonnelRepository,
	attendance scylla.AttendanceRepository,
	profiles scylla.ProfileImageRepository,
	attempts AttemptTracker,
	verifier FaceVerifier,
	fence *geo.Checker,
	shifts *shift.Policy,
	scorer *security.Scorer,
	dispatcher EventPublisher,
	auditor *audit.Recorder,
	reviews *search.ReviewIndexer,
	logger *zap.Logger,
) *AttendancePipeline {
	return &AttendancePipeline{
		personnel:  personnel,
		attendance: attendance,
		profiles:   profiles,
		attempts:   attempts,
		verifier:   verifier,
		fence:      fence,
		shifts:     shifts,
		scorer:     scorer,
		dispatcher: dispatcher,
		auditor:    auditor,
		reviews:    reviews,
		logger:     logger,
	}
}

// pipelineState carries stage outputs forward through one run.
type pipelineState struct {
	attempt        *models.AttendanceAttempt
	employee       *models.Employee
	workMode       string
	window         models.ShiftWindow
	date           string
	distanceM      *float64
	faceResult     *face.MatchResult
	assessment     *models.SecurityAssessment
	history        []models.AttendanceDigest
	classification shift.Classification
}

// CheckIn is the single entry point for callers.
func (p *AttendancePipeline) CheckIn(ctx context.Context, attempt *models.AttendanceAttempt) (*CheckInResult, *PipelineError) {
	if attempt.Timestamp.IsZero() {
		attempt.Timestamp = time.Now().UTC()
	}

	state := &pipelineState{
		attempt: attempt,
		date:    attempt.Timestamp.Format("2006-01-02"),
	}

	stages := []struct {
		name string
		run  func(context.Context, *pipelineState) *PipelineError
	}{
		{"precheck", p.preCheck},
		{"verification", p.verify},
		{"validation", p.validate},
	}
	for _, stage := range stages {
		if perr := stage.run(ctx, state); perr != nil {
			p.logFailure(stage.name, state, perr)
			return nil, perr
		}
	}

	result, perr := p.createRecord(ctx, state)
	if perr != nil {
		p.logFailure("record_creation", state, perr)
		return nil, perr
	}
	return result, nil
}

// preCheck fails fast on unknown or inactive employees and on a duplicate
// row for today, then resolves work mode and shift window for the rest of
// the run.
func (p *AttendancePipeline) preCheck(ctx context.Context, state *pipelineState) *PipelineError {
	attempt := state.attempt

	employee, err := p.personnel.GetEmployee(ctx, attempt.EmployeeID)
	if err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			return failure(FailEmployeeNotFound, fmt.Sprintf("employee %s not found", attempt.EmployeeID))
		}
		return failureWrap(FailSystem, "employee lookup failed", err)
	}
	if !employee.IsActive {
		return failure(FailEmployeeInactive, fmt.Sprintf("employee %s is inactive", attempt.EmployeeID))
	}
	state.employee = employee

	// Duplicate check here gives callers a specific error; the conditional
	// insert in createRecord still guards the race.
	if _, err := p.attendance.GetForDate(ctx, attempt.EmployeeID, state.date); err == nil {
		return failure(FailAlreadyMarked, fmt.Sprintf("attendance already marked for %s", state.date))
	} else if !errors.Is(err, scylla.ErrNotFound) {
		return failureWrap(FailSystem, "duplicate check failed", err)
	}

	state.workMode = models.WorkModeOffice
	override, err := p.personnel.GetWFHOverride(ctx, attempt.EmployeeID, state.date)
	if err != nil && !errors.Is(err, scylla.ErrNotFound) {
		return failureWrap(FailSystem, "wfh override lookup failed", err)
	}
	if override != nil {
		state.workMode = models.WorkModeWFH
	}

	state.window = p.shifts.Resolve(ctx, employee)
	return nil
}

// verify runs the identity and location checks, then the security scorer.
func (p *AttendancePipeline) verify(ctx context.Context, state *pipelineState) *PipelineError {
	attempt := state.attempt

	if len(attempt.Photo) == 0 {
		return failure(FailPhotoRequired, "a check-in photo is required")
	}

	if state.workMode == models.WorkModeOffice {
		if !attempt.HasCoordinates() {
			return failure(FailLocationRequired, "coordinates are required for office check-in")
		}
		d := p.fence.DistanceFromAnchor(*attempt.Latitude, *attempt.Longitude)
		state.distanceM = &d
		if res := p.fence.Check(d); !res.Passed {
			return &PipelineError{
				Kind:    FailLocationTooFar,
				Message: fmt.Sprintf("%.0fm from office, allowed %.0fm", res.DistanceM, res.RadiusM),
			}
		}
	}

	// Face verification and history reads are independent I/O.
	g, gctx := errgroup.WithContext(ctx)

	if attempt.UseFaceRecognition {
		g.Go(func() error {
			return p.verifyFace(gctx, state)
		})
	}
	g.Go(func() error {
		since := attempt.Timestamp.AddDate(0, 0, -historyDays).Format("2006-01-02")
		history, err := p.attendance.RecentDigests(gctx, attempt.EmployeeID, since)
		if err != nil {
			return failureWrap(FailSystem, "attendance history read failed", err)
		}
		state.history = history
		return nil
	})

	if err := g.Wait(); err != nil {
		var perr *PipelineError
		if errors.As(err, &perr) {
			return perr
		}
		return failureWrap(FailSystem, "verification failed", err)
	}

	return p.runScorer(ctx, state)
}

func (p *AttendancePipeline) verifyFace(ctx context.Context, state *pipelineState) error {
	attempt := state.attempt

	reference, err := p.profiles.GetReferenceImage(ctx, attempt.EmployeeID)
	if err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			return failure(FailProfileImageMissing, "no reference image enrolled for employee")
		}
		return failureWrap(FailSystem, "reference image read failed", err)
	}

	result, err := p.verifier.Verify(ctx, reference, attempt.Photo)
	if err != nil {
		switch {
		case errors.Is(err, face.ErrNoFaceDetected):
			return failure(FailFaceRecognition, "no face detected in the check-in photo")
		case errors.Is(err, face.ErrMultipleFacesDetected):
			return failure(FailFaceRecognition, "multiple faces detected in the check-in photo")
		default:
			return failureWrap(FailFaceRecognition, "face comparison failed", err)
		}
	}
	if !result.Matched {
		return &PipelineError{
			Kind: FailFaceMismatch,
			Message: fmt.Sprintf("face does not match reference (confidence %.1f, distance %.2f, tolerance %.2f)",
				result.Confidence, result.EmbeddingDistance, result.Tolerance),
		}
	}

	state.faceResult = &result
	return nil
}

// runScorer assembles the scorer input snapshot and gates on the result.
func (p *AttendancePipeline) runScorer(ctx context.Context, state *pipelineState) *PipelineError {
	attempt := state.attempt

	recent := []time.Time{attempt.Timestamp}
	if err := p.attempts.RecordAttempt(attempt.EmployeeID, attempt.Timestamp); err != nil {
		// Degrade to the current attempt only; the duplicate-row guard
		// still holds.
		util.Warn("attempt tracking unavailable",
			zap.String("employee_id", attempt.EmployeeID), zap.Error(err))
	} else if window, err := p.attempts.RecentAttempts(attempt.EmployeeID, attempt.Timestamp); err == nil {
		recent = window
	}

	in := &security.Input{
		Employee:       state.employee,
		Photo:          attempt.Photo,
		WorkMode:       state.workMode,
		Now:            attempt.Timestamp,
		HasWFHOverride: state.workMode == models.WorkModeWFH,
		RecentAttempts: recent,
		History:        state.history,
	}
	if attempt.HasCoordinates() {
		in.HasCoords = true
		in.Latitude = *attempt.Latitude
		in.Longitude = *attempt.Longitude
	}
	if state.distanceM != nil {
		in.GeofenceDistanceM = *state.distanceM
	}
	in.RecentGeotagged = recentGeotagged(state.history, attempt.Timestamp)

	assessment := p.scorer.Assess(in)
	state.assessment = assessment

	if p.auditor != nil {
		p.auditor.RecordAssessment(attempt.EmployeeID, attempt.Timestamp, "checkin_assessment", assessment)
	}

	if !assessment.Passed() {
		return &PipelineError{
			Kind: FailSecurityValidation,
			Message: fmt.Sprintf("security validation failed (score %d, %d critical issues)",
				assessment.FraudScore, len(assessment.CriticalIssues)),
		}
	}
	return nil
}

// validate classifies the arrival time against the shift window. Office
// mode without coordinates is re-checked here as a second gate.
func (p *AttendancePipeline) validate(_ context.Context, state *pipelineState) *PipelineError {
	if state.workMode == models.WorkModeOffice && !state.attempt.HasCoordinates() {
		return failure(FailLocationRequiredOffice, "office check-in requires coordinates")
	}

	classification, err := p.shifts.Classify(state.attempt.Timestamp, state.window)
	if err != nil {
		return failureWrap(FailSystem, "shift classification failed", err)
	}
	state.classification = classification
	return nil
}

// createRecord persists the row and fires the decoupled side effects.
func (p *AttendancePipeline) createRecord(ctx context.Context, state *pipelineState) (*CheckInResult, *PipelineError) {
	attempt := state.attempt
	classification := state.classification

	status := models.StatusPresent
	if classification.Kind != shift.ArrivalOnTime {
		status = models.StatusLate
	}
	approvalStatus := models.ApprovalAutoApproved
	if classification.RequiresApproval {
		approvalStatus = models.ApprovalPending
	}

	row := &models.Attendance{
		EmployeeID:         attempt.EmployeeID,
		AttendanceDate:     state.date,
		CheckInAt:          attempt.Timestamp,
		Status:             status,
		WorkMode:           state.workMode,
		VerificationMethod: verificationMethod(state),
		Latitude:           attempt.Latitude,
		Longitude:          attempt.Longitude,
		GeofenceDistanceM:  state.distanceM,
		PhotoHash:          hashing.ContentHash(attempt.Photo),
		MinutesLate:        classification.MinutesLate,
		RequiresApproval:   classification.RequiresApproval,
		ApprovalStatus:     approvalStatus,
		IsFraudSuspected:   len(state.assessment.Warnings) > 0,
		FraudScore:         state.assessment.FraudScore,
		FlaggedReason:      strings.Join(state.assessment.Warnings, "; "),
	}
	if state.faceResult != nil {
		conf := state.faceResult.Confidence
		row.FaceConfidence = &conf
	}

	if err := p.attendance.Insert(ctx, row); err != nil {
		if errors.Is(err, scylla.ErrAttendanceExists) {
			return nil, failure(FailAlreadyMarked, fmt.Sprintf("attendance already marked for %s", state.date))
		}
		return nil, failureWrap(FailRecordCreation, "failed to persist attendance row", err)
	}

	util.Info("Attendance recorded",
		zap.String("employee_id", row.EmployeeID),
		zap.String("attendance_id", row.AttendanceID),
		zap.String("status", row.Status),
		zap.String("work_mode", row.WorkMode),
		zap.Int("fraud_score", row.FraudScore),
		zap.Bool("requires_approval", row.RequiresApproval))

	p.fireSideEffects(state, row)

	return &CheckInResult{
		AttendanceID:       row.AttendanceID,
		EmployeeID:         row.EmployeeID,
		AttendanceDate:     row.AttendanceDate,
		CheckInAt:          row.CheckInAt,
		Status:             row.Status,
		WorkMode:           row.WorkMode,
		VerificationMethod: row.VerificationMethod,
		MinutesLate:        row.MinutesLate,
		RequiresApproval:   row.RequiresApproval,
		ApprovalStatus:     row.ApprovalStatus,
		FaceConfidence:     row.FaceConfidence,
		GeofenceDistanceM:  row.GeofenceDistanceM,
		IsFraudSuspected:   row.IsFraudSuspected,
		Assessment:         state.assessment,
	}, nil
}

// fireSideEffects publishes the non-blocking follow-ups. Failures inside
// the sinks are logged there and never reach the caller.
func (p *AttendancePipeline) fireSideEffects(state *pipelineState, row *models.Attendance) {
	if p.dispatcher != nil {
		p.dispatcher.Publish(notification.Event{
			EventType:        notification.EventCheckInSucceeded,
			EmployeeID:       row.EmployeeID,
			AttendanceID:     row.AttendanceID,
			Status:           row.Status,
			FraudScore:       row.FraudScore,
			MinutesLate:      row.MinutesLate,
			RequiresApproval: row.RequiresApproval,
			OccurredAt:       row.CheckInAt,
		})
		if row.RequiresApproval {
			p.dispatcher.Publish(notification.Event{
				EventType:        notification.EventApprovalPending,
				EmployeeID:       row.EmployeeID,
				AttendanceID:     row.AttendanceID,
				Status:           row.Status,
				MinutesLate:      row.MinutesLate,
				RequiresApproval: true,
				OccurredAt:       row.CheckInAt,
			})
		}
		if row.IsFraudSuspected {
			p.dispatcher.Publish(notification.Event{
				EventType:    notification.EventFraudSuspected,
				EmployeeID:   row.EmployeeID,
				AttendanceID: row.AttendanceID,
				FraudScore:   row.FraudScore,
				OccurredAt:   row.CheckInAt,
			})
		}
	}
	if p.reviews != nil && (row.IsFraudSuspected || row.RequiresApproval) {
		p.reviews.IndexForReview(state.employee, row, state.assessment.RiskLevel)
	}
}

func (p *AttendancePipeline) logFailure(stage string, state *pipelineState, perr *PipelineError) {
	fields := []zap.Field{
		zap.String("stage", stage),
		zap.String("employee_id", state.attempt.EmployeeID),
		zap.String("kind", string(perr.Kind)),
	}
	if perr.Kind == FailSystem {
		util.Error("Check-in failed with system error", append(fields, zap.Error(perr.Err))...)
	} else {
		util.Info("Check-in rejected", fields...)
	}
	if p.dispatcher != nil {
		p.dispatcher.Publish(notification.Event{
			EventType:   notification.EventCheckInFailed,
			EmployeeID:  state.attempt.EmployeeID,
			FailureKind: string(perr.Kind),
			OccurredAt:  state.attempt.Timestamp,
		})
	}
}

func verificationMethod(state *pipelineState) string {
	switch {
	case state.faceResult != nil:
		return models.VerificationFace
	case state.distanceM != nil:
		return models.VerificationGeofence
	default:
		return models.VerificationManual
	}
}

// recentGeotagged projects the geotagged subset of the last 7 days out of
// the 30-day history, newest first, capped at 5 points.
func recentGeotagged(history []models.AttendanceDigest, now time.Time) []models.AttendanceDigest {
	cutoff := now.AddDate(0, 0, -geotaggedDays).Format("2006-01-02")
	out := make([]models.AttendanceDigest, 0, maxGeotaggedPoints)
	for _, rec := range history {
		if rec.AttendanceDate < cutoff || !rec.HasCoordinates() {
			continue
		}
		out = append(out, rec)
		if len(out) == maxGeotaggedPoints {
			break
		}
	}
	return out
}
