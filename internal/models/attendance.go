package models

import "time"

// Attendance status values.
const (
	StatusPresent = "present"
	StatusLate    = "late"
)

// Work modes.
const (
	WorkModeOffice = "office"
	WorkModeWFH    = "wfh"
)

// Approval states. Flipped to approved/rejected later by the approval
// workflow, which lives outside this service.
const (
	ApprovalAutoApproved = "auto_approved"
	ApprovalPending      = "pending"
)

// Verification methods recorded on the attendance row.
const (
	VerificationFace     = "face"
	VerificationGeofence = "geofence"
	VerificationManual   = "manual"
)

// AttendanceAttempt is the transient input to one pipeline invocation.
// It is never persisted.
type AttendanceAttempt struct {
	EmployeeID         string
	Timestamp          time.Time
	Photo              []byte
	Latitude           *float64
	Longitude          *float64
	UseFaceRecognition bool
}

// HasCoordinates reports whether the attempt carries a usable geocoordinate.
func (a *AttendanceAttempt) HasCoordinates() bool {
	return a.Latitude != nil && a.Longitude != nil
}

// Attendance is the persisted row: exactly one per employee per calendar day.
type Attendance struct {
	EmployeeBucket     int        `db:"employee_bucket"`
	EmployeeID         string     `db:"employee_id"`
	AttendanceDate     string     `db:"attendance_date"` // "2006-01-02"
	AttendanceID       string     `db:"attendance_id"`
	CheckInAt          time.Time  `db:"check_in_at"`
	Status             string     `db:"status"`
	WorkMode           string     `db:"work_mode"`
	VerificationMethod string     `db:"verification_method"`
	Latitude           *float64   `db:"latitude"`
	Longitude          *float64   `db:"longitude"`
	GeofenceDistanceM  *float64   `db:"geofence_distance_m"`
	FaceConfidence     *float64   `db:"face_confidence"`
	PhotoHash          string     `db:"photo_hash"`
	MinutesLate        int        `db:"minutes_late"`
	RequiresApproval   bool       `db:"requires_approval"`
	ApprovalStatus     string     `db:"approval_status"`
	IsFraudSuspected   bool       `db:"is_fraud_suspected"`
	FraudScore         int        `db:"fraud_score"`
	FlaggedReason      string     `db:"flagged_reason"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          *time.Time `db:"updated_at"`
}

// AttendanceDigest is the bounded history projection fed to the security
// scorer: just enough of a past row to run the pattern checks.
type AttendanceDigest struct {
	AttendanceDate   string
	CheckInAt        time.Time
	Latitude         *float64
	Longitude        *float64
	IsFraudSuspected bool
	RequiresApproval bool
}

// HasCoordinates reports whether the digest row was geotagged.
func (d AttendanceDigest) HasCoordinates() bool {
	return d.Latitude != nil && d.Longitude != nil
}
