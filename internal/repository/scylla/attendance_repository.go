package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"attendance-service/internal/bucketing"
	"attendance-service/internal/models"
	"attendance-service/internal/util"
)

// ScyllaAttendanceRepository persists one attendance row per employee per
// calendar day. Uniqueness is enforced by a lightweight transaction on the
// insert, so two racing check-ins can never both create a row.
type ScyllaAttendanceRepository struct {
	client    *ScyllaClient
	bucketing *bucketing.Manager
}

var _ AttendanceRepository = (*ScyllaAttendanceRepository)(nil)

func NewAttendanceRepository(client *ScyllaClient, bucketing *bucketing.Manager) *ScyllaAttendanceRepository {
	return &ScyllaAttendanceRepository{
		client:    client,
		bucketing: bucketing,
	}
}

const insertAttendanceCQL = `
    INSERT INTO attendance_by_day (
        employee_bucket, employee_id, attendance_date, attendance_id,
        check_in_at, status, work_mode, verification_method, latitude,
        longitude, geofence_distance_m, face_confidence, photo_hash,
        minutes_late, requires_approval, approval_status,
        is_fraud_suspected, fraud_score, flagged_reason, created_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    IF NOT EXISTS`

func (r *ScyllaAttendanceRepository) Insert(ctx context.Context, row *models.Attendance) error {
	if row.AttendanceID == "" {
		row.AttendanceID = uuid.New().String()
	}
	row.EmployeeBucket = r.bucketing.EmployeeBucket(row.EmployeeID)
	row.CreatedAt = time.Now().UTC()

	query := r.client.Session.Query(insertAttendanceCQL,
		row.EmployeeBucket, row.EmployeeID, row.AttendanceDate, row.AttendanceID,
		row.CheckInAt, row.Status, row.WorkMode, row.VerificationMethod,
		row.Latitude, row.Longitude, row.GeofenceDistanceM, row.FaceConfidence,
		row.PhotoHash, row.MinutesLate, row.RequiresApproval, row.ApprovalStatus,
		row.IsFraudSuspected, row.FraudScore, row.FlaggedReason, row.CreatedAt,
	).WithContext(ctx).SerialConsistency(gocql.Serial)

	applied, err := query.MapScanCAS(map[string]interface{}{})
	if err != nil {
		util.Error("Failed to insert attendance row",
			zap.String("employee_id", row.EmployeeID),
			zap.String("date", row.AttendanceDate),
			zap.Error(err))
		return fmt.Errorf("failed to insert attendance row: %w", err)
	}
	if !applied {
		return ErrAttendanceExists
	}

	util.Info("Attendance row created",
		zap.String("employee_id", row.EmployeeID),
		zap.String("date", row.AttendanceDate),
		zap.String("status", row.Status),
		zap.Bool("fraud_suspected", row.IsFraudSuspected))

	return nil
}

func (r *ScyllaAttendanceRepository) GetForDate(ctx context.Context, employeeID, date string) (*models.Attendance, error) {
	row := &models.Attendance{}
	bucket := r.bucketing.EmployeeBucket(employeeID)

	query := r.client.Prepared.GetAttendance.WithContext(ctx).Bind(bucket, employeeID, date)

	err := r.client.ScanWithRetry(query,
		&row.EmployeeBucket, &row.EmployeeID, &row.AttendanceDate,
		&row.AttendanceID, &row.CheckInAt, &row.Status, &row.WorkMode,
		&row.VerificationMethod, &row.Latitude, &row.Longitude,
		&row.GeofenceDistanceM, &row.FaceConfidence, &row.PhotoHash,
		&row.MinutesLate, &row.RequiresApproval, &row.ApprovalStatus,
		&row.IsFraudSuspected, &row.FraudScore, &row.FlaggedReason,
		&row.CreatedAt)

	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrNotFound
		}
		util.Error("Failed to get attendance row",
			zap.String("employee_id", employeeID),
			zap.String("date", date),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get attendance row: %w", err)
	}

	return row, nil
}

func (r *ScyllaAttendanceRepository) RecentDigests(ctx context.Context, employeeID, sinceDate string) ([]models.AttendanceDigest, error) {
	bucket := r.bucketing.EmployeeBucket(employeeID)

	iter := r.client.Prepared.GetRecentDigests.WithContext(ctx).
		Bind(bucket, employeeID, sinceDate).Iter()

	var digests []models.AttendanceDigest
	var d models.AttendanceDigest
	for iter.Scan(&d.AttendanceDate, &d.CheckInAt, &d.Latitude, &d.Longitude,
		&d.IsFraudSuspected, &d.RequiresApproval) {
		digests = append(digests, d)
		d = models.AttendanceDigest{}
	}

	if err := iter.Close(); err != nil {
		util.Error("Failed to read attendance history",
			zap.String("employee_id", employeeID),
			zap.String("since", sinceDate),
			zap.Error(err))
		return nil, fmt.Errorf("failed to read attendance history: %w", err)
	}

	return digests, nil
}
