package scylla

import (
	"context"
	"errors"

	"attendance-service/internal/models"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAttendanceExists is returned by the conditional insert when an
	// attendance row already exists for the (employee, date) key.
	ErrAttendanceExists = errors.New("attendance already recorded for this date")
)

// PersonnelRepository is the read-only view of employee reference data this
// service consumes. Ownership stays with the personnel subsystem.
type PersonnelRepository interface {
	GetEmployee(ctx context.Context, employeeID string) (*models.Employee, error)
	GetShiftWindow(ctx context.Context, shiftID string) (*models.ShiftWindow, error)
	GetWFHOverride(ctx context.Context, employeeID, date string) (*models.WFHOverride, error)
}

// AttendanceRepository persists attendance rows with a uniqueness guarantee
// on (employee_id, attendance_date) and serves bounded history reads.
type AttendanceRepository interface {
	// Insert writes the row atomically; ErrAttendanceExists when a row
	// already exists for the same employee and date.
	Insert(ctx context.Context, row *models.Attendance) error
	GetForDate(ctx context.Context, employeeID, date string) (*models.Attendance, error)
	// RecentDigests returns digests for rows on or after sinceDate, newest
	// first.
	RecentDigests(ctx context.Context, employeeID, sinceDate string) ([]models.AttendanceDigest, error)
}

// ProfileImageRepository stores biometric reference images, encrypted at
// rest.
type ProfileImageRepository interface {
	GetReferenceImage(ctx context.Context, employeeID string) ([]byte, error)
	PutReferenceImage(ctx context.Context, employeeID string, image []byte) error
}
