package models

import "time"

// Employee is owned by the personnel subsystem; this service only reads it.
type Employee struct {
	EmployeeBucket int        `db:"employee_bucket"`
	EmployeeID     string     `db:"employee_id"`
	FullName       string     `db:"full_name"`
	Email          string     `db:"email"`
	Department     string     `db:"department"`
	ShiftID        string     `db:"shift_id"`
	IsActive       bool       `db:"is_active"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      *time.Time `db:"updated_at"`
}

// ShiftWindow is immutable reference data describing the normal arrival
// interval [StartTime, EndTime] plus the grace period after EndTime.
type ShiftWindow struct {
	ShiftID      string `db:"shift_id"`
	Name         string `db:"name"`
	StartTime    string `db:"start_time"` // "HH:MM", local office time
	EndTime      string `db:"end_time"`   // "HH:MM"
	GraceMinutes int    `db:"grace_minutes"`
}

// WFHOverride excuses an employee from the office geofence on one date.
// Looked up, never mutated, by the check-in pipeline.
type WFHOverride struct {
	EmployeeID   string    `db:"employee_id"`
	OverrideDate string    `db:"override_date"` // "2006-01-02"
	ApprovedBy   string    `db:"approved_by"`
	Reason       string    `db:"reason"`
	CreatedAt    time.Time `db:"created_at"`
}
