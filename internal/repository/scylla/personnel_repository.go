package scylla

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"attendance-service/internal/bucketing"
	"attendance-service/internal/models"
	"attendance-service/internal/util"
)

// ScyllaPersonnelRepository reads employee, shift, and WFH reference data.
type ScyllaPersonnelRepository struct {
	client    *ScyllaClient
	bucketing *bucketing.Manager
}

var _ PersonnelRepository = (*ScyllaPersonnelRepository)(nil)

func NewPersonnelRepository(client *ScyllaClient, bucketing *bucketing.Manager) *ScyllaPersonnelRepository {
	return &ScyllaPersonnelRepository{
		client:    client,
		bucketing: bucketing,
	}
}

func (r *ScyllaPersonnelRepository) GetEmployee(ctx context.Context, employeeID string) (*models.Employee, error) {
	employee := &models.Employee{}
	bucket := r.bucketing.EmployeeBucket(employeeID)

	query := r.client.Prepared.GetEmployee.WithContext(ctx).Bind(bucket, employeeID)

	err := r.client.ScanWithRetry(query,
		&employee.EmployeeBucket, &employee.EmployeeID, &employee.FullName,
		&employee.Email, &employee.Department, &employee.ShiftID,
		&employee.IsActive, &employee.CreatedAt, &employee.UpdatedAt)

	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrNotFound
		}
		util.Error("Failed to get employee",
			zap.String("employee_id", employeeID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}

	return employee, nil
}

func (r *ScyllaPersonnelRepository) GetShiftWindow(ctx context.Context, shiftID string) (*models.ShiftWindow, error) {
	window := &models.ShiftWindow{}

	query := r.client.Prepared.GetShiftWindow.WithContext(ctx).Bind(shiftID)

	err := r.client.ScanWithRetry(query,
		&window.ShiftID, &window.Name, &window.StartTime,
		&window.EndTime, &window.GraceMinutes)

	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrNotFound
		}
		util.Error("Failed to get shift window",
			zap.String("shift_id", shiftID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get shift window: %w", err)
	}

	return window, nil
}

func (r *ScyllaPersonnelRepository) GetWFHOverride(ctx context.Context, employeeID, date string) (*models.WFHOverride, error) {
	override := &models.WFHOverride{}

	query := r.client.Prepared.GetWFHOverride.WithContext(ctx).Bind(employeeID, date)

	err := r.client.ScanWithRetry(query,
		&override.EmployeeID, &override.OverrideDate, &override.ApprovedBy,
		&override.Reason, &override.CreatedAt)

	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrNotFound
		}
		util.Error("Failed to get WFH override",
			zap.String("employee_id", employeeID),
			zap.String("date", date),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get WFH override: %w", err)
	}

	return override, nil
}
