package scylla

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"attendance-service/internal/config"
	"attendance-service/internal/util"
)

// PreparedStatements holds the statements the repositories actually run.
type PreparedStatements struct {
	GetEmployee        *gocql.Query
	GetShiftWindow     *gocql.Query
	GetWFHOverride     *gocql.Query
	GetAttendance      *gocql.Query
	GetRecentDigests   *gocql.Query
	GetProfileImage    *gocql.Query
	UpsertProfileImage *gocql.Query
}

type ScyllaClient struct {
	Session      *gocql.Session
	config       *config.ScyllaConfig
	Prepared     *PreparedStatements
	prepareMutex sync.RWMutex
	isPrepared   bool
}

func NewScyllaClient(cfg *config.Config, logger *zap.Logger) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Nodes...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 4
	cluster.SocketKeepalive = 30 * time.Second
	cluster.MaxPreparedStmts = 1000
	cluster.MaxRoutingKeyInfo = 1000
	cluster.PageSize = 1000
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	if scyllaConfig.Username != "" && scyllaConfig.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{
		Session: session,
		config:  &scyllaConfig,
	}

	if err := client.prepareStatements(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	util.Info("ScyllaDB client initialized with prepared statements",
		zap.Strings("nodes", scyllaConfig.Nodes),
		zap.String("keyspace", scyllaConfig.Keyspace))

	return client, nil
}

func (s *ScyllaClient) prepareStatements() error {
	s.prepareMutex.Lock()
	defer s.prepareMutex.Unlock()

	if s.isPrepared {
		return nil
	}

	prepared := &PreparedStatements{}

	prepared.GetEmployee = s.Session.Query(`
        SELECT employee_bucket, employee_id, full_name, email, department,
            shift_id, is_active, created_at, updated_at
        FROM employees WHERE employee_bucket = ? AND employee_id = ?`)

	prepared.GetShiftWindow = s.Session.Query(`
        SELECT shift_id, name, start_time, end_time, grace_minutes
        FROM shift_windows WHERE shift_id = ?`)

	prepared.GetWFHOverride = s.Session.Query(`
        SELECT employee_id, override_date, approved_by, reason, created_at
        FROM wfh_overrides WHERE employee_id = ? AND override_date = ?`)

	prepared.GetAttendance = s.Session.Query(`
        SELECT employee_bucket, employee_id, attendance_date, attendance_id,
            check_in_at, status, work_mode, verification_method, latitude,
            longitude, geofence_distance_m, face_confidence, photo_hash,
            minutes_late, requires_approval, approval_status,
            is_fraud_suspected, fraud_score, flagged_reason, created_at
        FROM attendance_by_day
        WHERE employee_bucket = ? AND employee_id = ? AND attendance_date = ?`)

	prepared.GetRecentDigests = s.Session.Query(`
        SELECT attendance_date, check_in_at, latitude, longitude,
            is_fraud_suspected, requires_approval
        FROM attendance_by_day
        WHERE employee_bucket = ? AND employee_id = ? AND attendance_date >= ?
        ORDER BY attendance_date DESC`)

	prepared.GetProfileImage = s.Session.Query(`
        SELECT employee_id, image_encrypted, encrypted_dek, key_id,
            content_hash, updated_at
        FROM profile_images WHERE employee_id = ?`)

	prepared.UpsertProfileImage = s.Session.Query(`
        INSERT INTO profile_images (
            employee_id, image_encrypted, encrypted_dek, key_id,
            content_hash, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?)`)

	s.Prepared = prepared
	s.isPrepared = true

	util.Info("ScyllaDB prepared statements created successfully")
	return nil
}

func (s *ScyllaClient) Close() {
	if s.Session != nil {
		s.Session.Close()
		util.Info("ScyllaDB client closed")
	}
}

func (s *ScyllaClient) Query(stmt string, values ...interface{}) *gocql.Query {
	return s.Session.Query(stmt, values...)
}

func (s *ScyllaClient) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var clusterName string
	err := s.Session.Query(`SELECT cluster_name FROM system.local`).WithContext(ctx).Scan(&clusterName)
	if err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}

	util.Debug("ScyllaDB health check passed", zap.String("cluster_name", clusterName))
	return nil
}

func (s *ScyllaClient) ExecuteWithRetry(query *gocql.Query, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if err := query.Exec(); err != nil {
			lastErr = err
			if i < maxRetries {
				time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
				continue
			}
		} else {
			return nil
		}
	}
	return lastErr
}

func (s *ScyllaClient) ScanWithRetry(query *gocql.Query, dest ...interface{}) error {
	var lastErr error
	for i := 0; i < 3; i++ {
		if err := query.Scan(dest...); err != nil {
			lastErr = err
			if i < 2 {
				time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
				continue
			}
		} else {
			return nil
		}
	}
	return lastErr
}
