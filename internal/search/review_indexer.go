package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"attendance-service/internal/client"
	"attendance-service/internal/config"
	"attendance-service/internal/models"
	"attendance-service/internal/util"
)

// ReviewDocument is what reviewers query when triaging flagged check-ins.
type ReviewDocument struct {
	AttendanceID   string    `json:"attendance_id"`
	EmployeeID     string    `json:"employee_id"`
	EmployeeName   string    `json:"employee_name"`
	Department     string    `json:"department"`
	AttendanceDate string    `json:"attendance_date"`
	Status         string    `json:"status"`
	WorkMode       string    `json:"work_mode"`
	FraudScore     int       `json:"fraud_score"`
	RiskLevel      string    `json:"risk_level"`
	FlaggedReason  string    `json:"flagged_reason"`
	ApprovalStatus string    `json:"approval_status"`
	CheckInTime    time.Time `json:"check_in_time"`
	IndexedAt      time.Time `json:"indexed_at"`
}

// ReviewIndexer pushes flagged or approval-pending attendance records into
// Elasticsearch for manual review. Indexing failures are logged, never
// surfaced to the check-in path.
type ReviewIndexer struct {
	es    *client.ESClient
	index string
}

func NewReviewIndexer(es *client.ESClient, cfg *config.ElasticsearchConfig) *ReviewIndexer {
	return &ReviewIndexer{es: es, index: cfg.ReviewIndex}
}

// IndexForReview indexes a record that needs reviewer attention.
func (i *ReviewIndexer) IndexForReview(employee *models.Employee, record *models.Attendance, level models.RiskLevel) {
	doc := ReviewDocument{
		AttendanceID:   record.AttendanceID,
		EmployeeID:     record.EmployeeID,
		EmployeeName:   employee.FullName,
		Department:     employee.Department,
		AttendanceDate: record.AttendanceDate,
		Status:         record.Status,
		WorkMode:       record.WorkMode,
		FraudScore:     record.FraudScore,
		RiskLevel:      string(level),
		FlaggedReason:  record.FlaggedReason,
		ApprovalStatus: record.ApprovalStatus,
		CheckInTime:    record.CheckInAt,
		IndexedAt:      time.Now().UTC(),
	}

	docID := fmt.Sprintf("%s:%s", record.EmployeeID, record.AttendanceDate)
	res, err := i.es.IndexDocument(i.index, docID, doc)
	if err != nil {
		util.Error("Failed to index attendance for review",
			zap.String("attendance_id", record.AttendanceID), zap.Error(err))
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		util.Error("Elasticsearch rejected review document",
			zap.String("attendance_id", record.AttendanceID),
			zap.String("status", res.Status()))
		return
	}

	util.Debug("Attendance indexed for review",
		zap.String("attendance_id", record.AttendanceID),
		zap.Int("fraud_score", record.FraudScore))
}

// ReviewQuery narrows a reviewer search. Zero-value fields are ignored.
type ReviewQuery struct {
	EmployeeID string
	RiskLevel  string
	Department string
	Limit      int
}

type searchHits struct {
	Hits struct {
		Hits []struct {
			Source ReviewDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// SearchReviews returns flagged records matching the query, newest first.
func (i *ReviewIndexer) SearchReviews(ctx context.Context, q ReviewQuery) ([]ReviewDocument, error) {
	filters := []map[string]interface{}{}
	if q.EmployeeID != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"employee_id": q.EmployeeID},
		})
	}
	if q.RiskLevel != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"risk_level": q.RiskLevel},
		})
	}
	if q.Department != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"department": q.Department},
		})
	}

	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	body := map[string]interface{}{
		"size": limit,
		"sort": []map[string]interface{}{
			{"check_in_time": map[string]interface{}{"order": "desc"}},
		},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"filter": filters},
		},
	}

	res, err := i.es.Search(ctx, i.index, body)
	if err != nil {
		return nil, fmt.Errorf("review search failed: %w", err)
	}

	var parsed searchHits
	if err := i.es.ParseResponse(res, &parsed); err != nil {
		return nil, fmt.Errorf("review search response invalid: %w", err)
	}

	docs := make([]ReviewDocument, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		docs = append(docs, hit.Source)
	}
	return docs, nil
}
