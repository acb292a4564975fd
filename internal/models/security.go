package models

import "time"

// RiskLevel buckets a fraud score for reporting.
type RiskLevel string

const (
	RiskMinimal RiskLevel = "MINIMAL"
	RiskLow     RiskLevel = "LOW"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskHigh    RiskLevel = "HIGH"
)

// RiskLevelForScore maps a fraud score to its risk level.
// Thresholds: <20 MINIMAL, <40 LOW, <70 MEDIUM, >=70 HIGH.
func RiskLevelForScore(score int) RiskLevel {
	switch {
	case score >= 70:
		return RiskHigh
	case score >= 40:
		return RiskMedium
	case score >= 20:
		return RiskLow
	default:
		return RiskMinimal
	}
}

// SecurityAssessment is the composite output of the security scorer for one
// check-in attempt. Computed fresh per attempt and never persisted as a
// whole; the score and flagged reasons are folded into the attendance row.
type SecurityAssessment struct {
	Warnings       []string  `json:"warnings"`
	CriticalIssues []string  `json:"critical_issues"`
	FraudScore     int       `json:"fraud_score"`
	RiskLevel      RiskLevel `json:"risk_level"`
	AssessedAt     time.Time `json:"assessed_at"`
}

// Passed reports whether the assessment clears the pipeline gate:
// no critical issues and a fraud score under 70.
func (a *SecurityAssessment) Passed() bool {
	return len(a.CriticalIssues) == 0 && a.FraudScore < 70
}

// SecurityEvent is the audit row written to ClickHouse for every assessment.
type SecurityEvent struct {
	EventBucket int       `db:"event_bucket"`
	EmployeeID  string    `db:"employee_id"`
	EventDate   string    `db:"event_date"`
	EventTime   time.Time `db:"event_time"`
	EventType   string    `db:"event_type"`
	RiskScore   int       `db:"risk_score"`
	RiskLevel   string    `db:"risk_level"`
	Passed      bool      `db:"passed"`
	Details     string    `db:"details"`
}
