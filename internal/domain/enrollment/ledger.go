package domain

import (
	"strconv"
	"time"
)

// StatusLedgerEntry is the client-visible progress record for one class
// group of one batch. It is never consulted for enrollment correctness.
type StatusLedgerEntry struct {
	BatchID         string           `json:"batchId" dynamodbav:"batchId"`
	ClassGroupID    string           `json:"classGroupId" dynamodbav:"classGroupId"`
	StudentID       int64            `json:"studentId" dynamodbav:"studentId"`
	SemesterID      int64            `json:"semesterId" dynamodbav:"semesterId"`
	Status          EnrollmentStatus `json:"status" dynamodbav:"status"`
	Action          EnrollmentAction `json:"action,omitempty" dynamodbav:"action,omitempty"`
	UpdatedAt       string           `json:"updatedAt" dynamodbav:"updatedAt"`
	RdbEnrollmentID *int64           `json:"rdbEnrollmentId,omitempty" dynamodbav:"rdbEnrollmentId,omitempty"`
	FailureReason   string           `json:"failureReason,omitempty" dynamodbav:"failureReason,omitempty"`
	// ExpiresAt is the document store TTL in epoch seconds.
	ExpiresAt int64 `json:"-" dynamodbav:"expiresAt,omitempty"`
}

// StatusLedgerUpdate carries the worker's terminal outcome for one entry.
type StatusLedgerUpdate struct {
	BatchID         string
	ClassGroupID    int64
	StudentID       int64
	Status          EnrollmentStatus
	Action          EnrollmentAction
	RdbEnrollmentID *int64
	FailureReason   string
	UpdatedAt       time.Time
}

// BatchStatusItem is the projection returned to pollers.
type BatchStatusItem struct {
	BatchID      string           `json:"batchId"`
	ClassGroupID string           `json:"classGroupId"`
	StudentID    int64            `json:"studentId"`
	SemesterID   int64            `json:"semesterId"`
	Status       EnrollmentStatus `json:"status"`
	UpdatedAt    string           `json:"updatedAt"`
}

func NewPendingEntry(batchID string, classGroupID, studentID, semesterID int64, action EnrollmentAction, now time.Time) *StatusLedgerEntry {
	return &StatusLedgerEntry{
		BatchID:      batchID,
		ClassGroupID: ClassGroupKey(classGroupID),
		StudentID:    studentID,
		SemesterID:   semesterID,
		Status:       EnrollmentStatusPending,
		Action:       action,
		UpdatedAt:    FormatLedgerTime(now),
	}
}

func (e *StatusLedgerEntry) Project() BatchStatusItem {
	return BatchStatusItem{
		BatchID:      e.BatchID,
		ClassGroupID: e.ClassGroupID,
		StudentID:    e.StudentID,
		SemesterID:   e.SemesterID,
		Status:       e.Status,
		UpdatedAt:    e.UpdatedAt,
	}
}

// Apply overwrites the outcome fields of e with u. A missing enrollment id
// leaves the previous one in place; the failure reason is always replaced.
func (e *StatusLedgerEntry) Apply(u *StatusLedgerUpdate) {
	e.Status = u.Status
	e.UpdatedAt = FormatLedgerTime(u.UpdatedAt)
	if u.Action != "" {
		e.Action = u.Action
	}
	if u.StudentID != 0 {
		e.StudentID = u.StudentID
	}
	if u.RdbEnrollmentID != nil {
		id := *u.RdbEnrollmentID
		e.RdbEnrollmentID = &id
	}
	e.FailureReason = u.FailureReason
}

// NewEntryFromUpdate builds an entry for an outcome whose PENDING record was
// never written.
func NewEntryFromUpdate(u *StatusLedgerUpdate) *StatusLedgerEntry {
	e := &StatusLedgerEntry{
		BatchID:      u.BatchID,
		ClassGroupID: ClassGroupKey(u.ClassGroupID),
	}
	e.Apply(u)
	return e
}

// ClassGroupKey renders the ledger sort key.
func ClassGroupKey(classGroupID int64) string {
	return strconv.FormatInt(classGroupID, 10)
}

func FormatLedgerTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
