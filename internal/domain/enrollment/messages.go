package domain

import (
	"encoding/json"
	"fmt"
)

// MessageType discriminates the payloads carried on the work queue.
type MessageType string

const MessageTypeStudentEnrollment MessageType = "student-enrollment"

// Envelope is the JSON body of every work queue message.
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// StudentEnrollmentMessage asks the worker to enroll or unenroll one student
// in one class group. It is immutable once published.
type StudentEnrollmentMessage struct {
	StudentID         int64  `json:"studentId" validate:"required,gt=0"`
	ClassGroupID      int64  `json:"classGroupId" validate:"required,gt=0"`
	MajorID           int64  `json:"majorId" validate:"required,gt=0"`
	StartAcademicYear int    `json:"startAcademicYear" validate:"required,gt=0"`
	BatchID           string `json:"batchId" validate:"required"`
	IsRegistration    bool   `json:"isRegistration"`
}

// GroupKey is the FIFO partition key. Every message for one class group
// shares it so they are consumed strictly in publish order.
func (m StudentEnrollmentMessage) GroupKey() string {
	return GroupKeyForClassGroup(m.ClassGroupID)
}

// DeduplicationID is stable for a (batch, class group, action) triple.
func (m StudentEnrollmentMessage) DeduplicationID() string {
	return fmt.Sprintf("%s-%d-%s", m.BatchID, m.ClassGroupID, m.Action())
}

func (m StudentEnrollmentMessage) Action() EnrollmentAction {
	if m.IsRegistration {
		return ActionEnroll
	}
	return ActionUnenroll
}

func GroupKeyForClassGroup(classGroupID int64) string {
	return fmt.Sprintf("enrollment-%d", classGroupID)
}

// NewEnvelope wraps a typed payload.
func NewEnvelope(t MessageType, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", t, err)
	}
	return json.Marshal(Envelope{Type: t, Data: data})
}

// DecodeEnvelope parses the outer message and leaves Data for the handler
// registered for its type.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("malformed message envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("message envelope has no type")
	}
	return &env, nil
}
