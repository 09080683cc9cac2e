package service

import (
	"context"
	"errors"
	"testing"

	domain "course-enrollment/internal/domain/enrollment"
	interfaces "course-enrollment/internal/interfaces/infrastructure"
	serviceInterfaces "course-enrollment/internal/interfaces/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWorker struct {
	messages []domain.StudentEnrollmentMessage
	finals   []bool
	err      error
}

func (w *recordingWorker) Process(ctx context.Context, msg *domain.StudentEnrollmentMessage, finalAttempt bool) (*serviceInterfaces.WorkResult, error) {
	w.messages = append(w.messages, *msg)
	w.finals = append(w.finals, finalAttempt)
	if w.err != nil {
		return nil, w.err
	}
	return &serviceInterfaces.WorkResult{Status: domain.EnrollmentStatusEnrolled}, nil
}

func delivery(t *testing.T, body []byte, final bool) *interfaces.Delivery {
	t.Helper()
	return &interfaces.Delivery{ID: "m1", GroupKey: "enrollment-11", Body: body, Attempt: 1, Final: final}
}

func TestMessageDispatcher_RoutesStudentEnrollment(t *testing.T) {
	worker := &recordingWorker{}
	d := NewMessageDispatcher(worker)

	body, err := domain.NewEnvelope(domain.MessageTypeStudentEnrollment, enrollMsg(55, 11, "b1"))
	require.NoError(t, err)

	require.NoError(t, d.Handle(context.Background(), delivery(t, body, true)))
	require.Len(t, worker.messages, 1)
	assert.Equal(t, *enrollMsg(55, 11, "b1"), worker.messages[0])
	assert.Equal(t, []bool{true}, worker.finals)
}

func TestMessageDispatcher_DropsBadMessages(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"no type", `{"data":{}}`},
		{"unknown type", `{"type":"course-sync","data":{}}`},
		{"malformed payload", `{"type":"student-enrollment","data":{"studentId":"x"}}`},
		{"invalid payload", `{"type":"student-enrollment","data":{"studentId":55,"classGroupId":11}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			worker := &recordingWorker{}
			d := NewMessageDispatcher(worker)

			assert.NoError(t, d.Handle(context.Background(), delivery(t, []byte(tt.body), false)))
			assert.Empty(t, worker.messages)
		})
	}
}

func TestMessageDispatcher_ReturnsRetryableErrors(t *testing.T) {
	boom := errors.New("lock timeout")
	worker := &recordingWorker{err: boom}
	d := NewMessageDispatcher(worker)

	body, err := domain.NewEnvelope(domain.MessageTypeStudentEnrollment, unenrollMsg(55, 11, "b1"))
	require.NoError(t, err)

	err = d.Handle(context.Background(), delivery(t, body, false))
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "b1-11-UNENROLL")
}
