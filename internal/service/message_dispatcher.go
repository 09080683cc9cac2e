package service

import (
	"context"
	"encoding/json"
	"fmt"

	domain "course-enrollment/internal/domain/enrollment"
	interfaces "course-enrollment/internal/interfaces/infrastructure"
	serviceInterfaces "course-enrollment/internal/interfaces/service"
	"course-enrollment/pkg/logger"
	"course-enrollment/pkg/validator"
)

// MessageHandler processes one decoded payload. It returns an error only when
// the delivery should be retried.
type MessageHandler func(ctx context.Context, data json.RawMessage, d *interfaces.Delivery) error

// MessageDispatcher routes queue deliveries to the handler registered for the
// envelope type. Malformed and unknown messages are logged and acknowledged.
type MessageDispatcher struct {
	handlers map[domain.MessageType]MessageHandler
}

func NewMessageDispatcher(worker serviceInterfaces.EnrollmentWorker) *MessageDispatcher {
	d := &MessageDispatcher{handlers: make(map[domain.MessageType]MessageHandler)}
	d.Register(domain.MessageTypeStudentEnrollment, studentEnrollmentHandler(worker))
	return d
}

func (m *MessageDispatcher) Register(t domain.MessageType, h MessageHandler) {
	m.handlers[t] = h
}

// Handle is the DeliveryHandler passed to a queue consumer.
func (m *MessageDispatcher) Handle(ctx context.Context, d *interfaces.Delivery) error {
	env, err := domain.DecodeEnvelope(d.Body)
	if err != nil {
		logger.Error("Dropping message %s: %v", d.ID, err)
		return nil
	}

	h, ok := m.handlers[env.Type]
	if !ok {
		logger.Error("Dropping message %s with unknown type %q", d.ID, env.Type)
		return nil
	}
	return h(ctx, env.Data, d)
}

func studentEnrollmentHandler(worker serviceInterfaces.EnrollmentWorker) MessageHandler {
	return func(ctx context.Context, data json.RawMessage, d *interfaces.Delivery) error {
		var msg domain.StudentEnrollmentMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Error("Dropping message %s: malformed %s payload: %v", d.ID, domain.MessageTypeStudentEnrollment, err)
			return nil
		}
		if err := validator.ValidateStruct(&msg); err != nil {
			logger.Error("Dropping message %s: %s", d.ID, validator.Summary(err))
			return nil
		}
		if msg.GroupKey() != d.GroupKey && d.GroupKey != "" {
			logger.Warn("Message %s for class group %d arrived on group %s", d.ID, msg.ClassGroupID, d.GroupKey)
		}

		if _, err := worker.Process(ctx, &msg, d.Final); err != nil {
			return fmt.Errorf("process %s: %w", msg.DeduplicationID(), err)
		}
		return nil
	}
}
