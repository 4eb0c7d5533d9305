package service

import (
	"context"

	"ai-docchat-be/internal/pkg/logger"
	"ai-docchat-be/pkg/events"

	pktNats "ai-docchat-be/pkg/nats"
)

// IAuditConsumerService keeps a durable audit trail of bus events.
type IAuditConsumerService interface {
	StartListening() error
}

type auditConsumerService struct {
	subscriber *pktNats.Subscriber
	logger     logger.ILogger
}

func NewAuditConsumerService(subscriber *pktNats.Subscriber, logger logger.ILogger) IAuditConsumerService {
	return &auditConsumerService{
		subscriber: subscriber,
		logger:     logger,
	}
}

// StartListening attaches a durable consumer to the events stream and
// records every event it sees. The durable name makes restarts resume
// where the previous process left off.
func (s *auditConsumerService) StartListening() error {
	if s.subscriber == nil {
		s.logger.Warn("AUDIT", "NATS subscriber unavailable, audit trail disabled", nil)
		return nil
	}

	return s.subscriber.Subscribe("events.>", "audit-logger", func(ctx context.Context, event events.Event) error {
		s.logger.Info("AUDIT", event.EventType(), event.Payload())
		return nil
	})
}
