// FILE: internal/service/analytics_consumer_service.go
package service

import (
	"context"
	"encoding/json"
	"log"

	"ai-docchat-be/internal/dto"
	"ai-docchat-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IAnalyticsConsumerService interface {
	Consume(ctx context.Context) error
}

// analyticsConsumerService records answered questions to the analytics log.
// It writes to its own file so the main application log stays clean.
type analyticsConsumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	logger    logger.ILogger
}

func NewAnalyticsConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	analyticsLogger logger.ILogger,
) IAnalyticsConsumerService {
	return &analyticsConsumerService{
		pubSub:    pubSub,
		topicName: topicName,
		logger:    analyticsLogger,
	}
}

func (s *analyticsConsumerService) Consume(ctx context.Context) error {
	messages, err := s.pubSub.Subscribe(ctx, s.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			s.processMessage(msg)
		}
	}()

	return nil
}

func (s *analyticsConsumerService) processMessage(msg *message.Message) {
	var payload dto.ChatAnalyticsMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("[ERROR] Failed to unmarshal analytics message: %v", err)
		msg.Ack()
		return
	}

	s.logger.Info("CHAT_ANALYTICS", "question answered", map[string]interface{}{
		"user_id":       payload.UserID,
		"intent":        payload.Intent,
		"passage_count": payload.PassageCount,
		"used_fallback": payload.UsedFallback,
		"asked_at":      payload.AskedAt,
	})
	msg.Ack()
}
