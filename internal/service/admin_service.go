// FILE: internal/service/admin_service.go
package service

import (
	"context"

	"ai-docchat-be/internal/dto"
	"ai-docchat-be/internal/pkg/logger"
	"ai-docchat-be/pkg/session"
)

type IAdminService interface {
	GetSessionStats(ctx context.Context) (*dto.SessionStatsResponse, error)
	ClearSession(ctx context.Context, userID string) (*dto.ClearSessionResponse, error)
	ClearAllSessions(ctx context.Context) (*dto.ClearAllSessionsResponse, error)
	GetLogs(ctx context.Context, level string, limit, offset int) ([]logger.LogEntry, error)
}

// adminService exposes operational controls over the in-memory
// conversation store and the application log.
type adminService struct {
	sessionStore *session.Store
	logger       logger.ILogger
}

func NewAdminService(sessionStore *session.Store, logger logger.ILogger) IAdminService {
	return &adminService{
		sessionStore: sessionStore,
		logger:       logger,
	}
}

func (s *adminService) GetSessionStats(ctx context.Context) (*dto.SessionStatsResponse, error) {
	stats := s.sessionStore.Stats()
	return &dto.SessionStatsResponse{
		ActiveSessions:       stats.ActiveSessions,
		TotalMessages:        stats.TotalMessages,
		EstimatedMemoryBytes: stats.EstimatedMemoryBytes,
	}, nil
}

func (s *adminService) ClearSession(ctx context.Context, userID string) (*dto.ClearSessionResponse, error) {
	cleared := s.sessionStore.Clear(userID)
	s.logger.Info("ADMIN", "session cleared", map[string]interface{}{
		"user_id": userID,
		"existed": cleared,
	})
	return &dto.ClearSessionResponse{UserID: userID, Cleared: cleared}, nil
}

func (s *adminService) ClearAllSessions(ctx context.Context) (*dto.ClearAllSessionsResponse, error) {
	count := s.sessionStore.ClearAll()
	s.logger.Warn("ADMIN", "all sessions cleared", map[string]interface{}{
		"count": count,
	})
	return &dto.ClearAllSessionsResponse{ClearedSessions: count}, nil
}

func (s *adminService) GetLogs(ctx context.Context, level string, limit, offset int) ([]logger.LogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.logger.GetLogs(level, limit, offset)
}
