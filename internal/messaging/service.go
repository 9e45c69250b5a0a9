// Package messaging delivers outbound messages to customers.
package messaging

import (
	"context"
	"log/slog"
)

// Service is the outbound delivery boundary. The scheduler's dispatcher and
// the API layer depend on this interface, not on a concrete provider.
type Service interface {
	SendMessage(ctx context.Context, to, body string) error
}

// LogService is a delivery backend that only logs. Used in development and
// whenever no provider credentials are configured.
type LogService struct{}

// NewLogService creates a log-only messaging service.
func NewLogService() *LogService {
	return &LogService{}
}

// SendMessage logs the message instead of delivering it.
func (s *LogService) SendMessage(ctx context.Context, to, body string) error {
	slog.Info("LogService.SendMessage: outbound message", "to", to, "body", body)
	return nil
}
