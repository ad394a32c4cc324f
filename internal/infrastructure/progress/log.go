package progress

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier reports progress through the logger; used by the CLI.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(l *zap.Logger) *LogNotifier { return &LogNotifier{log: l} }

func (n *LogNotifier) Push(_ context.Context, connectionID, message string) error {
	n.log.Info(message, zap.String("connection_id", connectionID))
	return nil
}
