package notify

import (
	"context"

	"github.com/google/uuid"

	"compress-service/ddd/domain/gateway"
	"compress-service/pkg/logger"
)

type logOpsLog struct{}

// NewLogOpsLog mirrors operator notes into the service log.
func NewLogOpsLog() gateway.OpsLog { return logOpsLog{} }

func (logOpsLog) Post(_ context.Context, text string) (string, error) {
	id := uuid.NewString()
	logger.Info(text, map[string]interface{}{"note_id": id, "channel": "ops"})
	return id, nil
}

func (logOpsLog) Retire(_ context.Context, noteID string) error {
	logger.Debug("Ops note retired", map[string]interface{}{"note_id": noteID})
	return nil
}
