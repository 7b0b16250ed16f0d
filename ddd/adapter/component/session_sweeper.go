package component

import (
	"context"
	"time"

	appsvc "compress-service/ddd/application/app"
	"compress-service/pkg/logger"
	"compress-service/pkg/manager"
	"compress-service/pkg/task"
)

// SessionSweeperPlugin 定期清理超时未启动的会话
type SessionSweeperPlugin struct{}

func (p *SessionSweeperPlugin) Name() string { return "sessionSweeper" }

func (p *SessionSweeperPlugin) MustCreateComponent(deps *manager.Dependencies) manager.Component {
	if deps == nil || deps.Config == nil {
		return nil
	}
	app, ok := deps.CompressApp.(appsvc.CompressApp)
	if !ok {
		panic("sessionSweeper requires CompressApp")
	}
	return newSessionSweeper(app, deps.Config.Session.SweepInterval)
}

type sessionSweeper struct {
	periodic *task.Periodic
}

func newSessionSweeper(app appsvc.CompressApp, interval time.Duration) *sessionSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &sessionSweeper{
		periodic: task.NewPeriodic("sessionSweeper", interval, func(ctx context.Context) {
			if _, err := app.SweepSessions(ctx); err != nil {
				logger.Warnf("session sweep failed error=%v", err)
			}
		}),
	}
}

func (s *sessionSweeper) Start() error {
	return s.periodic.Start(context.Background())
}

func (s *sessionSweeper) Stop() error {
	return s.periodic.Stop()
}

func (s *sessionSweeper) GetName() string { return s.periodic.Name() }
