package app

import (
	"fmt"
	"path/filepath"

	compressApp "compress-service/ddd/application/app"
	"compress-service/ddd/domain/gateway"
	"compress-service/ddd/domain/repo"
	"compress-service/ddd/domain/service"
	"compress-service/ddd/infrastructure/database/persistence"
	"compress-service/ddd/infrastructure/executor"
	"compress-service/ddd/infrastructure/notify"
	"compress-service/ddd/infrastructure/session"
	"compress-service/ddd/infrastructure/storage"
	"compress-service/internal/resource"
	"compress-service/pkg/config"
	"compress-service/pkg/kafka"
	"compress-service/pkg/logger"
)

// Overrides replace the config-selected adapters, used by the local CLI.
type Overrides struct {
	Media    gateway.MediaResolver
	Sink     gateway.ArtifactSink
	Reporter gateway.Reporter
	OpsLog   gateway.OpsLog
}

// Stack is the assembled compression engine.
type Stack struct {
	App          compressApp.CompressApp
	Orchestrator *service.Orchestrator
	Supervisor   *executor.FFmpegSupervisor
}

// BuildStack 按配置装配会话存储、媒体源、产物落地、通知与历史记录。
// Resources must already be opened for any enabled backend.
func BuildStack(cfg *config.Config, ov Overrides) (*Stack, error) {
	jobs := session.NewJobRegistry()

	var store repo.SessionStore
	switch cfg.Session.Backend {
	case "redis":
		client := resource.DefaultRedisResource().Client()
		if client == nil {
			return nil, fmt.Errorf("session backend redis requires redis.enabled")
		}
		store = session.NewRedisStore(client, cfg.Session.TTL)
	case "", "memory":
		store = session.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}

	sessions := service.NewSessionService(store, jobs, service.MediaPolicy{
		MaxFileSize:       cfg.Compress.MaxFileSize,
		AllowedExtensions: cfg.Compress.AllowedExtensions,
	})

	media, sink := ov.Media, ov.Sink
	if minioRes := resource.DefaultMinioResource(); minioRes.Enabled() {
		if media == nil {
			media = storage.NewMinioMediaResolver(minioRes)
		}
		if sink == nil {
			sink = storage.NewMinioArtifactSink(minioRes)
		}
	}
	if media == nil {
		media = storage.NewLocalMediaResolver(cfg.Compress.MediaRoot)
	}
	if sink == nil {
		sink = storage.NewLocalDirSink(filepath.Join(cfg.Compress.WorkRoot, "out"))
	}

	reporter := ov.Reporter
	if reporter == nil {
		var kafkaReporter gateway.Reporter
		if cfg.Kafka.Enabled {
			kafkaReporter = notify.NewKafkaReporter(kafka.DefaultClient(), cfg.Kafka.Topics.CompressEvents)
		}
		reporter = notify.NewFanoutReporter(notify.NewLogReporter(), kafkaReporter)
	}

	opsLog := ov.OpsLog
	if opsLog == nil {
		if client := resource.DefaultRedisResource().Client(); cfg.Redis.Enabled && client != nil {
			opsLog = notify.NewRedisOpsLog(client)
		} else {
			opsLog = notify.NewLogOpsLog()
		}
	}

	var history repo.JobHistoryRepository
	if cfg.Database.Enabled {
		if db := resource.DefaultMysqlResource().MainDB(); db != nil {
			history = persistence.NewJobHistoryRepository(db)
		}
	}

	supervisor := executor.NewFFmpegSupervisor(cfg.Compress.FFmpeg)
	orch := service.NewOrchestrator(service.OrchestratorDeps{
		Sessions:   sessions,
		Jobs:       jobs,
		Transcoder: supervisor,
		Media:      media,
		Sink:       sink,
		Reporter:   reporter,
		OpsLog:     opsLog,
		History:    history,
	}, service.OrchestratorConfig{
		WorkRoot:          cfg.Compress.WorkRoot,
		PollInterval:      cfg.Compress.PollInterval,
		ProgressStep:      cfg.Compress.ProgressStep,
		ThumbnailExts:     cfg.Compress.ThumbnailExts,
		MaxConcurrentJobs: cfg.Compress.MaxConcurrentJobs,
		AdminUsers:        cfg.Compress.AdminUsers,
	})

	logger.Info("Compress stack assembled", map[string]interface{}{
		"session_backend": cfg.Session.Backend,
		"minio":           cfg.Minio.Enabled,
		"kafka":           cfg.Kafka.Enabled,
		"history":         history != nil,
		"work_root":       cfg.Compress.WorkRoot,
	})

	return &Stack{
		App:          compressApp.NewCompressApp(orch, history, cfg.Session.TTL),
		Orchestrator: orch,
		Supervisor:   supervisor,
	}, nil
}
