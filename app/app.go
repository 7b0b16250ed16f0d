package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/flock"

	compressGrpc "compress-service/ddd/adapter/grpc"
	"compress-service/pkg/config"
	"compress-service/pkg/logger"
	"compress-service/pkg/manager"
	"compress-service/pkg/observability"
	"compress-service/pkg/registry"

	_ "compress-service/ddd/adapter/component"
	_ "compress-service/ddd/adapter/http"

	// 导入资源包以触发init函数
	_ "compress-service/internal/resource"
)

const serviceName = "compress-service"

func Run() {
	// 先使用标准输出确保能看到日志
	fmt.Println("[STARTUP] Starting compress service...")

	// 加载配置
	fmt.Println("[STARTUP] Loading config file...")
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("[ERROR] Failed to load config (%s): %v\n", cfgPath, err)
		os.Exit(1)
	}
	// 设置全局配置（必须在资源管理器初始化之前）
	config.SetGlobalConfig(cfg)
	fmt.Printf("[STARTUP] Config file loaded: %s\n", cfgPath)

	fmt.Println("[STARTUP] Initializing logger...")
	logService := logger.NewLogger(cfg)
	logger.SetGlobalLogger(logService)
	fmt.Println("[STARTUP] Logger initialized")

	logger.Debug("Logger initialized", map[string]interface{}{
		"level":  cfg.Log.Level,
		"format": cfg.Log.Format,
		"output": cfg.Log.Output,
	})

	var profiler *observability.Profiler
	if cfg.Profiling.Enabled {
		profiler = observability.StartProfiling(serviceName, cfg.Profiling.ServerAddress)
	}

	// 同一个工作目录只允许一个实例，避免互相清理临时文件
	if err := os.MkdirAll(cfg.Compress.WorkRoot, 0o755); err != nil {
		logger.Fatal(fmt.Sprintf("Failed to create work root dir=%s error=%v", cfg.Compress.WorkRoot, err))
	}
	lockPath := filepath.Join(cfg.Compress.WorkRoot, "compress-service.lock")
	workLock := flock.New(lockPath)
	locked, err := workLock.TryLock()
	if err != nil {
		logger.Fatal(fmt.Sprintf("Failed to acquire work root lock path=%s error=%v", lockPath, err))
	}
	if !locked {
		logger.Fatal(fmt.Sprintf("Another instance holds the work root lock path=%s", lockPath))
	}

	// 资源管理器初始化
	logger.Infof("Initializing resource manager...")
	manager.MustInitResources()
	logger.Infof("Resource manager initialized")

	stack, err := BuildStack(cfg, Overrides{})
	if err != nil {
		logger.Fatal(fmt.Sprintf("Failed to assemble compress stack error=%v", err))
	}

	// 检查 FFmpeg 是否可用，直接在启动阶段失败
	checkCtx, cancelCheck := context.WithTimeout(context.Background(), 10*time.Second)
	version, err := stack.Supervisor.CheckBinary(checkCtx)
	cancelCheck()
	if err != nil {
		logger.Fatal(fmt.Sprintf("FFmpeg binary not usable, please install or set compress.ffmpeg.binary_path error=%v", err))
	}
	logger.Infof("FFmpeg detected version=%s", version)

	deps := &manager.Dependencies{
		Config:      cfg,
		CompressApp: stack.App,
	}

	logger.Infof("Initializing components...")
	manager.MustInitComponents(deps)
	logger.Infof("All components initialized")

	var healthServer *compressGrpc.HealthServer
	if cfg.GRPCServer.Enabled {
		healthServer = compressGrpc.NewHealthServer()
		if err := healthServer.Start(cfg.GRPCServer); err != nil {
			logger.Fatal(fmt.Sprintf("Failed to start gRPC health server error=%v", err))
		}
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	logger.Infof("Registering routes...")
	manager.RegisterAllRoutes(router)
	logger.Infof("Routes registered")

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         httpAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(fmt.Sprintf("Failed to start HTTP server error=%v", err))
		}
	}()
	logger.Infof("HTTP server started address=%s service=%s health_url=%s api_url=%s", httpAddr, serviceName,
		fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port), fmt.Sprintf("http://localhost:%d/api/v1", cfg.Server.Port))

	var svcRegistry *registry.ServiceRegistry
	if cfg.ServiceRegistry.Enabled {
		svcRegistry = registerInstance(cfg)
	}
	if healthServer != nil {
		healthServer.SetServing(true)
	}

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infof("Received shutdown signal, shutting down server...")

	if healthServer != nil {
		healthServer.SetServing(false)
	}
	if svcRegistry != nil {
		if err := svcRegistry.Deregister(); err != nil {
			logger.Warnf("Service deregister failed error=%v", err)
		}
	}

	// 先停止消费者和定时任务，不再接收新任务
	logger.Infof("Shutting down components...")
	manager.Shutdown()
	logger.Infof("Components closed")

	// 取消运行中的任务并等待清理
	jobCtx, cancelJobs := context.WithTimeout(context.Background(), cfg.Compress.ShutdownGrace)
	if err := stack.App.Shutdown(jobCtx); err != nil {
		logger.Warnf("Active jobs did not finish cleanup in time error=%v", err)
	}
	cancelJobs()

	// 设置5秒超时
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to close error=%v", err)
	}
	if healthServer != nil {
		healthServer.Stop()
	}

	manager.CloseResources()
	if err := workLock.Unlock(); err != nil {
		logger.Warnf("Failed to release work root lock error=%v", err)
	}
	profiler.Stop()

	logger.Infof("Server exited safely")

	// 关闭日志服务
	logger.Infof("Closing logger...")
	if logService != nil {
		logService.Close()
	}

	fmt.Println("[SHUTDOWN] Compress service exited safely")
}

func registerInstance(cfg *config.Config) *registry.ServiceRegistry {
	hostname, _ := os.Hostname()
	host := cfg.ServiceRegistry.RegisterHost
	if host == "" {
		host = hostname
	}
	inst := registry.Instance{
		ServiceID: cfg.ServiceRegistry.ServiceID,
		HTTPAddr:  fmt.Sprintf("%s:%d", host, cfg.Server.Port),
		Hostname:  hostname,
		StartedAt: time.Now(),
	}
	if cfg.GRPCServer.Enabled {
		inst.GRPCAddr = fmt.Sprintf("%s:%d", host, cfg.GRPCServer.Port)
	}
	reg, err := registry.NewServiceRegistry(cfg.Etcd, cfg.ServiceRegistry, inst)
	if err != nil {
		logger.Warnf("Service registry unavailable error=%v", err)
		return nil
	}
	if err := reg.Register(); err != nil {
		logger.Warnf("Service register failed error=%v", err)
		return nil
	}
	logger.Infof("Service registered service=%s id=%s", cfg.ServiceRegistry.ServiceName, inst.ServiceID)
	return reg
}

// resolveConfigPath 根据环境选择配置文件，支持CONFIG_PATH覆盖、CONFIG_ENV区分环境
func resolveConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}

	env := strings.ToLower(strings.TrimSpace(os.Getenv("CONFIG_ENV")))
	if env == "" {
		env = "dev"
	}

	switch env {
	case "prod", "production":
		return "configs/config_prod.yaml"
	case "dev", "development":
		return "configs/config.dev.yaml"
	default:
		return fmt.Sprintf("configs/config.%s.yaml", env)
	}
}
