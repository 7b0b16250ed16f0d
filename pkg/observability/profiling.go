package observability

import (
	"os"
	"strings"

	"github.com/grafana/pyroscope-go"

	"compress-service/pkg/logger"
)

// Profiler wraps the running pyroscope session; a nil Profiler is valid and stops nothing.
type Profiler struct {
	p *pyroscope.Profiler
}

// StartProfiling 启动持续性能分析。地址为空时不启用。
// serverAddress falls back to PYROSCOPE_SERVER_ADDRESS.
func StartProfiling(appName, serverAddress string) *Profiler {
	addr := strings.TrimSpace(serverAddress)
	if addr == "" {
		addr = strings.TrimSpace(os.Getenv("PYROSCOPE_SERVER_ADDRESS"))
	}
	if addr == "" {
		return nil
	}

	hostname, _ := os.Hostname()
	p, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: appName,
		ServerAddress:   addr,
		Tags:            map[string]string{"hostname": hostname},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	})
	if err != nil {
		logger.Warnf("pyroscope start failed server=%s error=%v", addr, err)
		return nil
	}
	logger.Infof("pyroscope profiling started app=%s server=%s", appName, addr)
	return &Profiler{p: p}
}

// Stop flushes and stops profiling.
func (p *Profiler) Stop() {
	if p == nil || p.p == nil {
		return
	}
	if err := p.p.Stop(); err != nil {
		logger.Warnf("pyroscope stop failed error=%v", err)
	}
}
