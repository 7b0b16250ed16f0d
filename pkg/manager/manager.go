package manager

import (
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"

	"compress-service/pkg/config"
	"compress-service/pkg/logger"
)

// Resource 基础资源（数据库、缓存、对象存储、消息队列）
type Resource interface {
	MustOpen()
	Close()
}

// ResourcePlugin 资源插件
type ResourcePlugin interface {
	Name() string
	MustCreateResource() Resource
}

// Component 后台组件（消费者、定时任务）
type Component interface {
	Start() error
	Stop() error
	GetName() string
}

// ComponentPlugin 组件插件
type ComponentPlugin interface {
	Name() string
	MustCreateComponent(deps *Dependencies) Component
}

// RoutePlugin 路由插件
type RoutePlugin interface {
	Name() string
	Register(engine *gin.Engine, deps *Dependencies)
}

// Dependencies 依赖注入容器
type Dependencies struct {
	Config *config.Config
	// CompressApp holds the application facade; typed as interface{} so that
	// adapters can assert it without pkg/manager importing the ddd layers.
	CompressApp interface{}
}

type registry struct {
	mu               sync.Mutex
	resourcePlugins  []ResourcePlugin
	resources        []namedResource
	componentPlugins []ComponentPlugin
	components       []Component
	routePlugins     []RoutePlugin
	deps             *Dependencies
}

type namedResource struct {
	name string
	res  Resource
}

var std = &registry{}

// RegisterResourcePlugin 注册资源插件，通常在 init 中调用
func RegisterResourcePlugin(p ResourcePlugin) {
	std.mu.Lock()
	defer std.mu.Unlock()
	for _, existing := range std.resourcePlugins {
		if existing.Name() == p.Name() {
			panic(fmt.Sprintf("resource plugin %s registered twice", p.Name()))
		}
	}
	std.resourcePlugins = append(std.resourcePlugins, p)
}

// RegisterComponentPlugin 注册组件插件
func RegisterComponentPlugin(p ComponentPlugin) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.componentPlugins = append(std.componentPlugins, p)
}

// RegisterRoutePlugin 注册路由插件
func RegisterRoutePlugin(p RoutePlugin) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.routePlugins = append(std.routePlugins, p)
}

// MustInitResources opens every registered resource in registration order.
func MustInitResources() {
	std.mu.Lock()
	defer std.mu.Unlock()
	for _, p := range std.resourcePlugins {
		res := p.MustCreateResource()
		res.MustOpen()
		std.resources = append(std.resources, namedResource{name: p.Name(), res: res})
		logger.Infof("Resource opened name=%s", p.Name())
	}
}

// CloseResources closes resources in reverse order.
func CloseResources() {
	std.mu.Lock()
	defer std.mu.Unlock()
	for i := len(std.resources) - 1; i >= 0; i-- {
		std.resources[i].res.Close()
		logger.Infof("Resource closed name=%s", std.resources[i].name)
	}
	std.resources = nil
}

// MustInitComponents creates and starts every registered component.
func MustInitComponents(deps *Dependencies) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.deps = deps
	for _, p := range std.componentPlugins {
		c := p.MustCreateComponent(deps)
		if c == nil {
			logger.Infof("Component skipped name=%s", p.Name())
			continue
		}
		if err := c.Start(); err != nil {
			panic(fmt.Sprintf("start component %s: %v", p.Name(), err))
		}
		std.components = append(std.components, c)
		logger.Infof("Component started name=%s", c.GetName())
	}
}

// RegisterAllRoutes 注册所有路由插件
func RegisterAllRoutes(engine *gin.Engine) {
	std.mu.Lock()
	plugins := append([]RoutePlugin(nil), std.routePlugins...)
	deps := std.deps
	std.mu.Unlock()
	for _, p := range plugins {
		p.Register(engine, deps)
		logger.Infof("Routes registered plugin=%s", p.Name())
	}
}

// Shutdown stops started components in reverse order.
func Shutdown() {
	std.mu.Lock()
	defer std.mu.Unlock()
	for i := len(std.components) - 1; i >= 0; i-- {
		c := std.components[i]
		if err := c.Stop(); err != nil {
			logger.Warnf("Component stop failed name=%s error=%v", c.GetName(), err)
		}
	}
	std.components = nil
}
