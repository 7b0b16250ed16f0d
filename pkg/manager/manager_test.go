package manager

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type fakeResource struct {
	log *[]string
	id  string
}

func (r *fakeResource) MustOpen() { *r.log = append(*r.log, "open:"+r.id) }
func (r *fakeResource) Close()    { *r.log = append(*r.log, "close:"+r.id) }

type fakeResourcePlugin struct{ res *fakeResource }

func (p *fakeResourcePlugin) Name() string                 { return p.res.id }
func (p *fakeResourcePlugin) MustCreateResource() Resource { return p.res }

type fakeComponent struct {
	log *[]string
}

func (c *fakeComponent) Start() error    { *c.log = append(*c.log, "start"); return nil }
func (c *fakeComponent) Stop() error     { *c.log = append(*c.log, "stop"); return nil }
func (c *fakeComponent) GetName() string { return "fake" }

type fakeComponentPlugin struct {
	comp Component
}

func (p *fakeComponentPlugin) Name() string { return "fake" }
func (p *fakeComponentPlugin) MustCreateComponent(*Dependencies) Component {
	return p.comp
}

type fakeRoutePlugin struct{ called *bool }

func (p *fakeRoutePlugin) Name() string { return "fake" }
func (p *fakeRoutePlugin) Register(engine *gin.Engine, _ *Dependencies) {
	*p.called = true
	engine.GET("/fake", func(c *gin.Context) {})
}

func resetRegistry() { std = &registry{} }

func TestResourcesOpenInOrderAndCloseInReverse(t *testing.T) {
	resetRegistry()
	var log []string
	RegisterResourcePlugin(&fakeResourcePlugin{res: &fakeResource{log: &log, id: "a"}})
	RegisterResourcePlugin(&fakeResourcePlugin{res: &fakeResource{log: &log, id: "b"}})

	MustInitResources()
	CloseResources()

	assert.Equal(t, []string{"open:a", "open:b", "close:b", "close:a"}, log)
}

func TestDuplicateResourcePluginPanics(t *testing.T) {
	resetRegistry()
	var log []string
	RegisterResourcePlugin(&fakeResourcePlugin{res: &fakeResource{log: &log, id: "a"}})
	assert.Panics(t, func() {
		RegisterResourcePlugin(&fakeResourcePlugin{res: &fakeResource{log: &log, id: "a"}})
	})
}

func TestComponentsSkipNilAndStop(t *testing.T) {
	resetRegistry()
	var log []string
	RegisterComponentPlugin(&fakeComponentPlugin{comp: &fakeComponent{log: &log}})
	RegisterComponentPlugin(&fakeComponentPlugin{comp: nil})

	MustInitComponents(&Dependencies{})
	Shutdown()

	assert.Equal(t, []string{"start", "stop"}, log)
}

func TestRegisterAllRoutes(t *testing.T) {
	resetRegistry()
	gin.SetMode(gin.TestMode)
	called := false
	RegisterRoutePlugin(&fakeRoutePlugin{called: &called})

	RegisterAllRoutes(gin.New())
	assert.True(t, called)
}
