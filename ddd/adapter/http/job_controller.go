package http

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"compress-service/ddd/application/app"
	"compress-service/ddd/domain/vo"
	"compress-service/pkg/errno"
	"compress-service/pkg/middleware"
	"compress-service/pkg/restapi"
)

// JobController 任务接口
type JobController struct {
	compressApp app.CompressApp
}

func NewJobController(compressApp app.CompressApp) *JobController {
	return &JobController{compressApp: compressApp}
}

func actorOf(ctx *gin.Context) vo.Actor {
	return vo.Actor{ID: middleware.UserID(ctx), Admin: middleware.IsAdmin(ctx)}
}

func (c *JobController) StartJob(ctx *gin.Context) {
	userID := requireUser(ctx)
	if userID == "" {
		return
	}
	job, err := c.compressApp.StartJob(ctx.Request.Context(), userID)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, job)
}

func (c *JobController) ListJobs(ctx *gin.Context) {
	if requireUser(ctx) == "" {
		return
	}
	list, err := c.compressApp.ListJobs(ctx.Request.Context(), actorOf(ctx))
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, list)
}

func (c *JobController) GetJob(ctx *gin.Context) {
	if requireUser(ctx) == "" {
		return
	}
	job, err := c.compressApp.GetJob(ctx.Request.Context(), actorOf(ctx), ctx.Param("user_id"))
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, job)
}

func (c *JobController) CancelJob(ctx *gin.Context) {
	if requireUser(ctx) == "" {
		return
	}
	res, err := c.compressApp.CancelJob(ctx.Request.Context(), actorOf(ctx), ctx.Param("user_id"))
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, res)
}

// GetHistory 本人或管理员可查
func (c *JobController) GetHistory(ctx *gin.Context) {
	if requireUser(ctx) == "" {
		return
	}
	actor := actorOf(ctx)
	target := ctx.Param("user_id")
	if actor.ID != target && !actor.Admin {
		restapi.Failed(ctx, errno.ErrForbidden)
		return
	}
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	reports, err := c.compressApp.History(ctx.Request.Context(), target, limit)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, reports)
}

func (c *JobController) ListPresets(ctx *gin.Context) {
	restapi.Success(ctx, c.compressApp.Presets())
}
