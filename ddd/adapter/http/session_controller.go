package http

import (
	"github.com/gin-gonic/gin"

	"compress-service/ddd/application/app"
	"compress-service/ddd/application/cqe"
	"compress-service/pkg/errno"
	"compress-service/pkg/middleware"
	"compress-service/pkg/restapi"
)

// SessionController 会话接口，只能操作调用者自己的会话
type SessionController struct {
	compressApp app.CompressApp
}

func NewSessionController(compressApp app.CompressApp) *SessionController {
	return &SessionController{compressApp: compressApp}
}

// requireUser writes the failure and returns "" when the caller is anonymous.
func requireUser(ctx *gin.Context) string {
	userID := middleware.UserID(ctx)
	if userID == "" {
		restapi.Failed(ctx, errno.ErrUserIDRequired)
	}
	return userID
}

func (c *SessionController) CreateSession(ctx *gin.Context) {
	userID := requireUser(ctx)
	if userID == "" {
		return
	}
	var req cqe.CreateSessionReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		restapi.Failed(ctx, errno.NewBizError(errno.ErrInvalidParam, err))
		return
	}
	s, err := c.compressApp.CreateSession(ctx.Request.Context(), userID, &req)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, s)
}

func (c *SessionController) GetSession(ctx *gin.Context) {
	userID := requireUser(ctx)
	if userID == "" {
		return
	}
	s, err := c.compressApp.GetSession(ctx.Request.Context(), userID)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, s)
}

func (c *SessionController) UpdateSession(ctx *gin.Context) {
	userID := requireUser(ctx)
	if userID == "" {
		return
	}
	var req cqe.UpdateSessionReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		restapi.Failed(ctx, errno.NewBizError(errno.ErrInvalidParam, err))
		return
	}
	s, err := c.compressApp.UpdateSession(ctx.Request.Context(), userID, &req)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, s)
}

func (c *SessionController) DeleteSession(ctx *gin.Context) {
	userID := requireUser(ctx)
	if userID == "" {
		return
	}
	if err := c.compressApp.DeleteSession(ctx.Request.Context(), userID); err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, nil)
}
