package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"compress-service/pkg/errno"
)

// Response 统一响应结构
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// Success 返回成功响应
func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, Response{
		Code:      0,
		Message:   errno.OK.Message,
		Data:      data,
		RequestID: ctx.GetString("request_id"),
	})
}

// Failed 返回失败响应，HTTP状态码由错误码决定
func Failed(ctx *gin.Context, err error) {
	code, msg := errno.Decode(err)
	ctx.AbortWithStatusJSON(code.HTTPStatus(), Response{
		Code:      code.Code,
		Message:   msg,
		RequestID: ctx.GetString("request_id"),
	})
}
