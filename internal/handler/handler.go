package handler

import (
	"strconv"

	"friend-chat/internal/apperr"
	"friend-chat/pkg/response"

	"github.com/gin-gonic/gin"
)

// bindJSON 绑定请求体，失败时直接写出校验错误
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		response.FromError(c, apperr.Validation("invalid_request", err.Error()))
		return false
	}
	return true
}

// paramID 解析路径中的ID参数
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.FromError(c, apperr.Validation("invalid_id", "invalid "+name))
		return 0, false
	}
	return uint(id), true
}
