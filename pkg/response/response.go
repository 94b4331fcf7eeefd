package response

import (
	"errors"
	"net/http"
	"time"

	"friend-chat/internal/apperr"
	"friend-chat/internal/model"
	"friend-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`             // 状态码：0表示成功，其他表示错误
	Message string      `json:"message"`          // 响应消息
	Reason  string      `json:"reason,omitempty"` // 机器可读的失败原因
	Data    interface{} `json:"data,omitempty"`   // 响应数据
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// SuccessWithMessage 带自定义消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: message,
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, reason, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
		Reason:  reason,
	})
}

// InternalError 500错误
func InternalError(c *gin.Context, message string) {
	Error(c, 500, "internal_error", message)
}

// CodeOf 业务错误对应的响应码
func CodeOf(err error) int {
	switch apperr.ReasonOf(err) {
	case "unauthorized", "invalid_credentials":
		return 401
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return 400
	case apperr.KindAuthorization:
		return 403
	case apperr.KindNotFound:
		return 404
	case apperr.KindStateConflict:
		return 409
	case apperr.KindDependency:
		return 502
	default:
		return 500
	}
}

// FromError 将业务错误转换为统一失败响应；未知错误记录日志并隐藏细节
func FromError(c *gin.Context, err error) {
	code := CodeOf(err)
	if code >= 500 {
		logger.Error("请求处理失败",
			zap.Error(err),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
	}
	if apperr.KindOf(err) == apperr.KindInternal {
		InternalError(c, "internal server error")
		return
	}

	var message string
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	Error(c, code, apperr.ReasonOf(err), message)
}

// UserSummary 用户对外展示信息（不含密码哈希）
type UserSummary struct {
	ID         uint   `json:"id"`
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	ProfilePic string `json:"profilePic"`
}

// FromUser 过滤用户信息，隐藏敏感字段
func FromUser(user *model.User) *UserSummary {
	if user == nil {
		return nil
	}
	return &UserSummary{
		ID:         user.ID,
		FullName:   user.FullName,
		Email:      user.Email,
		ProfilePic: user.ProfilePic,
	}
}

// FromUsers 批量过滤用户信息
func FromUsers(users []model.User) []*UserSummary {
	out := make([]*UserSummary, 0, len(users))
	for i := range users {
		out = append(out, FromUser(&users[i]))
	}
	return out
}

// AuthResponse 注册/登录/会话检查响应
type AuthResponse struct {
	User      *UserSummary `json:"user"`
	Token     string       `json:"token,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

// RequestEntry 好友请求列表项
type RequestEntry struct {
	User      *UserSummary `json:"user"`
	CreatedAt time.Time    `json:"createdAt"`
}

// StatusResponse 好友关系状态
type StatusResponse struct {
	Status string `json:"status"`
}
