package handler

import (
	"net/http"

	"friend-chat/internal/service"
	"friend-chat/pkg/jwt"
	"friend-chat/pkg/response"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	service      *service.UserService
	jwtService   *jwt.JWTService
	secureCookie bool
}

func NewUserHandler(s *service.UserService, jwtService *jwt.JWTService, secureCookie bool) *UserHandler {
	return &UserHandler{service: s, jwtService: jwtService, secureCookie: secureCookie}
}

// setSessionCookie 写入 httpOnly 会话 cookie；maxAge<0 时清除
func (h *UserHandler) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(jwt.CookieName, token, maxAge, "/", "", h.secureCookie, true)
}

func (h *UserHandler) issue(c *gin.Context, token string) {
	h.setSessionCookie(c, token, int(h.jwtService.ExpireAfter().Seconds()))
}

// Signup 用户注册
func (h *UserHandler) Signup(c *gin.Context) {
	var r struct {
		FullName string `json:"fullName" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, &r) {
		return
	}
	user, token, err := h.service.Register(c.Request.Context(), r.FullName, r.Email, r.Password)
	if err != nil {
		response.FromError(c, err)
		return
	}

	h.issue(c, token)
	response.SuccessWithMessage(c, "注册成功", &response.AuthResponse{
		User:      response.FromUser(user),
		Token:     token,
		CreatedAt: user.CreatedAt,
	})
}

// Login 用户登录
func (h *UserHandler) Login(c *gin.Context) {
	var r struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, &r) {
		return
	}
	user, token, err := h.service.Login(c.Request.Context(), r.Email, r.Password)
	if err != nil {
		response.FromError(c, err)
		return
	}

	h.issue(c, token)
	response.SuccessWithMessage(c, "登录成功", &response.AuthResponse{
		User:      response.FromUser(user),
		Token:     token,
		CreatedAt: user.CreatedAt,
	})
}

// Logout 清除会话 cookie
func (h *UserHandler) Logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	response.SuccessWithMessage(c, "已退出登录", nil)
}

// Check 返回当前登录用户
func (h *UserHandler) Check(c *gin.Context) {
	user, err := h.service.Get(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, &response.AuthResponse{
		User:      response.FromUser(user),
		CreatedAt: user.CreatedAt,
	})
}

// UpdateProfile 更新头像
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var r struct {
		ProfilePic string `json:"profilePic"`
	}
	if !bindJSON(c, &r) {
		return
	}
	user, err := h.service.UpdateProfilePic(c.Request.Context(), jwt.GetUserID(c), r.ProfilePic)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "头像已更新", response.FromUser(user))
}
