package handler

import (
	"friend-chat/internal/service"
	"friend-chat/pkg/jwt"
	"friend-chat/pkg/response"

	"github.com/gin-gonic/gin"
)

// FriendHandler 好友关系接口
type FriendHandler struct {
	service *service.FriendService
}

// NewFriendHandler 创建FriendHandler实例
func NewFriendHandler(s *service.FriendService) *FriendHandler {
	return &FriendHandler{service: s}
}

// Search GET /friends/search?q=
func (h *FriendHandler) Search(c *gin.Context) {
	users, err := h.service.Search(c.Request.Context(), jwt.GetUserID(c), c.Query("q"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, response.FromUsers(users))
}

// SendRequest POST /friends/request {targetUserId}
func (h *FriendHandler) SendRequest(c *gin.Context) {
	var r struct {
		TargetUserID uint `json:"targetUserId"`
	}
	if !bindJSON(c, &r) {
		return
	}
	if err := h.service.SendRequest(c.Request.Context(), jwt.GetUserID(c), r.TargetUserID); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "好友请求已发送", nil)
}

// Accept POST /friends/request/accept {senderUserId}
func (h *FriendHandler) Accept(c *gin.Context) {
	var r struct {
		SenderUserID uint `json:"senderUserId"`
	}
	if !bindJSON(c, &r) {
		return
	}
	if err := h.service.Accept(c.Request.Context(), jwt.GetUserID(c), r.SenderUserID); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已接受好友请求", nil)
}

// Reject POST /friends/request/reject {senderUserId}
func (h *FriendHandler) Reject(c *gin.Context) {
	var r struct {
		SenderUserID uint `json:"senderUserId"`
	}
	if !bindJSON(c, &r) {
		return
	}
	if err := h.service.Reject(c.Request.Context(), jwt.GetUserID(c), r.SenderUserID); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已拒绝好友请求", nil)
}

// Received GET /friends/requests/received
func (h *FriendHandler) Received(c *gin.Context) {
	views, err := h.service.Received(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, requestEntries(views))
}

// Sent GET /friends/requests/sent
func (h *FriendHandler) Sent(c *gin.Context) {
	views, err := h.service.Sent(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, requestEntries(views))
}

// List GET /friends/list
func (h *FriendHandler) List(c *gin.Context) {
	users, err := h.service.Friends(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, response.FromUsers(users))
}

// Remove DELETE /friends/remove {friendId}
func (h *FriendHandler) Remove(c *gin.Context) {
	var r struct {
		FriendID uint `json:"friendId"`
	}
	if !bindJSON(c, &r) {
		return
	}
	if err := h.service.Remove(c.Request.Context(), jwt.GetUserID(c), r.FriendID); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已解除好友关系", nil)
}

// Status GET /friends/status/:userId
func (h *FriendHandler) Status(c *gin.Context) {
	otherID, ok := paramID(c, "userId")
	if !ok {
		return
	}
	status, err := h.service.Status(c.Request.Context(), jwt.GetUserID(c), otherID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, &response.StatusResponse{Status: status})
}

func requestEntries(views []service.RequestView) []*response.RequestEntry {
	out := make([]*response.RequestEntry, 0, len(views))
	for i := range views {
		out = append(out, &response.RequestEntry{
			User:      response.FromUser(&views[i].User),
			CreatedAt: views[i].CreatedAt,
		})
	}
	return out
}
