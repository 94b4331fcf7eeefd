package handler

import (
	"friend-chat/internal/service"
	"friend-chat/pkg/jwt"
	"friend-chat/pkg/response"

	"github.com/gin-gonic/gin"
)

// MessageHandler 消息处理器
type MessageHandler struct {
	service *service.MessageService
}

// NewMessageHandler 创建MessageHandler实例
func NewMessageHandler(s *service.MessageService) *MessageHandler {
	return &MessageHandler{service: s}
}

// Contacts GET /messages/users
func (h *MessageHandler) Contacts(c *gin.Context) {
	users, err := h.service.Contacts(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, response.FromUsers(users))
}

// GetMessages GET /messages/:peerId
func (h *MessageHandler) GetMessages(c *gin.Context) {
	peerID, ok := paramID(c, "peerId")
	if !ok {
		return
	}
	messages, err := h.service.GetMessages(c.Request.Context(), jwt.GetUserID(c), peerID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, messages)
}

// SendMessage POST /messages/send/:peerId {text?, image?}
func (h *MessageHandler) SendMessage(c *gin.Context) {
	peerID, ok := paramID(c, "peerId")
	if !ok {
		return
	}
	var r struct {
		Text  string `json:"text"`
		Image string `json:"image"`
	}
	if !bindJSON(c, &r) {
		return
	}

	message, err := h.service.SendMessage(c.Request.Context(), jwt.GetUserID(c), peerID, r.Text, r.Image)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "消息发送成功", message)
}

// DeleteMessage DELETE /messages/:messageId
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	messageID, ok := paramID(c, "messageId")
	if !ok {
		return
	}
	if err := h.service.DeleteMessage(c.Request.Context(), jwt.GetUserID(c), messageID); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "消息已删除", gin.H{"messageId": messageID})
}
