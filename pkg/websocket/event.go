package websocket

import "encoding/json"

// 服务端推送事件
const (
	EventGetOnlineUsers = "getOnlineUsers"
	EventNewMessage     = "newMessage"
	EventMessageDeleted = "messageDeleted"
	EventUserTyping     = "userTyping"
)

// 客户端事件
const (
	EventTyping      = "typing"
	EventSendMessage = "sendMessage"
)

// Envelope 文本帧格式 {"event": "...", "data": ...}
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode 编码推送事件
func Encode(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// TypingPayload 客户端 typing 事件
type TypingPayload struct {
	ReceiverID uint `json:"receiverId"`
	SenderID   uint `json:"senderId"`
	IsTyping   bool `json:"isTyping"`
}

// UserTyping 转发给接收方的 userTyping 事件
type UserTyping struct {
	SenderID uint `json:"senderId"`
	IsTyping bool `json:"isTyping"`
}

// relayTarget 旧版 sendMessage 中用于路由的字段
type relayTarget struct {
	ReceiverID uint `json:"receiverId"`
	SenderID   uint `json:"senderId"`
}
