package model

import (
	"time"
)

// Message 私聊消息
// Text 与 Image 至少一个非空；Image 为外部资源存储返回的URL
// 删除为物理删除

type Message struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SenderID   uint      `gorm:"not null;index:idx_message_pair,priority:1;comment:发送者ID" json:"senderId"`
	ReceiverID uint      `gorm:"not null;index:idx_message_pair,priority:2;index;comment:接收者ID" json:"receiverId"`
	Text       string    `gorm:"type:text;comment:文本内容" json:"text,omitempty"`
	Image      string    `gorm:"type:varchar(255);comment:图片URL" json:"image,omitempty"`
	CreatedAt  time.Time `gorm:"index;comment:创建时间" json:"createdAt"`
}

func (Message) TableName() string { return "message" }
