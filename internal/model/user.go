package model

import (
	"time"
)

// User 用户模型
// 邮箱唯一；密码仅存储哈希（PasswordHash），不存储明文
// 好友关系不内嵌在用户记录中，统一由 Friendship 边表推导

type User struct {
	ID           uint      `gorm:"primaryKey"`
	FullName     string    `gorm:"type:varchar(64);not null;index;comment:姓名"`
	Email        string    `gorm:"type:varchar(128);not null;uniqueIndex;comment:邮箱"`
	PasswordHash string    `gorm:"type:varchar(255);not null;comment:密码哈希"`
	ProfilePic   string    `gorm:"type:varchar(255);comment:头像URL"`
	CreatedAt    time.Time `gorm:"comment:创建时间"`
	UpdatedAt    time.Time `gorm:"comment:更新时间"`
}

// TableName 指定表名（全局配置使用单数表名）
func (User) TableName() string { return "user" }
