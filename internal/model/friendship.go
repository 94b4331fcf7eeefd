package model

import (
	"time"
)

// 好友关系状态
const (
	FriendshipPending  = "pending"  // 请求已发出，等待对方处理
	FriendshipAccepted = "accepted" // 双方互为好友
)

// Friendship 好友关系边
// 每个无序用户对只有一行：UserLowID < UserHighID，唯一索引保证并发下不会出现两条边
// RequesterID 记录发起方，pending 状态下即请求方向

type Friendship struct {
	ID          uint       `gorm:"primaryKey"`
	UserLowID   uint       `gorm:"not null;uniqueIndex:idx_friendship_pair;comment:较小的用户ID"`
	UserHighID  uint       `gorm:"not null;uniqueIndex:idx_friendship_pair;index;comment:较大的用户ID"`
	RequesterID uint       `gorm:"not null;index;comment:请求发起者ID"`
	Status      string     `gorm:"type:varchar(16);not null;default:'pending';comment:关系状态"`
	CreatedAt   time.Time  `gorm:"comment:请求时间"`
	UpdatedAt   time.Time  `gorm:"comment:更新时间"`
	AcceptedAt  *time.Time `gorm:"comment:成为好友时间"`
}

func (Friendship) TableName() string { return "friendship" }

// OrderedPair 返回无序用户对的规范顺序
func OrderedPair(a, b uint) (low, high uint) {
	if a < b {
		return a, b
	}
	return b, a
}

// Peer 返回关系中另一方的用户ID
func (f *Friendship) Peer(userID uint) uint {
	if f.UserLowID == userID {
		return f.UserHighID
	}
	return f.UserLowID
}
