package repository

import (
	"context"
	"errors"
	"time"

	"friend-chat/internal/apperr"
	"friend-chat/internal/model"

	"gorm.io/gorm"
)

// 两个用户之间的关系状态（从 A 的视角）
const (
	StatusNone            = "none"
	StatusFriends         = "friends"
	StatusRequestSent     = "request_sent"
	StatusRequestReceived = "request_received"
)

// PendingRequest 一条待处理的好友请求，Peer 为请求的另一方
type PendingRequest struct {
	PeerID    uint
	CreatedAt time.Time
}

// FriendshipRepository 好友关系状态存储
// 每个无序用户对至多一行，所有状态迁移都是对这一行的单条原子语句，
// 因此不存在只更新了一方记录的中间状态
type FriendshipRepository struct {
	db *gorm.DB
}

// NewFriendshipRepository 创建FriendshipRepository实例
func NewFriendshipRepository(db *gorm.DB) *FriendshipRepository {
	return &FriendshipRepository{db: db}
}

// find 查询用户对的关系行，不存在时返回 nil
func (r *FriendshipRepository) find(ctx context.Context, a, b uint) (*model.Friendship, error) {
	low, high := model.OrderedPair(a, b)
	var f model.Friendship
	err := r.db.WithContext(ctx).
		Where("user_low_id = ? AND user_high_id = ?", low, high).
		Take(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// conflictFor 已存在关系行时 SendRequest 的失败原因
func conflictFor(f *model.Friendship) error {
	if f.Status == model.FriendshipAccepted {
		return apperr.ErrAlreadyFriends
	}
	return apperr.ErrRequestAlreadyExists
}

// SendRequest from 向 to 发送好友请求，仅允许从无关系状态迁移
// 并发的反向请求由唯一索引裁决：后提交的一方读取先提交者的结果并返回冲突
func (r *FriendshipRepository) SendRequest(ctx context.Context, from, to uint) (*model.Friendship, error) {
	if from == to {
		return nil, apperr.ErrSelfFriendship
	}

	existing, err := r.find(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, conflictFor(existing)
	}

	low, high := model.OrderedPair(from, to)
	f := &model.Friendship{
		UserLowID:   low,
		UserHighID:  high,
		RequesterID: from,
		Status:      model.FriendshipPending,
	}
	if err := r.db.WithContext(ctx).Create(f).Error; err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		// 另一个请求在读取与插入之间抢先写入
		winner, ferr := r.find(ctx, from, to)
		if ferr == nil && winner != nil {
			return nil, conflictFor(winner)
		}
		return nil, apperr.ErrRequestAlreadyExists
	}
	return f, nil
}

// AcceptRequest receiver 接受 requester 的请求，仅允许从 REQUEST_SENT(requester→receiver) 迁移
func (r *FriendshipRepository) AcceptRequest(ctx context.Context, receiver, requester uint) (*model.Friendship, error) {
	if receiver == requester {
		return nil, apperr.ErrRequestNotFound
	}
	low, high := model.OrderedPair(receiver, requester)
	var accepted model.Friendship

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&model.Friendship{}).
			Where("user_low_id = ? AND user_high_id = ? AND requester_id = ? AND status = ?",
				low, high, requester, model.FriendshipPending).
			Updates(map[string]interface{}{
				"status":      model.FriendshipAccepted,
				"accepted_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrRequestNotFound
		}
		return tx.Where("user_low_id = ? AND user_high_id = ?", low, high).Take(&accepted).Error
	})
	if err != nil {
		return nil, err
	}
	return &accepted, nil
}

// RejectRequest receiver 拒绝 requester 的请求，关系回到无状态
func (r *FriendshipRepository) RejectRequest(ctx context.Context, receiver, requester uint) error {
	if receiver == requester {
		return apperr.ErrRequestNotFound
	}
	low, high := model.OrderedPair(receiver, requester)
	res := r.db.WithContext(ctx).
		Where("user_low_id = ? AND user_high_id = ? AND requester_id = ? AND status = ?",
			low, high, requester, model.FriendshipPending).
		Delete(&model.Friendship{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrRequestNotFound
	}
	return nil
}

// RemoveFriend 解除好友关系，仅允许从 FRIENDS 迁移
func (r *FriendshipRepository) RemoveFriend(ctx context.Context, userID, friendID uint) error {
	if userID == friendID {
		return apperr.ErrNotFriendsRemoval
	}
	low, high := model.OrderedPair(userID, friendID)
	res := r.db.WithContext(ctx).
		Where("user_low_id = ? AND user_high_id = ? AND status = ?", low, high, model.FriendshipAccepted).
		Delete(&model.Friendship{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFriendsRemoval
	}
	return nil
}

// AreFriends 判断两个用户当前是否互为好友
func (r *FriendshipRepository) AreFriends(ctx context.Context, a, b uint) (bool, error) {
	if a == b {
		return false, nil
	}
	low, high := model.OrderedPair(a, b)
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Friendship{}).
		Where("user_low_id = ? AND user_high_id = ? AND status = ?", low, high, model.FriendshipAccepted).
		Count(&count).Error
	return count > 0, err
}

// Status 返回从 userID 视角看与 otherID 的关系
func (r *FriendshipRepository) Status(ctx context.Context, userID, otherID uint) (string, error) {
	if userID == otherID {
		return StatusNone, nil
	}
	f, err := r.find(ctx, userID, otherID)
	if err != nil {
		return "", err
	}
	switch {
	case f == nil:
		return StatusNone, nil
	case f.Status == model.FriendshipAccepted:
		return StatusFriends, nil
	case f.RequesterID == userID:
		return StatusRequestSent, nil
	default:
		return StatusRequestReceived, nil
	}
}

// edgesOf 查询与用户相关的所有关系行
func (r *FriendshipRepository) edgesOf(ctx context.Context, userID uint) ([]model.Friendship, error) {
	var edges []model.Friendship
	err := r.db.WithContext(ctx).
		Where("user_low_id = ? OR user_high_id = ?", userID, userID).
		Order("created_at ASC, id ASC").
		Find(&edges).Error
	return edges, err
}

// FriendIDs 返回用户所有好友的ID
func (r *FriendshipRepository) FriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	edges, err := r.edgesOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := []uint{}
	for i := range edges {
		if edges[i].Status == model.FriendshipAccepted {
			ids = append(ids, edges[i].Peer(userID))
		}
	}
	return ids, nil
}

// RelatedIDs 返回与用户处于任何非 NONE 状态的用户ID（好友、已发送、已收到）
func (r *FriendshipRepository) RelatedIDs(ctx context.Context, userID uint) ([]uint, error) {
	edges, err := r.edgesOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(edges))
	for i := range edges {
		ids = append(ids, edges[i].Peer(userID))
	}
	return ids, nil
}

// SentRequests 用户发出的待处理请求，按时间升序
func (r *FriendshipRepository) SentRequests(ctx context.Context, userID uint) ([]PendingRequest, error) {
	return r.pending(ctx, userID, true)
}

// ReceivedRequests 用户收到的待处理请求，按时间升序
func (r *FriendshipRepository) ReceivedRequests(ctx context.Context, userID uint) ([]PendingRequest, error) {
	return r.pending(ctx, userID, false)
}

func (r *FriendshipRepository) pending(ctx context.Context, userID uint, sent bool) ([]PendingRequest, error) {
	edges, err := r.edgesOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := []PendingRequest{}
	for i := range edges {
		e := &edges[i]
		if e.Status != model.FriendshipPending {
			continue
		}
		if (e.RequesterID == userID) != sent {
			continue
		}
		out = append(out, PendingRequest{PeerID: e.Peer(userID), CreatedAt: e.CreatedAt})
	}
	return out, nil
}
