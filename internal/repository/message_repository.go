package repository

import (
	"context"
	"errors"

	"friend-chat/internal/apperr"
	"friend-chat/internal/model"

	"gorm.io/gorm"
)

// MessageRepository 消息数据仓储
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建MessageRepository实例
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create 创建消息，ID 与 CreatedAt 由服务端生成
func (r *MessageRepository) Create(ctx context.Context, message *model.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// GetByID 根据ID获取消息
func (r *MessageRepository) GetByID(ctx context.Context, id uint) (*model.Message, error) {
	var message model.Message
	err := r.db.WithContext(ctx).First(&message, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrMessageNotFound
		}
		return nil, err
	}
	return &message, nil
}

// ListBetween 获取两个用户之间的全部消息（双向），按创建时间升序
func (r *MessageRepository) ListBetween(ctx context.Context, userA, userB uint) ([]*model.Message, error) {
	messages := []*model.Message{}
	err := r.db.WithContext(ctx).Where(
		"(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
		userA, userB, userB, userA,
	).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

// Delete 物理删除消息
func (r *MessageRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.Message{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrMessageNotFound
	}
	return nil
}
