package service

import (
	"context"
	"strings"
	"time"

	"friend-chat/internal/apperr"
	"friend-chat/internal/model"
	"friend-chat/internal/repository"
	"friend-chat/pkg/asset"
	"friend-chat/pkg/metrics"
	"friend-chat/pkg/websocket"

	"go.uber.org/zap"
)

// Notifier 向在线用户推送实时事件，用户不在线时返回 false
type Notifier interface {
	PushToUser(ctx context.Context, userID uint, event string, data interface{}) bool
}

// MessageService 消息服务
type MessageService struct {
	messages     *repository.MessageRepository
	friends      *repository.FriendshipRepository
	users        *repository.UserRepository
	notifier     Notifier
	assets       asset.Store
	assetTimeout time.Duration
	metrics      *metrics.Metrics
	log          *zap.Logger
}

// NewMessageService 创建MessageService实例
func NewMessageService(
	messages *repository.MessageRepository,
	friends *repository.FriendshipRepository,
	users *repository.UserRepository,
	notifier Notifier,
	assets asset.Store,
	assetTimeout time.Duration,
	m *metrics.Metrics,
	log *zap.Logger,
) *MessageService {
	if m == nil {
		m = metrics.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &MessageService{
		messages:     messages,
		friends:      friends,
		users:        users,
		notifier:     notifier,
		assets:       assets,
		assetTimeout: assetTimeout,
		metrics:      m,
		log:          log,
	}
}

// requireFriends 当前是否互为好友（每次实时查询，不缓存）
func (s *MessageService) requireFriends(ctx context.Context, a, b uint) error {
	ok, err := s.friends.AreFriends(ctx, a, b)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrNotFriends
	}
	return nil
}

// SendMessage 发送私聊消息
// 校验好友关系 → 上传图片 → 落库 → 推送给在线的接收方 → 返回持久化后的消息
func (s *MessageService) SendMessage(ctx context.Context, senderID, receiverID uint, text, image string) (*model.Message, error) {
	if err := s.requireFriends(ctx, senderID, receiverID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" && strings.TrimSpace(image) == "" {
		return nil, apperr.ErrEmptyMessage
	}

	message := &model.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
	}
	if strings.TrimSpace(image) != "" {
		url, err := uploadImage(ctx, s.assets, s.assetTimeout, image)
		if err != nil {
			return nil, err
		}
		message.Image = url
	}

	if err := s.messages.Create(ctx, message); err != nil {
		// 消息未保存，回收已上传的图片
		destroyImage(context.WithoutCancel(ctx), s.assets, s.assetTimeout, message.Image, s.log)
		return nil, err
	}
	s.metrics.MessagesSent.Inc()

	// 推送失败（对方离线）不影响结果，对方下次拉取历史时可见
	s.notifier.PushToUser(ctx, receiverID, websocket.EventNewMessage, message)

	return message, nil
}

// GetMessages 获取与好友的全部聊天记录，按时间升序
func (s *MessageService) GetMessages(ctx context.Context, requesterID, peerID uint) ([]*model.Message, error) {
	if err := s.requireFriends(ctx, requesterID, peerID); err != nil {
		return nil, err
	}
	return s.messages.ListBetween(ctx, requesterID, peerID)
}

// DeleteMessage 删除消息，仅发送者可删除且双方仍为好友
func (s *MessageService) DeleteMessage(ctx context.Context, requesterID, messageID uint) error {
	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if message.SenderID != requesterID {
		return apperr.ErrForbidden
	}
	if err := s.requireFriends(ctx, message.SenderID, message.ReceiverID); err != nil {
		return err
	}

	destroyImage(ctx, s.assets, s.assetTimeout, message.Image, s.log)

	if err := s.messages.Delete(ctx, messageID); err != nil {
		return err
	}
	s.metrics.MessagesDeleted.Inc()

	s.notifier.PushToUser(ctx, message.ReceiverID, websocket.EventMessageDeleted, messageID)
	s.notifier.PushToUser(ctx, message.SenderID, websocket.EventMessageDeleted, messageID)
	return nil
}

// Contacts 侧边栏联系人（好友列表）
func (s *MessageService) Contacts(ctx context.Context, userID uint) ([]model.User, error) {
	ids, err := s.friends.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.users.GetByIDs(ctx, ids)
}
