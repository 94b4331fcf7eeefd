package service

import (
	"context"
	"strings"
	"time"

	"friend-chat/internal/apperr"
	"friend-chat/internal/model"
	"friend-chat/internal/repository"
	"friend-chat/pkg/metrics"

	"go.uber.org/zap"
)

// RequestView 好友请求及对方用户信息
type RequestView struct {
	User      model.User
	CreatedAt time.Time
}

// FriendService 好友关系服务
type FriendService struct {
	users   *repository.UserRepository
	friends *repository.FriendshipRepository
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewFriendService 创建FriendService实例
func NewFriendService(users *repository.UserRepository, friends *repository.FriendshipRepository, m *metrics.Metrics, log *zap.Logger) *FriendService {
	if m == nil {
		m = metrics.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FriendService{users: users, friends: friends, metrics: m, log: log}
}

// Search 搜索可添加的用户，排除自己以及已有任何关系的用户
func (s *FriendService) Search(ctx context.Context, userID uint, query string) ([]model.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.ErrQueryRequired
	}
	related, err := s.friends.RelatedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.users.SearchExcluding(ctx, query, append(related, userID))
}

// SendRequest 发送好友请求
func (s *FriendService) SendRequest(ctx context.Context, from, to uint) error {
	if to == 0 {
		return apperr.Validation("target_required", "target user id is required")
	}
	if from == to {
		return apperr.ErrSelfFriendship
	}
	if _, err := s.users.GetByID(ctx, to); err != nil {
		return err
	}
	if _, err := s.friends.SendRequest(ctx, from, to); err != nil {
		return err
	}
	s.transition("request")
	s.log.Info("发送好友请求", zap.Uint("from", from), zap.Uint("to", to))
	return nil
}

// Accept receiver 接受 requester 的请求
func (s *FriendService) Accept(ctx context.Context, receiver, requester uint) error {
	if requester == 0 {
		return apperr.Validation("sender_required", "sender user id is required")
	}
	if _, err := s.friends.AcceptRequest(ctx, receiver, requester); err != nil {
		return err
	}
	s.transition("accept")
	s.log.Info("接受好友请求", zap.Uint("receiver", receiver), zap.Uint("requester", requester))
	return nil
}

// Reject receiver 拒绝 requester 的请求
func (s *FriendService) Reject(ctx context.Context, receiver, requester uint) error {
	if requester == 0 {
		return apperr.Validation("sender_required", "sender user id is required")
	}
	if err := s.friends.RejectRequest(ctx, receiver, requester); err != nil {
		return err
	}
	s.transition("reject")
	return nil
}

// Remove 解除好友关系
func (s *FriendService) Remove(ctx context.Context, userID, friendID uint) error {
	if friendID == 0 {
		return apperr.Validation("friend_required", "friend id is required")
	}
	if err := s.friends.RemoveFriend(ctx, userID, friendID); err != nil {
		return err
	}
	s.transition("remove")
	s.log.Info("解除好友关系", zap.Uint("user_id", userID), zap.Uint("friend_id", friendID))
	return nil
}

// Status 从 userID 视角的关系状态
func (s *FriendService) Status(ctx context.Context, userID, otherID uint) (string, error) {
	return s.friends.Status(ctx, userID, otherID)
}

// Friends 好友列表
func (s *FriendService) Friends(ctx context.Context, userID uint) ([]model.User, error) {
	ids, err := s.friends.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.users.GetByIDs(ctx, ids)
}

// Received 收到的好友请求
func (s *FriendService) Received(ctx context.Context, userID uint) ([]RequestView, error) {
	pending, err := s.friends.ReceivedRequests(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.populate(ctx, pending)
}

// Sent 发出的好友请求
func (s *FriendService) Sent(ctx context.Context, userID uint) ([]RequestView, error) {
	pending, err := s.friends.SentRequests(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.populate(ctx, pending)
}

// populate 填充请求对方的用户信息，保持请求时间顺序
func (s *FriendService) populate(ctx context.Context, pending []repository.PendingRequest) ([]RequestView, error) {
	ids := make([]uint, 0, len(pending))
	for _, p := range pending {
		ids = append(ids, p.PeerID)
	}
	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	views := make([]RequestView, 0, len(pending))
	for _, p := range pending {
		u, ok := byID[p.PeerID]
		if !ok {
			continue
		}
		views = append(views, RequestView{User: u, CreatedAt: p.CreatedAt})
	}
	return views, nil
}

func (s *FriendService) transition(name string) {
	s.metrics.FriendshipEvents.WithLabelValues(name).Inc()
}
