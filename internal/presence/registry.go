package presence

import (
	"context"
	"sort"
	"sync"
)

// Registry 用户到实时会话的映射
// 每个用户至多一个会话，新连接覆盖旧连接
type Registry interface {
	// SetOnline 记录用户当前会话（幂等覆盖）
	SetOnline(ctx context.Context, userID uint, sessionID string) error
	// Session 查询用户当前会话
	Session(ctx context.Context, userID uint) (sessionID string, ok bool, err error)
	// ClearSession 移除映射到该会话的条目；若已被新连接替换则不做任何事
	ClearSession(ctx context.Context, sessionID string) (userID uint, cleared bool, err error)
	// OnlineUserIDs 返回当前在线用户ID，升序
	OnlineUserIDs(ctx context.Context) ([]uint, error)
}

// MemoryRegistry 进程内在线状态注册表
type MemoryRegistry struct {
	mu        sync.RWMutex
	byUser    map[uint]string
	bySession map[string]uint
}

// NewMemoryRegistry 创建空的内存注册表
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		byUser:    make(map[uint]string),
		bySession: make(map[string]uint),
	}
}

func (r *MemoryRegistry) SetOnline(_ context.Context, userID uint, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byUser[userID]; ok && old != sessionID {
		delete(r.bySession, old)
	}
	// 同一会话不会同时属于两个用户
	if prev, ok := r.bySession[sessionID]; ok && prev != userID {
		delete(r.byUser, prev)
	}
	r.byUser[userID] = sessionID
	r.bySession[sessionID] = userID
	return nil
}

func (r *MemoryRegistry) Session(_ context.Context, userID uint) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessionID, ok := r.byUser[userID]
	return sessionID, ok, nil
}

func (r *MemoryRegistry) ClearSession(_ context.Context, sessionID string) (uint, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.bySession[sessionID]
	if !ok {
		return 0, false, nil
	}
	delete(r.bySession, sessionID)
	if r.byUser[userID] == sessionID {
		delete(r.byUser, userID)
	}
	return userID, true, nil
}

func (r *MemoryRegistry) OnlineUserIDs(_ context.Context) ([]uint, error) {
	r.mu.RLock()
	ids := make([]uint, 0, len(r.byUser))
	for id := range r.byUser {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	SortIDs(ids)
	return ids, nil
}

// SortIDs 用户ID升序排序
func SortIDs(ids []uint) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
