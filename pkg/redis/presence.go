package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// 在线状态使用两个 hash 互为索引：
//
//	<ns>:presence:user    userId -> sessionId
//	<ns>:presence:session sessionId -> userId
//
// 覆盖与按会话删除都通过 Lua 脚本原子执行
// 注册表只归一个网关进程所有：启动时 Reset，推送时会清除本进程未持有的会话
var (
	setOnlineScript = redis.NewScript(`
local old = redis.call('HGET', KEYS[1], ARGV[1])
if old and old ~= ARGV[2] then
	redis.call('HDEL', KEYS[2], old)
end
local prev = redis.call('HGET', KEYS[2], ARGV[2])
if prev and prev ~= ARGV[1] then
	redis.call('HDEL', KEYS[1], prev)
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[2], ARGV[2], ARGV[1])
return 1
`)

	clearSessionScript = redis.NewScript(`
local uid = redis.call('HGET', KEYS[2], ARGV[1])
if not uid then
	return false
end
redis.call('HDEL', KEYS[2], ARGV[1])
if redis.call('HGET', KEYS[1], uid) == ARGV[1] then
	redis.call('HDEL', KEYS[1], uid)
end
return uid
`)
)

// PresenceStore 基于Redis的在线状态注册表
type PresenceStore struct {
	rdb        redis.UniversalClient
	userKey    string
	sessionKey string
}

// NewPresenceStore 创建在线状态注册表，namespace 为 key 前缀
func NewPresenceStore(rdb redis.UniversalClient, namespace string) *PresenceStore {
	if namespace == "" {
		namespace = "chat"
	}
	return &PresenceStore{
		rdb:        rdb,
		userKey:    namespace + ":presence:user",
		sessionKey: namespace + ":presence:session",
	}
}

// Reset 清空注册表，进程启动时调用，使所有用户在重新连接前显示为离线
func (s *PresenceStore) Reset(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.userKey, s.sessionKey).Err(); err != nil {
		return fmt.Errorf("清空在线状态失败: %w", err)
	}
	return nil
}

func (s *PresenceStore) SetOnline(ctx context.Context, userID uint, sessionID string) error {
	keys := []string{s.userKey, s.sessionKey}
	if err := setOnlineScript.Run(ctx, s.rdb, keys, userID, sessionID).Err(); err != nil {
		return fmt.Errorf("设置用户在线状态失败: %w", err)
	}
	return nil
}

func (s *PresenceStore) Session(ctx context.Context, userID uint) (string, bool, error) {
	sid, err := s.rdb.HGet(ctx, s.userKey, strconv.FormatUint(uint64(userID), 10)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("获取用户会话失败: %w", err)
	}
	return sid, true, nil
}

func (s *PresenceStore) ClearSession(ctx context.Context, sessionID string) (uint, bool, error) {
	keys := []string{s.userKey, s.sessionKey}
	raw, err := clearSessionScript.Run(ctx, s.rdb, keys, sessionID).Text()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("移除用户会话失败: %w", err)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("非法的用户ID %q: %w", raw, err)
	}
	return uint(id), true, nil
}

func (s *PresenceStore) OnlineUserIDs(ctx context.Context) ([]uint, error) {
	members, err := s.rdb.HKeys(ctx, s.userKey).Result()
	if err != nil {
		return nil, fmt.Errorf("获取在线用户列表失败: %w", err)
	}

	ids := make([]uint, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
