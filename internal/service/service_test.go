package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"friend-chat/config"
	"friend-chat/internal/model"
	"friend-chat/internal/repository"
	dbPkg "friend-chat/pkg/db"
	"friend-chat/pkg/jwt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := dbPkg.Open(config.DatabaseConfig{
		Driver:   "sqlite",
		Database: fmt.Sprintf("file:svc_%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1)),
		MaxOpen:  1,
		LogLevel: "silent",
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := conn.AutoMigrate(&model.User{}, &model.Friendship{}, &model.Message{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return conn
}

type push struct {
	UserID uint
	Event  string
	Data   interface{}
}

// fakeNotifier 记录推送；online 中的用户视为在线
type fakeNotifier struct {
	mu     sync.Mutex
	online map[uint]bool
	pushes []push
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{online: map[uint]bool{}}
}

func (n *fakeNotifier) setOnline(ids ...uint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, id := range ids {
		n.online[id] = true
	}
}

func (n *fakeNotifier) PushToUser(_ context.Context, userID uint, event string, data interface{}) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.online[userID] {
		return false
	}
	n.pushes = append(n.pushes, push{UserID: userID, Event: event, Data: data})
	return true
}

func (n *fakeNotifier) received(userID uint, event string) []push {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []push
	for _, p := range n.pushes {
		if p.UserID == userID && p.Event == event {
			out = append(out, p)
		}
	}
	return out
}

// fakeStore 内存资源存储
type fakeStore struct {
	mu         sync.Mutex
	uploads    map[string]string
	uploadErr  error
	destroyErr error
	destroyed  []string
	seq        int
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploads: map[string]string{}}
}

func (s *fakeStore) Upload(ctx context.Context, data string) (string, error) {
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	if _, ok := ctx.Deadline(); !ok {
		return "", errors.New("upload called without a deadline")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	url := fmt.Sprintf("/assets/%d.png", s.seq)
	s.uploads[url] = data
	return url, nil
}

func (s *fakeStore) Destroy(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = append(s.destroyed, url)
	if s.destroyErr != nil {
		return s.destroyErr
	}
	delete(s.uploads, url)
	return nil
}

// fixture 装配好的服务
type fixture struct {
	db       *gorm.DB
	users    *repository.UserRepository
	friends  *repository.FriendshipRepository
	messages *repository.MessageRepository
	notifier *fakeNotifier
	store    *fakeStore

	userSvc    *UserService
	friendSvc  *FriendService
	messageSvc *MessageService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := newTestDB(t)
	f := &fixture{
		db:       conn,
		users:    repository.NewUserRepository(conn),
		friends:  repository.NewFriendshipRepository(conn),
		messages: repository.NewMessageRepository(conn),
		notifier: newFakeNotifier(),
		store:    newFakeStore(),
	}
	jwtSvc := jwt.NewJWTService(config.JWTConfig{Secret: "svc-test", ExpireTime: time.Hour, Issuer: "test"})
	f.userSvc = NewUserService(f.users, jwtSvc, f.store, time.Second, nil).WithHashCost(bcrypt.MinCost)
	f.friendSvc = NewFriendService(f.users, f.friends, nil, nil)
	f.messageSvc = NewMessageService(f.messages, f.friends, f.users, f.notifier, f.store, time.Second, nil, nil)
	return f
}

func (f *fixture) user(t *testing.T, name string) *model.User {
	t.Helper()
	u, _, err := f.userSvc.Register(context.Background(), name, strings.ToLower(name)+"@example.com", "password1")
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return u
}

func (f *fixture) befriend(t *testing.T, a, b uint) {
	t.Helper()
	ctx := context.Background()
	if err := f.friendSvc.SendRequest(ctx, a, b); err != nil {
		t.Fatalf("send request: %v", err)
	}
	if err := f.friendSvc.Accept(ctx, b, a); err != nil {
		t.Fatalf("accept: %v", err)
	}
}
