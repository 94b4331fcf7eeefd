package repository

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"friend-chat/config"
	"friend-chat/internal/model"
	dbPkg "friend-chat/pkg/db"

	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// newTestDB 为每个测试打开独立的内存 sqlite 数据库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := dbPkg.Open(config.DatabaseConfig{
		Driver:   "sqlite",
		Database: fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1)),
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

func createUser(t *testing.T, repo *UserRepository, fullName, email string) *model.User {
	t.Helper()
	u := &model.User{FullName: fullName, Email: email, PasswordHash: "x"}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}
