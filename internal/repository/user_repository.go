package repository

import (
	"context"
	"errors"
	"strings"

	"friend-chat/internal/apperr"
	"friend-chat/internal/model"

	"gorm.io/gorm"
)

// UserRepository 用户数据仓储
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建UserRepository实例
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create 创建用户，邮箱重复时返回 ErrEmailTaken
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.ErrEmailTaken
	}
	return err
}

// GetByID 根据ID获取用户
func (r *UserRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByEmail 根据邮箱获取用户（忽略大小写）
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByIDs 批量获取用户，按ID升序
func (r *UserRepository) GetByIDs(ctx context.Context, ids []uint) ([]model.User, error) {
	users := []model.User{}
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&users).Error
	return users, err
}

// UpdateProfilePic 更新头像URL
func (r *UserRepository) UpdateProfilePic(ctx context.Context, id uint, url string) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("profile_pic", url)
	if res.Error != nil {
		return res.Error
	}
	// MySQL 对值未变化的行返回 0，需要再确认用户是否存在
	if res.RowsAffected == 0 {
		_, err := r.GetByID(ctx, id)
		return err
	}
	return nil
}

// SearchExcluding 按姓名或邮箱模糊搜索（忽略大小写），排除给定的用户ID
func (r *UserRepository) SearchExcluding(ctx context.Context, query string, exclude []uint) ([]model.User, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	users := []model.User{}
	tx := r.db.WithContext(ctx).
		Where("(LOWER(full_name) LIKE ? ESCAPE '!' OR LOWER(email) LIKE ? ESCAPE '!')", pattern, pattern)
	if len(exclude) > 0 {
		tx = tx.Where("id NOT IN ?", exclude)
	}
	err := tx.Order("id ASC").Find(&users).Error
	return users, err
}

// escapeLike 转义 LIKE 通配符，'!' 作为转义字符
func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
