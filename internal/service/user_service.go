package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"friend-chat/internal/apperr"
	"friend-chat/internal/model"
	"friend-chat/internal/repository"
	"friend-chat/pkg/asset"
	"friend-chat/pkg/jwt"
	"friend-chat/pkg/password"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	repo         *repository.UserRepository
	jwtService   *jwt.JWTService
	assets       asset.Store
	assetTimeout time.Duration
	hashCost     int
	log          *zap.Logger
}

func NewUserService(repo *repository.UserRepository, jwtService *jwt.JWTService, assets asset.Store, assetTimeout time.Duration, log *zap.Logger) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{
		repo:         repo,
		jwtService:   jwtService,
		assets:       assets,
		assetTimeout: assetTimeout,
		hashCost:     bcrypt.DefaultCost,
		log:          log,
	}
}

// WithHashCost 调整 bcrypt 代价
func (s *UserService) WithHashCost(cost int) *UserService {
	s.hashCost = cost
	return s
}

// Register 注册并签发 token
func (s *UserService) Register(ctx context.Context, fullName, email, plainPassword string) (*model.User, string, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))
	if fullName == "" || email == "" || plainPassword == "" {
		return nil, "", apperr.ErrMissingFields
	}
	if len(plainPassword) < password.MinLength {
		return nil, "", apperr.ErrWeakPassword
	}

	// 密码哈希
	hash, err := password.HashWithCost(plainPassword, s.hashCost)
	if err != nil {
		return nil, "", err
	}
	user := &model.User{
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.jwtService.GenerateToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	s.log.Info("用户注册", zap.Uint("user_id", user.ID))
	return user, token, nil
}

// Login 登录
func (s *UserService) Login(ctx context.Context, email, plainPassword string) (*model.User, string, error) {
	email = strings.TrimSpace(email)
	if email == "" || plainPassword == "" {
		return nil, "", apperr.ErrMissingFields
	}
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrUserNotFound) {
			return nil, "", apperr.ErrBadCredential
		}
		return nil, "", err
	}
	if !password.Verify(plainPassword, u.PasswordHash) {
		return nil, "", apperr.ErrBadCredential
	}
	token, err := s.jwtService.GenerateToken(u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Get 获取用户
func (s *UserService) Get(ctx context.Context, id uint) (*model.User, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateProfilePic 上传新头像并替换旧头像
func (s *UserService) UpdateProfilePic(ctx context.Context, id uint, data string) (*model.User, error) {
	if strings.TrimSpace(data) == "" {
		return nil, apperr.Validation("profile_pic_required", "profile picture is required")
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	url, err := uploadImage(ctx, s.assets, s.assetTimeout, data)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateProfilePic(ctx, id, url); err != nil {
		return nil, err
	}
	if u.ProfilePic != "" && u.ProfilePic != url {
		destroyImage(ctx, s.assets, s.assetTimeout, u.ProfilePic, s.log)
	}

	u.ProfilePic = url
	return u, nil
}
