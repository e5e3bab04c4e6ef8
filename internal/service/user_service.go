package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/auth"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/config"
	"github.com/CreatyJohnKwon/la-farfalla-sub001/internal/datamodels/user"
)

type UserService struct {
	repo user.Repository
	jwt  *config.JWTConfig
}

func NewUserService(repo user.Repository, jwt *config.JWTConfig) *UserService {
	return &UserService{repo: repo, jwt: jwt}
}

func hashPassword(raw, salt string) string {
	h := sha256.Sum256([]byte(raw + salt))
	return hex.EncodeToString(h[:])
}

// Register 注册
func (s *UserService) Register(ctx context.Context, username, password, email string) (*user.User, error) {
	if username == "" || password == "" {
		return nil, validationErrorf("用户名和密码不能为空")
	}
	u := &user.User{
		Username: username,
		Email:    email,
		Salt:     "farfalla", // 简化实现，真实业务请使用随机盐
	}
	u.Password = hashPassword(password, u.Salt)
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login 登录并返回 JWT
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if hashPassword(password, u.Salt) != u.Password {
		return "", errors.New("invalid password")
	}
	return auth.GenerateToken(s.jwt, u.ID, u.Username)
}

// GetProfile 查询个人信息
func (s *UserService) GetProfile(ctx context.Context, userID int64) (*user.User, error) {
	return s.repo.GetByID(ctx, userID)
}

// UpdateAddress 更新默认收货地址
func (s *UserService) UpdateAddress(ctx context.Context, userID int64, address string) error {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	u.Address = address
	return s.repo.Update(ctx, u)
}
