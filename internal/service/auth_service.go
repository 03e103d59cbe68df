package service

import (
	"context"

	"go.uber.org/zap"

	"gridworks/internal/apperr"
	"gridworks/internal/model"
	"gridworks/internal/repository"
	"gridworks/pkg/rbac"
	"gridworks/pkg/util"
)

// AuthService 负责注册与登录，签发带角色的 JWT
type AuthService struct {
	users     *repository.UserRepo
	jwtSecret string
	logger    *zap.Logger
}

func NewAuthService(users *repository.UserRepo, jwtSecret string, logger *zap.Logger) *AuthService {
	return &AuthService{users: users, jwtSecret: jwtSecret, logger: logger}
}

type RegisterInput struct {
	Email        string
	Password     string
	Name         string
	Role         string
	ContractorID *int64
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	if in.Email == "" || in.Password == "" {
		return nil, apperr.Validation("email and password are required")
	}
	if !rbac.KnownRole(in.Role) {
		return nil, apperr.Validation("unknown role %q", in.Role)
	}
	if in.Role == rbac.RoleContractor && in.ContractorID == nil {
		return nil, apperr.Validation("contractor accounts need a contractor_id")
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, apperr.Transient(err, "failed to check existing user")
	}
	if existing != nil {
		return nil, apperr.Conflict("email %s is already registered", in.Email)
	}

	hash, err := util.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Transient(err, "failed to hash password")
	}

	u := &model.User{
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		Role:         in.Role,
		ContractorID: in.ContractorID,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, apperr.Transient(err, "failed to create user")
	}

	s.logger.Info("user registered",
		zap.Int64("user_id", u.ID),
		zap.String("role", u.Role))
	return u, nil
}

// Login verifies credentials and returns a signed token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, apperr.Transient(err, "failed to load user")
	}
	// 凭证错误统一返回同一个信息，避免账号枚举
	if u == nil || !u.Active || !util.CheckPassword(password, u.PasswordHash) {
		return "", nil, apperr.Forbidden("invalid credentials")
	}

	token, err := util.GenerateJWT(u.ID, u.Role, u.ContractorID, s.jwtSecret)
	if err != nil {
		return "", nil, apperr.Transient(err, "failed to sign token")
	}

	s.logger.Info("user logged in", zap.Int64("user_id", u.ID))
	return token, u, nil
}
