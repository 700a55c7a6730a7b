package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-authgate/ssocenter/internal/config"
	"github.com/go-authgate/ssocenter/internal/core"
	"github.com/go-authgate/ssocenter/internal/models"
	"github.com/go-authgate/ssocenter/internal/store"
	"github.com/go-authgate/ssocenter/internal/util"

	"go.uber.org/zap"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotFound       = errors.New("user not found")
)

// UserInfo is the profile returned by the userinfo endpoint.
type UserInfo struct {
	Sub       string    `json:"sub"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}

// unknownUserHash is compared against when the username does not exist, so
// unknown users cost the same bcrypt work as a wrong password.
var unknownUserHash = sync.OnceValue(func() string {
	hash, err := util.HashSecret("unknown-user-placeholder", 0)
	if err != nil {
		return ""
	}
	return hash
})

type UserService struct {
	users  core.UserDirectory
	config *config.Config
	logger *zap.Logger
	verify func(hash, secret string) (bool, error)
}

func NewUserService(users core.UserDirectory, cfg *config.Config, log *zap.Logger) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{
		users:  users,
		config: cfg,
		logger: log.Named("user"),
		verify: util.VerifySecret,
	}
}

func (s *UserService) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.DBQueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.DBQueryTimeout)
}

// Authenticate checks a username and password. Unknown users, inactive
// users and wrong passwords all return ErrInvalidCredentials, and all of
// them pay for one bcrypt comparison.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	qctx, cancel := s.queryContext(ctx)
	defer cancel()
	user, err := s.users.GetUserByUsername(qctx, username)
	switch {
	case errors.Is(err, store.ErrRecordNotFound):
		_, _ = s.verify(unknownUserHash(), password)
		return nil, ErrInvalidCredentials
	case err != nil:
		s.logger.Error("failed to load user", zap.String("username", username), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to load user", ErrServerError)
	}

	ok, err := s.verify(user.PasswordHash, password)
	if err != nil {
		s.logger.Error("failed to verify password", zap.Int64("user_id", user.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to verify password", ErrServerError)
	}
	if !ok || !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetUserInfo loads the profile and active role names of userID.
func (s *UserService) GetUserInfo(ctx context.Context, userID int64) (*UserInfo, error) {
	qctx, cancel := s.queryContext(ctx)
	defer cancel()

	user, err := s.users.GetUserByID(qctx, userID)
	switch {
	case errors.Is(err, store.ErrRecordNotFound):
		return nil, ErrUserNotFound
	case err != nil:
		s.logger.Error("failed to load user", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to load user", ErrServerError)
	}

	roles, err := s.users.GetUserRoles(qctx, userID)
	if err != nil {
		s.logger.Error("failed to load user roles", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to load user roles", ErrServerError)
	}
	if roles == nil {
		roles = []string{}
	}

	return &UserInfo{
		Sub:       strconv.FormatInt(user.ID, 10),
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Roles:     roles,
		CreatedAt: user.CreatedAt,
	}, nil
}
