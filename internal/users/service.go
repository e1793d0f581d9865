package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sundayezeilo/linksnap/internal/errx"
	"github.com/sundayezeilo/linksnap/internal/idgen"
)

// Service is the user directory: registration and credential checks.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (User, error)
	// Login verifies identifier (email or username) and password.
	Login(ctx context.Context, identifier, password string) (User, error)
	Count(ctx context.Context) (int, error)
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	IDs        idgen.Generator
	BcryptCost int
	Logger     *zap.Logger
	Now        func() time.Time
}

type service struct {
	repo   Repository
	ids    idgen.Generator
	cost   int
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, cfg *ServiceConfig) Service {
	if cfg == nil {
		cfg = &ServiceConfig{}
	}
	s := &service{
		repo:   repo,
		ids:    cfg.IDs,
		cost:   cfg.BcryptCost,
		logger: cfg.Logger,
		now:    cfg.Now,
	}
	if s.ids == nil {
		s.ids = idgen.NewV4()
	}
	if s.cost == 0 {
		s.cost = bcrypt.DefaultCost
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (User, error) {
	const op = "users.service.Register"

	req = req.normalize()
	if err := req.Validate(); err != nil {
		return User{}, errx.E(op, errx.Invalid, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		// bcrypt rejects passwords over 72 bytes.
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return User{}, errx.E(op, errx.Invalid, err)
		}
		return User{}, errx.E(op, errx.Internal, err)
	}

	id, err := idgen.NewString(s.ids)
	if err != nil {
		return User{}, errx.E(op, errx.Internal, err)
	}

	user, err := s.repo.Create(ctx, User{
		ID:           id,
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC().Truncate(time.Microsecond),
	})
	if err != nil {
		return User{}, errx.Wrap(op, err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}

func (s *service) Login(ctx context.Context, identifier, password string) (User, error) {
	const op = "users.service.Login"

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return User{}, errx.E(op, errx.Invalid, ErrMissingLogin)
	}

	user, err := s.repo.FindByLogin(ctx, identifier)
	if err != nil {
		return User{}, errx.Wrap(op, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return User{}, errx.E(op, errx.Unauthorized, ErrInvalidPassword)
		}
		return User{}, errx.E(op, errx.Internal, err)
	}
	return user, nil
}

func (s *service) Count(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, errx.Wrap("users.service.Count", err)
	}
	return n, nil
}
