package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/memberledger/internal/directory/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  domain.Repository
	Cache domain.MemberCache `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	cache domain.MemberCache
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("directory.service"),
		repo:  p.Repo,
		cache: p.Cache,
	}
}

// Lookup reads through the cache. Cache failures degrade to the database.
func (s *Service) Lookup(ctx context.Context, userID string) (*domain.Member, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}

	if s.cache != nil {
		member, ok, err := s.cache.Get(ctx, userID)
		if err != nil {
			s.log.Warn("member cache read failed", zap.String("user_id", userID), zap.Error(err))
		} else if ok {
			return member, nil
		}
	}

	member, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, domain.ErrMemberNotFound
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, member); err != nil {
			s.log.Warn("member cache write failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return member, nil
}
