package repository

import (
	"context"

	"github.com/smallbiznis/memberledger/internal/directory/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, member *domain.Member) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO members (user_id, tenant_id, display_name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		member.UserID,
		member.TenantID,
		member.DisplayName,
		member.CreatedAt,
		member.UpdatedAt,
	).Error
}

func (r *repo) FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*domain.Member, error) {
	var member domain.Member
	err := db.WithContext(ctx).Raw(
		`SELECT user_id, tenant_id, display_name, created_at, updated_at
		 FROM members WHERE user_id = ?`,
		userID,
	).Scan(&member).Error
	if err != nil {
		return nil, err
	}
	if member.UserID == "" {
		return nil, nil
	}
	return &member, nil
}
