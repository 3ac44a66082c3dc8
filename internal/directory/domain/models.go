package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Member is a platform account that payments can be attributed to.
type Member struct {
	UserID      string    `json:"user_id" gorm:"primaryKey;type:varchar(191)"`
	TenantID    string    `json:"tenant_id" gorm:"type:varchar(191);not null;index"`
	DisplayName string    `json:"display_name" gorm:"type:varchar(255)"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null"`
}

func (Member) TableName() string { return "members" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, member *Member) error
	FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*Member, error)
}

// Service resolves members for attribution. It never authorizes anything.
type Service interface {
	Lookup(ctx context.Context, userID string) (*Member, error)
}

// MemberCache is a read-through cache in front of the members table.
type MemberCache interface {
	Get(ctx context.Context, userID string) (*Member, bool, error)
	Set(ctx context.Context, member *Member) error
}

var (
	ErrInvalidUserID  = errors.New("invalid_user_id")
	ErrMemberNotFound = errors.New("member_not_found")
)
