package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/memberledger/internal/directory/domain"
)

const (
	keyMember        = "memberledger:member:%s"
	defaultMemberTTL = 10 * time.Minute
)

type redisMemberCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisMemberCache stores members as JSON under a per-user key.
func NewRedisMemberCache(client *redis.Client, ttl time.Duration) domain.MemberCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultMemberTTL
	}
	return &redisMemberCache{client: client, ttl: ttl}
}

func (c *redisMemberCache) Get(ctx context.Context, userID string) (*domain.Member, bool, error) {
	raw, err := c.client.Get(ctx, memberKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var member domain.Member
	if err := json.Unmarshal(raw, &member); err != nil {
		// corrupt entry, treat as a miss
		_ = c.client.Del(ctx, memberKey(userID)).Err()
		return nil, false, nil
	}
	return &member, true, nil
}

func (c *redisMemberCache) Set(ctx context.Context, member *domain.Member) error {
	if member == nil || strings.TrimSpace(member.UserID) == "" {
		return nil
	}
	raw, err := json.Marshal(member)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, memberKey(member.UserID), raw, c.ttl).Err()
}

func memberKey(userID string) string {
	return fmt.Sprintf(keyMember, strings.TrimSpace(userID))
}
