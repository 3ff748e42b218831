package stores

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisRoleMembershipStore keeps user->roles grants in Redis sets, one set
// per user per organization (key: rolemem:{orgID}:{userID}).
type RedisRoleMembershipStore struct {
	client *redis.Client
	keyFmt string // format string, e.g. "rolemem:%s:%s"
}

func NewRedisRoleMembershipStore(client *redis.Client) *RedisRoleMembershipStore {
	return &RedisRoleMembershipStore{client: client, keyFmt: "rolemem:%s:%s"}
}

func (r *RedisRoleMembershipStore) key(userID, orgID string) string {
	return fmt.Sprintf(r.keyFmt, orgID, userID)
}

func (r *RedisRoleMembershipStore) AssignRole(ctx context.Context, userID, orgID, roleID string) error {
	return r.client.SAdd(ctx, r.key(userID, orgID), roleID).Err()
}

func (r *RedisRoleMembershipStore) RevokeRole(ctx context.Context, userID, orgID, roleID string) error {
	return r.client.SRem(ctx, r.key(userID, orgID), roleID).Err()
}

func (r *RedisRoleMembershipStore) ListRoleIDs(ctx context.Context, userID, orgID string) ([]string, error) {
	res, err := r.client.SMembers(ctx, r.key(userID, orgID)).Result()
	if err != nil {
		return nil, err
	}
	return res, nil
}
