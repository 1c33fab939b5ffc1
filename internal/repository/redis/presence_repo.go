package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	presenceKeyPrefix = "presence:"
	presenceOnlineSet = "presence:online"

	// PresenceTTL bounds how long a presence entry survives without refresh,
	// so a crashed instance cannot leave users online forever
	PresenceTTL = 60 * time.Second
)

// PresenceRepository mirrors websocket connection state into Redis so that
// presence can be queried over HTTP and survives across instances. The
// in-memory connection registry stays authoritative for this instance;
// Redis is a best-effort reflection of it.
type PresenceRepository struct {
	client *redis.Client
}

// NewPresenceRepository creates a new PresenceRepository
func NewPresenceRepository(client *redis.Client) *PresenceRepository {
	return &PresenceRepository{client: client}
}

func presenceKey(userID uuid.UUID) string {
	return presenceKeyPrefix + userID.String()
}

// SetUserOnline marks a user online with a TTL
func (r *PresenceRepository) SetUserOnline(ctx context.Context, userID uuid.UUID) error {
	pipe := r.client.Pipeline()
	pipe.Set(ctx, presenceKey(userID), "1", PresenceTTL)
	pipe.SAdd(ctx, presenceOnlineSet, userID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set user online: %w", err)
	}
	return nil
}

// RefreshUserOnline extends the presence TTL for a connected user
func (r *PresenceRepository) RefreshUserOnline(ctx context.Context, userID uuid.UUID) error {
	if err := r.client.Expire(ctx, presenceKey(userID), PresenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to refresh presence: %w", err)
	}
	return nil
}

// SetUserOffline removes a user's presence entry
func (r *PresenceRepository) SetUserOffline(ctx context.Context, userID uuid.UUID) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, presenceKey(userID))
	pipe.SRem(ctx, presenceOnlineSet, userID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set user offline: %w", err)
	}
	return nil
}

// IsUserOnline reports whether a user has a live presence entry
func (r *PresenceRepository) IsUserOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	n, err := r.client.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check presence: %w", err)
	}
	return n > 0, nil
}

// GetOnlineUsers returns the ids of all users currently online.
// Entries whose per-user key expired are pruned from the set as a side
// effect, keeping the set roughly in sync with the TTLs.
func (r *PresenceRepository) GetOnlineUsers(ctx context.Context) ([]uuid.UUID, error) {
	members, err := r.client.SMembers(ctx, presenceOnlineSet).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list online users: %w", err)
	}

	users := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		userID, err := uuid.Parse(member)
		if err != nil {
			r.client.SRem(ctx, presenceOnlineSet, member)
			continue
		}
		alive, err := r.client.Exists(ctx, presenceKey(userID)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check presence: %w", err)
		}
		if alive == 0 {
			r.client.SRem(ctx, presenceOnlineSet, member)
			continue
		}
		users = append(users, userID)
	}
	return users, nil
}

// GetOnlineCount returns the size of the online set
func (r *PresenceRepository) GetOnlineCount(ctx context.Context) (int64, error) {
	count, err := r.client.SCard(ctx, presenceOnlineSet).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count online users: %w", err)
	}
	return count, nil
}
