package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"teamhub-backend/internal/domain"
	apperrors "teamhub-backend/pkg/errors"
)

const (
	userDirectoryKeyPrefix    = "directory:user:"
	projectDirectoryKeyPrefix = "directory:project:"
)

// DirectoryRepository reads user and project display data out of the Redis
// directory mirror maintained by the identity service. The chat service
// never writes these keys; a missing entry means the directory has not
// synced that record yet and enrichment is skipped.
type DirectoryRepository struct {
	client *redis.Client
}

// NewDirectoryRepository creates a new DirectoryRepository
func NewDirectoryRepository(client *redis.Client) *DirectoryRepository {
	return &DirectoryRepository{client: client}
}

// Resolve implements domain.UserDirectory
func (r *DirectoryRepository) Resolve(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error) {
	fields, err := r.client.HGetAll(ctx, userDirectoryKeyPrefix+userID.String()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	if len(fields) == 0 {
		return nil, apperrors.NotFoundError("User")
	}

	return &domain.UserProfile{
		UserID:    userID,
		FirstName: fields["first_name"],
		LastName:  fields["last_name"],
		AvatarURL: fields["avatar_url"],
		Role:      fields["role"],
	}, nil
}

// ProjectManagerOf implements domain.ProjectDirectory
func (r *DirectoryRepository) ProjectManagerOf(ctx context.Context, projectID uuid.UUID) (uuid.UUID, error) {
	raw, err := r.client.Get(ctx, projectDirectoryKeyPrefix+projectID.String()+":manager").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, apperrors.NotFoundError("Project")
		}
		return uuid.Nil, fmt.Errorf("failed to resolve project manager: %w", err)
	}

	managerID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid project manager id: %w", err)
	}
	return managerID, nil
}
