package cockroach

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"teamhub-backend/internal/domain"
	apperrors "teamhub-backend/pkg/errors"
)

// ConversationRepository handles conversation persistence.
// Participant-set mutations run in a transaction holding a row lock on the
// conversation, so concurrent add/remove on the same conversation are
// serialized and the set invariants hold.
type ConversationRepository struct {
	pool *pgxpool.Pool
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

// DirectKey builds the unique key for a direct conversation between an
// unordered pair of users
func DirectKey(a, b uuid.UUID) string {
	s1, s2 := a.String(), b.String()
	if s1 > s2 {
		s1, s2 = s2, s1
	}
	return s1 + ":" + s2
}

// Create inserts a conversation and its initial participant set atomically
func (r *ConversationRepository) Create(ctx context.Context, conversation *domain.Conversation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var directKey *string
	if conversation.Kind == domain.ConversationDirect {
		key := DirectKey(conversation.Participants[0], conversation.Participants[1])
		directKey = &key
	}

	query := `
		INSERT INTO conversations (
			conversation_id, kind, title, description, created_by, project_id,
			direct_key, last_activity_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = tx.Exec(ctx, query,
		conversation.ConversationID,
		conversation.Kind,
		conversation.Title,
		conversation.Description,
		conversation.CreatedBy,
		conversation.ProjectID,
		directKey,
		conversation.LastActivityAt,
		conversation.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ConflictError("Direct conversation already exists")
		}
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	for _, userID := range conversation.Participants {
		if err := insertParticipant(ctx, tx, conversation.ConversationID, userID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func insertParticipant(ctx context.Context, tx pgx.Tx, conversationID, userID uuid.UUID) error {
	query := `
		INSERT INTO conversation_participants (
			conversation_id, user_id, archived, muted, joined_at
		) VALUES ($1, $2, false, false, $3)
	`
	_, err := tx.Exec(ctx, query, conversationID, userID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}
	return nil
}

// GetByID retrieves a conversation with its participant set
func (r *ConversationRepository) GetByID(ctx context.Context, conversationID uuid.UUID) (*domain.Conversation, error) {
	return r.getByID(ctx, r.pool, conversationID, false)
}

func (r *ConversationRepository) getByID(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, conversationID uuid.UUID, forUpdate bool) (*domain.Conversation, error) {
	query := `
		SELECT conversation_id, kind, title, description, created_by, project_id,
		       last_message_id, last_activity_at, created_at
		FROM conversations
		WHERE conversation_id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	conversation := &domain.Conversation{}
	err := q.QueryRow(ctx, query, conversationID).Scan(
		&conversation.ConversationID,
		&conversation.Kind,
		&conversation.Title,
		&conversation.Description,
		&conversation.CreatedBy,
		&conversation.ProjectID,
		&conversation.LastMessageID,
		&conversation.LastActivityAt,
		&conversation.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFoundError("Conversation")
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	participants, err := loadParticipants(ctx, q, conversationID)
	if err != nil {
		return nil, err
	}
	conversation.Participants = participants

	return conversation, nil
}

func loadParticipants(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, conversationID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.Query(ctx,
		`SELECT user_id FROM conversation_participants WHERE conversation_id = $1 ORDER BY joined_at ASC`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	var participants []uuid.UUID
	for rows.Next() {
		var userID uuid.UUID
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, userID)
	}

	return participants, rows.Err()
}

// FindDirect looks up the direct conversation between an unordered pair of
// users. Returns (nil, nil) when none exists.
func (r *ConversationRepository) FindDirect(ctx context.Context, a, b uuid.UUID) (*domain.Conversation, error) {
	var conversationID uuid.UUID
	err := r.pool.QueryRow(ctx,
		`SELECT conversation_id FROM conversations WHERE direct_key = $1`,
		DirectKey(a, b)).Scan(&conversationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find direct conversation: %w", err)
	}

	return r.GetByID(ctx, conversationID)
}

// ListForUser retrieves the conversations a user participates in, most
// recent activity first
func (r *ConversationRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Conversation, error) {
	query := `
		SELECT c.conversation_id, c.kind, c.title, c.description, c.created_by,
		       c.project_id, c.last_message_id, c.last_activity_at, c.created_at
		FROM conversations c
		INNER JOIN conversation_participants cp ON c.conversation_id = cp.conversation_id
		WHERE cp.user_id = $1
		ORDER BY c.last_activity_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*domain.Conversation
	for rows.Next() {
		conversation := &domain.Conversation{}
		err := rows.Scan(
			&conversation.ConversationID,
			&conversation.Kind,
			&conversation.Title,
			&conversation.Description,
			&conversation.CreatedBy,
			&conversation.ProjectID,
			&conversation.LastMessageID,
			&conversation.LastActivityAt,
			&conversation.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, conversation)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, conversation := range conversations {
		participants, err := loadParticipants(ctx, r.pool, conversation.ConversationID)
		if err != nil {
			return nil, err
		}
		conversation.Participants = participants
	}

	return conversations, nil
}

// IsParticipant checks if a user is a participant in a conversation
func (r *ConversationRepository) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2)`

	var exists bool
	err := r.pool.QueryRow(ctx, query, conversationID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check participant: %w", err)
	}

	return exists, nil
}

// GetParticipantState retrieves a participant's view-local flags
func (r *ConversationRepository) GetParticipantState(ctx context.Context, conversationID, userID uuid.UUID) (*domain.ParticipantState, error) {
	query := `
		SELECT conversation_id, user_id, archived, muted, joined_at
		FROM conversation_participants
		WHERE conversation_id = $1 AND user_id = $2
	`

	state := &domain.ParticipantState{}
	err := r.pool.QueryRow(ctx, query, conversationID, userID).Scan(
		&state.ConversationID,
		&state.UserID,
		&state.Archived,
		&state.Muted,
		&state.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFoundError("Conversation")
		}
		return nil, fmt.Errorf("failed to get participant state: %w", err)
	}

	return state, nil
}

// SetParticipantFlags updates a participant's archived/muted flags; nil
// fields are left unchanged
func (r *ConversationRepository) SetParticipantFlags(ctx context.Context, conversationID, userID uuid.UUID, archived, muted *bool) error {
	query := `
		UPDATE conversation_participants
		SET archived = COALESCE($3, archived),
		    muted = COALESCE($4, muted)
		WHERE conversation_id = $1 AND user_id = $2
	`

	cmdTag, err := r.pool.Exec(ctx, query, conversationID, userID, archived, muted)
	if err != nil {
		return fmt.Errorf("failed to set participant flags: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.NotFoundError("Conversation")
	}

	return nil
}

// UpdateMeta updates conversation title/description; nil fields are left
// unchanged
func (r *ConversationRepository) UpdateMeta(ctx context.Context, conversationID uuid.UUID, title, description *string) error {
	query := `
		UPDATE conversations
		SET title = COALESCE($2, title),
		    description = COALESCE($3, description)
		WHERE conversation_id = $1
	`

	cmdTag, err := r.pool.Exec(ctx, query, conversationID, title, description)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.NotFoundError("Conversation")
	}

	return nil
}

// AddParticipant appends a user to the participant set and bumps activity.
// Fails with a conflict when the user is already a participant.
func (r *ConversationRepository) AddParticipant(ctx context.Context, conversationID, userID uuid.UUID) (*domain.Conversation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	conversation, err := r.getByID(ctx, tx, conversationID, true)
	if err != nil {
		return nil, err
	}

	if conversation.HasParticipant(userID) {
		return nil, apperrors.ConflictError("User is already a participant")
	}

	if err := insertParticipant(ctx, tx, conversationID, userID); err != nil {
		return nil, err
	}

	now := time.Now()
	_, err = tx.Exec(ctx,
		`UPDATE conversations SET last_activity_at = $2 WHERE conversation_id = $1`,
		conversationID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to bump activity: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	conversation.Participants = append(conversation.Participants, userID)
	conversation.LastActivityAt = now
	return conversation, nil
}

// RemoveParticipant deletes a user from the participant set. Fails with a
// validation error when removal would empty the set.
func (r *ConversationRepository) RemoveParticipant(ctx context.Context, conversationID, userID uuid.UUID) (*domain.Conversation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	conversation, err := r.getByID(ctx, tx, conversationID, true)
	if err != nil {
		return nil, err
	}

	if !conversation.HasParticipant(userID) {
		return nil, apperrors.NotFoundError("Participant")
	}
	if len(conversation.Participants) == 1 {
		return nil, apperrors.ValidationError("Cannot remove the last participant")
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to remove participant: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	remaining := conversation.Participants[:0]
	for _, p := range conversation.Participants {
		if p != userID {
			remaining = append(remaining, p)
		}
	}
	conversation.Participants = remaining
	return conversation, nil
}

// TouchActivity updates the denormalized last-message pointer and activity time
func (r *ConversationRepository) TouchActivity(ctx context.Context, conversationID, lastMessageID uuid.UUID, at time.Time) error {
	query := `
		UPDATE conversations
		SET last_message_id = $2, last_activity_at = $3
		WHERE conversation_id = $1
	`

	_, err := r.pool.Exec(ctx, query, conversationID, lastMessageID, at)
	if err != nil {
		return fmt.Errorf("failed to touch activity: %w", err)
	}

	return nil
}

// Delete hard-deletes a conversation and its participant rows (admin purge)
func (r *ConversationRepository) Delete(ctx context.Context, conversationID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `DELETE FROM conversation_participants WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return fmt.Errorf("failed to delete participants: %w", err)
	}

	cmdTag, err := tx.Exec(ctx, `DELETE FROM conversations WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.NotFoundError("Conversation")
	}

	return tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	// 23505 = unique_violation
	return err != nil && strings.Contains(err.Error(), "23505")
}
