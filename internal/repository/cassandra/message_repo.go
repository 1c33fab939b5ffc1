package cassandra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"teamhub-backend/internal/domain"
	apperrors "teamhub-backend/pkg/errors"
	"teamhub-backend/pkg/metrics"
)

// MessageRepository handles message storage in Cassandra.
// Messages are partitioned by conversation and clustered by a timeuuid
// message id in descending order, which gives insertion-time ordering and
// cursor pagination by message id. A messages_by_id lookup table resolves a
// bare message id to its owning conversation.
//
// Reactions, read receipts, attachments, and mentions are stored as JSON
// text columns mutated read-modify-write; atomicity is per message row.
type MessageRepository struct {
	session *gocql.Session
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(session *gocql.Session) *MessageRepository {
	return &MessageRepository{session: session}
}

const messageColumns = `conversation_id, message_id, sender_id, content, kind,
	attachments, reply_to, mentions, reactions, read_by,
	is_edited, edited_at, is_deleted, deleted_at, created_at`

// Insert persists a new message and its id lookup row
func (r *MessageRepository) Insert(ctx context.Context, message *domain.Message) error {
	if message.MessageID == uuid.Nil {
		message.MessageID = uuid.UUID(gocql.TimeUUID())
	}

	attachments, mentions, reactions, readBy, err := marshalMutable(message)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO messages (` + messageColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err = r.session.Query(query,
		message.ConversationID,
		message.MessageID,
		senderOrNil(message.SenderID),
		message.Content,
		string(message.Kind),
		attachments,
		replyOrNil(message.ReplyTo),
		mentions,
		reactions,
		readBy,
		message.IsEdited,
		message.EditedAt,
		message.IsDeleted,
		message.DeletedAt,
		message.CreatedAt,
	).WithContext(ctx).Exec()
	if err != nil {
		metrics.ChatMessagePersistedTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to save message: %w", err)
	}
	metrics.ChatMessagePersistedTotal.WithLabelValues("ok").Inc()

	err = r.session.Query(
		`INSERT INTO messages_by_id (message_id, conversation_id) VALUES (?, ?)`,
		message.MessageID, message.ConversationID,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("failed to save message lookup: %w", err)
	}

	return nil
}

// GetByID retrieves a message by id alone, resolving the owning
// conversation through the lookup table
func (r *MessageRepository) GetByID(ctx context.Context, messageID uuid.UUID) (*domain.Message, error) {
	var conversationID uuid.UUID
	err := r.session.Query(
		`SELECT conversation_id FROM messages_by_id WHERE message_id = ?`,
		messageID,
	).WithContext(ctx).Scan(&conversationID)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, apperrors.NotFoundError("Message")
		}
		return nil, fmt.Errorf("failed to resolve message: %w", err)
	}

	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ? AND message_id = ?`

	scanner := r.session.Query(query, conversationID, messageID).WithContext(ctx).Iter()
	message, ok := scanMessage(scanner)
	if err := scanner.Close(); err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	if !ok {
		return nil, apperrors.NotFoundError("Message")
	}

	return message, nil
}

// Update persists the mutable fields of a message (content, mentions,
// reactions, read receipts, edit/delete flags)
func (r *MessageRepository) Update(ctx context.Context, message *domain.Message) error {
	_, mentions, reactions, readBy, err := marshalMutable(message)
	if err != nil {
		return err
	}

	query := `
		UPDATE messages
		SET content = ?, mentions = ?, reactions = ?, read_by = ?,
		    is_edited = ?, edited_at = ?, is_deleted = ?, deleted_at = ?
		WHERE conversation_id = ? AND message_id = ?
	`

	err = r.session.Query(query,
		message.Content,
		mentions,
		reactions,
		readBy,
		message.IsEdited,
		message.EditedAt,
		message.IsDeleted,
		message.DeletedAt,
		message.ConversationID,
		message.MessageID,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}

	return nil
}

// List retrieves conversation messages newest-first with cursor pagination.
// Kind/sender/substring filters are applied while iterating the partition;
// Cassandra only narrows by the cursor range.
func (r *MessageRepository) List(ctx context.Context, conversationID uuid.UUID, filter domain.MessageFilter) ([]*domain.Message, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ?`
	args := []interface{}{conversationID}

	if filter.Before != nil {
		query += ` AND message_id < ?`
		args = append(args, *filter.Before)
	}
	if filter.After != nil {
		query += ` AND message_id > ?`
		args = append(args, *filter.After)
	}

	iter := r.session.Query(query, args...).WithContext(ctx).Iter()

	var messages []*domain.Message
	for len(messages) < limit {
		message, ok := scanMessage(iter)
		if !ok {
			break
		}
		if !matchesFilter(message, filter) {
			continue
		}
		messages = append(messages, message)
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return messages, nil
}

func matchesFilter(message *domain.Message, filter domain.MessageFilter) bool {
	if message.IsDeleted && !filter.IncludeDeleted {
		return false
	}
	if filter.Kind != nil && message.Kind != *filter.Kind {
		return false
	}
	if filter.SenderID != nil {
		if message.SenderID == nil || *message.SenderID != *filter.SenderID {
			return false
		}
	}
	if filter.Search != "" && !strings.Contains(strings.ToLower(message.Content), strings.ToLower(filter.Search)) {
		return false
	}
	return true
}

// ListUnread retrieves the messages in a conversation the user has not
// read, excluding their own and soft-deleted messages
func (r *MessageRepository) ListUnread(ctx context.Context, conversationID, userID uuid.UUID) ([]*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ?`
	iter := r.session.Query(query, conversationID).WithContext(ctx).Iter()

	var unread []*domain.Message
	for {
		message, ok := scanMessage(iter)
		if !ok {
			break
		}
		if message.IsDeleted {
			continue
		}
		if message.SenderID != nil && *message.SenderID == userID {
			continue
		}
		if message.IsReadBy(userID) {
			continue
		}
		unread = append(unread, message)
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list unread messages: %w", err)
	}

	return unread, nil
}

// CountUnread counts unread messages for a user in a conversation.
// Scans the partition; acceptable for conversation-sized partitions.
func (r *MessageRepository) CountUnread(ctx context.Context, conversationID, userID uuid.UUID) (int, error) {
	unread, err := r.ListUnread(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}
	return len(unread), nil
}

// DeleteByConversation removes every message of a conversation and the
// corresponding lookup rows (admin purge)
func (r *MessageRepository) DeleteByConversation(ctx context.Context, conversationID uuid.UUID) error {
	iter := r.session.Query(
		`SELECT message_id FROM messages WHERE conversation_id = ?`, conversationID,
	).WithContext(ctx).Iter()

	var messageID uuid.UUID
	var ids []uuid.UUID
	for iter.Scan(&messageID) {
		ids = append(ids, messageID)
	}
	if err := iter.Close(); err != nil {
		return fmt.Errorf("failed to enumerate messages: %w", err)
	}

	err := r.session.Query(
		`DELETE FROM messages WHERE conversation_id = ?`, conversationID,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}

	for _, id := range ids {
		err := r.session.Query(
			`DELETE FROM messages_by_id WHERE message_id = ?`, id,
		).WithContext(ctx).Exec()
		if err != nil {
			return fmt.Errorf("failed to delete message lookup: %w", err)
		}
	}

	return nil
}

// scanMessage reads one row from the iterator into a domain message
func scanMessage(iter *gocql.Iter) (*domain.Message, bool) {
	var (
		message                                  domain.Message
		senderID, replyTo                        uuid.UUID
		kind                                     string
		attachments, mentions, reactions, readBy string
	)

	ok := iter.Scan(
		&message.ConversationID,
		&message.MessageID,
		&senderID,
		&message.Content,
		&kind,
		&attachments,
		&replyTo,
		&mentions,
		&reactions,
		&readBy,
		&message.IsEdited,
		&message.EditedAt,
		&message.IsDeleted,
		&message.DeletedAt,
		&message.CreatedAt,
	)
	if !ok {
		return nil, false
	}

	message.Kind = domain.MessageKind(kind)
	if senderID != uuid.Nil {
		message.SenderID = &senderID
	}
	if replyTo != uuid.Nil {
		message.ReplyTo = &replyTo
	}
	unmarshalJSON(attachments, &message.Attachments)
	unmarshalJSON(mentions, &message.Mentions)
	unmarshalJSON(reactions, &message.Reactions)
	unmarshalJSON(readBy, &message.ReadBy)

	return &message, true
}

func marshalMutable(message *domain.Message) (attachments, mentions, reactions, readBy string, err error) {
	if attachments, err = marshalJSON(message.Attachments); err != nil {
		return
	}
	if mentions, err = marshalJSON(message.Mentions); err != nil {
		return
	}
	if reactions, err = marshalJSON(message.Reactions); err != nil {
		return
	}
	readBy, err = marshalJSON(message.ReadBy)
	return
}

func marshalJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal message field: %w", err)
	}
	return string(data), nil
}

func unmarshalJSON(data string, v interface{}) {
	if data == "" || data == "null" {
		return
	}
	// Corrupt field data degrades to the zero value rather than failing reads
	_ = json.Unmarshal([]byte(data), v)
}

// senderOrNil maps a nil sender (system message) to the uuid zero value
func senderOrNil(senderID *uuid.UUID) uuid.UUID {
	if senderID == nil {
		return uuid.Nil
	}
	return *senderID
}

func replyOrNil(replyTo *uuid.UUID) uuid.UUID {
	if replyTo == nil {
		return uuid.Nil
	}
	return *replyTo
}
