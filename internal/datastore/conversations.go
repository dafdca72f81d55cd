package datastore

import (
	"context"

	"github.com/astropulse/astropulse/internal/models"
	"github.com/astropulse/astropulse/pkg/logger"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationRepository manages chat threads and their messages.
type ConversationRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationRepository(db *gorm.DB, log *logger.Logger) *ConversationRepository {
	return &ConversationRepository{db: db, log: log}
}

func (r *ConversationRepository) storageErr(ctx context.Context, err error, op string) error {
	r.log.Error(ctx).WithFields("error", err, "op", op).Logs("conversation storage failed")
	return utils.NewError(utils.CodeInternal, "conversation storage failed")
}

// Create starts a new thread.
func (r *ConversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	if err := r.db.WithContext(ctx).Create(conv).Error; err != nil {
		return r.storageErr(ctx, err, "create_conversation")
	}
	return nil
}

// List returns the user's threads without messages, most recent activity first.
func (r *ConversationRepository) List(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	convs := []models.Conversation{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, r.storageErr(ctx, err, "list_conversations")
	}
	return convs, nil
}

// GetByID fetches a thread with its messages in order. Not-owned reads as missing.
func (r *ConversationRepository) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("messages.created_at ASC")
		}).
		First(&conv).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, r.storageErr(ctx, err, "get_conversation")
	}
	return &conv, nil
}

// Delete removes a thread and its messages.
func (r *ConversationRepository) Delete(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Conversation{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true
		return tx.Where("conversation_id = ?", id).Delete(&models.Message{}).Error
	})
	if err != nil {
		return false, r.storageErr(ctx, err, "delete_conversation")
	}
	return deleted, nil
}

// SetTitle renames a thread. Used to auto-title from the first message.
func (r *ConversationRepository) SetTitle(ctx context.Context, id uuid.UUID, title string) error {
	err := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("title", title).Error
	if err != nil {
		return r.storageErr(ctx, err, "set_conversation_title")
	}
	return nil
}

// AddMessage appends a message and bumps the thread's activity time.
func (r *ConversationRepository) AddMessage(ctx context.Context, msg *models.Message) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Update("updated_at", msg.CreatedAt).Error
	})
	if err != nil {
		return r.storageErr(ctx, err, "add_message")
	}
	return nil
}

// History returns the last limit messages of a thread in chronological order.
func (r *ConversationRepository) History(ctx context.Context, convID uuid.UUID, limit int) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, r.storageErr(ctx, err, "conversation_history")
	}
	// Reverse into chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
