package datastore

import (
	"context"
	"strings"

	"github.com/astropulse/astropulse/internal/models"
	"github.com/astropulse/astropulse/pkg/logger"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRepository manages user accounts.
type UserRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepository(db *gorm.DB, log *logger.Logger) *UserRepository {
	return &UserRepository{db: db, log: log}
}

func (r *UserRepository) storageErr(ctx context.Context, err error, op string) error {
	r.log.Error(ctx).WithFields("error", err, "op", op).Logs("user storage failed")
	return utils.NewError(utils.CodeInternal, "user storage failed")
}

func isDuplicate(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}

// Create inserts a new user. A taken email maps to CONFLICT.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if isDuplicate(err) {
			return utils.NewError(utils.CodeConflict, "Email already registered")
		}
		return r.storageErr(ctx, err, "create_user")
	}
	return nil
}

// GetByEmail returns the user with that email, or nil.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, r.storageErr(ctx, err, "get_user_by_email")
	}
	return &u, nil
}

// GetByID returns the user, or nil.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, r.storageErr(ctx, err, "get_user_by_id")
	}
	return &u, nil
}

// Update persists profile changes.
func (r *UserRepository) Update(ctx context.Context, u *models.User) error {
	if err := r.db.WithContext(ctx).Save(u).Error; err != nil {
		if isDuplicate(err) {
			return utils.NewError(utils.CodeConflict, "Email already registered")
		}
		return r.storageErr(ctx, err, "update_user")
	}
	return nil
}

// ListWithBirthData pages through users that have enough birth data
// for chart work. Used by the batch jobs.
func (r *UserRepository) ListWithBirthData(ctx context.Context, offset, limit int) ([]models.User, error) {
	users := []models.User{}
	err := r.db.WithContext(ctx).
		Where("birth_birth_date <> ''").
		Order("created_at ASC").
		Offset(offset).
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, r.storageErr(ctx, err, "list_users_with_birth_data")
	}
	return users, nil
}

// DeleteAccount removes the user and everything they own in one
// transaction. This is the only multi-step transaction in the app.
func (r *UserRepository) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		convIDs := tx.Model(&models.Conversation{}).Select("id").Where("user_id = ?", userID)
		if err := tx.Where("conversation_id IN (?)", convIDs).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		for _, m := range []interface{}{
			&models.Conversation{},
			&models.Reading{},
			&models.Chart{},
			&models.TransitAlert{},
			&models.Entitlement{},
			&models.CompatibilityReport{},
		} {
			if err := tx.Where("user_id = ?", userID).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", userID).Delete(&models.User{}).Error
	})
	if err != nil {
		return r.storageErr(ctx, err, "delete_account")
	}
	return nil
}
