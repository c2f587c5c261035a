package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	authdomain "mailsync-backend/internal/auth/domain"
	"mailsync-backend/pkg/crypto"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// userRepository is the Postgres UserStore. OAuth tokens are sealed before they reach the table.
type userRepository struct {
	db     *gorm.DB
	cipher *crypto.TokenCipher
}

func NewUserRepository(db *gorm.DB, cipher *crypto.TokenCipher) UserStore {
	return &userRepository{
		db:     db,
		cipher: cipher,
	}
}

func (r *userRepository) seal(user *authdomain.User) (*authdomain.User, error) {
	row := *user
	var err error
	if row.AccessToken, err = r.cipher.Encrypt(user.AccessToken); err != nil {
		return nil, fmt.Errorf("encrypt access token: %w", err)
	}
	if row.RefreshToken, err = r.cipher.Encrypt(user.RefreshToken); err != nil {
		return nil, fmt.Errorf("encrypt refresh token: %w", err)
	}
	return &row, nil
}

func (r *userRepository) open(user *authdomain.User) (*authdomain.User, error) {
	var err error
	if user.AccessToken, err = r.cipher.Decrypt(user.AccessToken); err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}
	if user.RefreshToken, err = r.cipher.Decrypt(user.RefreshToken); err != nil {
		return nil, fmt.Errorf("decrypt refresh token: %w", err)
	}
	return user, nil
}

func (r *userRepository) Create(ctx context.Context, user *authdomain.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	row, err := r.seal(user)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *userRepository) findOne(ctx context.Context, query string, arg interface{}) (*authdomain.User, error) {
	var user authdomain.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.open(&user)
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*authdomain.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *userRepository) FindByGoogleID(ctx context.Context, googleID string) (*authdomain.User, error) {
	return r.findOne(ctx, "google_id = ?", googleID)
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*authdomain.User, error) {
	return r.findOne(ctx, "email = ?", email)
}

func (r *userRepository) Update(ctx context.Context, user *authdomain.User) error {
	user.UpdatedAt = time.Now()
	row, err := r.seal(user)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(row).Error
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&authdomain.User{}).Error
}

// AdvanceHistory is a single conditional UPDATE so concurrent notifications cannot move the id backwards.
func (r *userRepository) AdvanceHistory(ctx context.Context, email string, historyID uint64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&authdomain.User{}).
		Where("email = ? AND history_id < ?", email, historyID).
		Updates(map[string]interface{}{
			"history_id":     historyID,
			"last_synced_at": at,
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
