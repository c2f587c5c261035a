package repository

import (
	"context"
	"errors"
	"time"

	emaildomain "mailsync-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EmailSummaryRepository caches per-email summaries keyed by (userID, emailID).
type EmailSummaryRepository interface {
	GetSummary(ctx context.Context, userID, emailID string) (*emaildomain.EmailSummary, error)
	// GetSummaries returns emailID -> summary for the ids that are cached.
	GetSummaries(ctx context.Context, userID string, emailIDs []string) (map[string]string, error)
	SaveSummary(ctx context.Context, userID, emailID, summary string) error
	DeleteSummary(ctx context.Context, userID, emailID string) error
}

type emailSummaryRepository struct {
	db *gorm.DB
}

func NewEmailSummaryRepository(db *gorm.DB) EmailSummaryRepository {
	return &emailSummaryRepository{
		db: db,
	}
}

func (r *emailSummaryRepository) GetSummary(ctx context.Context, userID, emailID string) (*emaildomain.EmailSummary, error) {
	var summary emaildomain.EmailSummary
	err := r.db.WithContext(ctx).Where("user_id = ? AND email_id = ?", userID, emailID).First(&summary).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &summary, nil
}

func (r *emailSummaryRepository) GetSummaries(ctx context.Context, userID string, emailIDs []string) (map[string]string, error) {
	if len(emailIDs) == 0 {
		return map[string]string{}, nil
	}

	var summaries []emaildomain.EmailSummary
	err := r.db.WithContext(ctx).Where("user_id = ? AND email_id IN ?", userID, emailIDs).Find(&summaries).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string]string, len(summaries))
	for _, s := range summaries {
		result[s.EmailID] = s.Summary
	}
	return result, nil
}

// SaveSummary upserts on (user_id, email_id).
func (r *emailSummaryRepository) SaveSummary(ctx context.Context, userID, emailID, summaryText string) error {
	summary := emaildomain.EmailSummary{
		ID:        uuid.New().String(),
		UserID:    userID,
		EmailID:   emailID,
		Summary:   summaryText,
		CreatedAt: time.Now(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "email_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"summary", "created_at"}),
	}).Create(&summary).Error
}

func (r *emailSummaryRepository) DeleteSummary(ctx context.Context, userID, emailID string) error {
	return r.db.WithContext(ctx).Where("user_id = ? AND email_id = ?", userID, emailID).Delete(&emaildomain.EmailSummary{}).Error
}
