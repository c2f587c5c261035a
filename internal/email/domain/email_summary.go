package domain

import "time"

// EmailSummary is a cached one-line summary for one message of one user
type EmailSummary struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"userId" gorm:"uniqueIndex:idx_user_email_unique;not null"`
	EmailID   string    `json:"emailId" gorm:"uniqueIndex:idx_user_email_unique;not null"`
	Summary   string    `json:"summary" gorm:"type:text"`
	CreatedAt time.Time `json:"createdAt"`
}

func (EmailSummary) TableName() string {
	return "email_summaries"
}
