package domain

import "time"

type User struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	Username     string     `json:"username"`
	Email        string     `json:"email" gorm:"uniqueIndex;not null"`
	Name         string     `json:"name"`
	GoogleID     string     `json:"googleId" gorm:"uniqueIndex;not null"`
	AccessToken  string     `json:"-" gorm:"type:text"` // never serialized
	RefreshToken string     `json:"-" gorm:"type:text"`
	TokenExpiry  time.Time  `json:"-"`
	HistoryID    uint64     `json:"historyId"`
	LastSyncedAt *time.Time `json:"lastSyncedAt"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`

	// SessionVersion is embedded in every session token; bumping it revokes them all.
	SessionVersion int `json:"-" gorm:"not null;default:0"`
}

func (User) TableName() string {
	return "users"
}

// MailboxLinked reports whether the OAuth code exchange has stored tokens for the user.
func (u *User) MailboxLinked() bool {
	return u.AccessToken != "" || u.RefreshToken != ""
}

// GoogleIdentity is the verified subset of a Google ID token.
type GoogleIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}
