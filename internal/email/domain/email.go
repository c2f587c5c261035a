package domain

import (
	"time"

	"golang.org/x/oauth2"
)

// TokenUpdateFunc persists an access token refreshed during a provider call
type TokenUpdateFunc func(token *oauth2.Token) error

// Account identifies the mailbox a source call operates on
type Account struct {
	UserID         string
	Email          string
	AccessToken    string
	RefreshToken   string
	TokenExpiry    time.Time
	OnTokenRefresh TokenUpdateFunc
}

type Email struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"threadId"`
	From       string    `json:"from"`
	FromName   string    `json:"fromName"`
	To         []string  `json:"to"`
	Subject    string    `json:"subject"`
	Snippet    string    `json:"snippet"`
	Body       string    `json:"body,omitempty"` // HTML, only on single-message reads
	ReceivedAt time.Time `json:"receivedAt"`
	IsRead     bool      `json:"isRead"`
	IsStarred  bool      `json:"isStarred"`
	LabelIDs   []string  `json:"labelIds"`
}

// HasLabel reports whether the message carries labelID
func (e *Email) HasLabel(labelID string) bool {
	for _, l := range e.LabelIDs {
		if l == labelID {
			return true
		}
	}
	return false
}

type MessagePage struct {
	Messages   []*Email `json:"messages"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
	Total      int      `json:"total"`
	HasMore    bool     `json:"hasMore"`
	MaxReached bool     `json:"maxReached"`
}

type Label struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"` // "system" or "user"
	MessagesTotal  int    `json:"messagesTotal"`
	MessagesUnread int    `json:"messagesUnread"`
}

// Profile is the mailbox-level summary a source reports
type Profile struct {
	EmailAddress  string `json:"emailAddress"`
	MessagesTotal int    `json:"messagesTotal"`
	ThreadsTotal  int    `json:"threadsTotal"`
	HistoryID     uint64 `json:"historyId"`
}

type SyncStatus struct {
	Status       string     `json:"status"` // "idle", "never_synced"
	Source       string     `json:"source"`
	HistoryID    uint64     `json:"historyId"`
	LastSyncedAt *time.Time `json:"lastSyncedAt"`
}

type StorageInfo struct {
	UsedBytes     int64   `json:"usedBytes"`
	TotalBytes    int64   `json:"totalBytes"`
	UsedPercent   float64 `json:"usedPercent"`
	MessagesTotal int     `json:"messagesTotal"`
	ThreadsTotal  int     `json:"threadsTotal"`
}
