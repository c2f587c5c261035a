// Package source defines where messages come from. Callers depend on
// EmailSource only, so the sample mailbox, Gmail and IMAP are interchangeable.
package source

import (
	"context"
	"errors"

	emaildomain "mailsync-backend/internal/email/domain"
)

var ErrNotFound = errors.New("message not found")

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// EmailSource is a mailbox provider.
type EmailSource interface {
	// Name identifies the provider in sync status payloads ("sample", "gmail", "imap").
	Name() string
	// ListMessages returns a 1-based page of messages, newest first, without bodies.
	ListMessages(ctx context.Context, acct emaildomain.Account, page, pageSize int) (*emaildomain.MessagePage, error)
	// GetMessage returns one message with its HTML body, or ErrNotFound.
	GetMessage(ctx context.Context, acct emaildomain.Account, id string) (*emaildomain.Email, error)
	// SetStarred sets the starred flag and returns the updated message. Repeating a call is a no-op.
	SetStarred(ctx context.Context, acct emaildomain.Account, id string, star bool) (*emaildomain.Email, error)
	ListLabels(ctx context.Context, acct emaildomain.Account) ([]*emaildomain.Label, error)
	Profile(ctx context.Context, acct emaildomain.Account) (*emaildomain.Profile, error)
}

// Watcher is implemented by sources that can push change notifications.
type Watcher interface {
	Watch(ctx context.Context, acct emaildomain.Account, topicName string) (historyID uint64, err error)
}

// LinkRequirer is implemented by sources that read the signed-in user's own mailbox
// and therefore need the OAuth code exchange to have happened.
type LinkRequirer interface {
	RequiresMailboxLink() bool
}

// NormalizePaging clamps page and pageSize to the supported range.
func NormalizePaging(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}
