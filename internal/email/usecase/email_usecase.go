package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	authdomain "mailsync-backend/internal/auth/domain"
	authrepo "mailsync-backend/internal/auth/repository"
	emaildomain "mailsync-backend/internal/email/domain"
	"mailsync-backend/internal/email/source"
	"mailsync-backend/pkg/apperror"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	// Gmail does not report byte usage, so storage is estimated from the message count.
	avgMessageBytes   = 75 * 1024
	mailboxQuotaBytes = 15 * 1024 * 1024 * 1024
)

// EmailUsecase exposes the configured EmailSource to handlers and the insight layer.
type EmailUsecase interface {
	SourceName() string
	ListMessages(ctx context.Context, user *authdomain.User, page, pageSize int) (*emaildomain.MessagePage, error)
	GetMessage(ctx context.Context, user *authdomain.User, id string) (*emaildomain.Email, error)
	SetStarred(ctx context.Context, user *authdomain.User, id string, star bool) (*emaildomain.Email, error)
	ListLabels(ctx context.Context, user *authdomain.User) ([]*emaildomain.Label, error)
	SyncStatus(ctx context.Context, user *authdomain.User) (*emaildomain.SyncStatus, error)
	Storage(ctx context.Context, user *authdomain.User) (*emaildomain.StorageInfo, error)
	// RecentMessages returns up to limit messages, newest first.
	RecentMessages(ctx context.Context, user *authdomain.User, limit int) ([]*emaildomain.Email, error)
	// WatchMailbox starts push notifications when the source and config allow it.
	WatchMailbox(ctx context.Context, user *authdomain.User) error
}

type emailUsecase struct {
	userRepo  authrepo.UserStore
	source    source.EmailSource
	topicName string
	log       *zap.Logger
}

func NewEmailUsecase(userRepo authrepo.UserStore, src source.EmailSource, topicName string, log *zap.Logger) EmailUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &emailUsecase{
		userRepo:  userRepo,
		source:    src,
		topicName: topicName,
		log:       log.Named("email"),
	}
}

func (u *emailUsecase) SourceName() string {
	return u.source.Name()
}

func (u *emailUsecase) makeTokenUpdateCallback(userID string) emaildomain.TokenUpdateFunc {
	return func(token *oauth2.Token) error {
		// request contexts may be gone by the time a refresh lands
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		user, err := u.userRepo.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return nil
		}

		user.AccessToken = token.AccessToken
		if token.RefreshToken != "" {
			user.RefreshToken = token.RefreshToken
		}
		user.TokenExpiry = token.Expiry

		return u.userRepo.Update(ctx, user)
	}
}

func (u *emailUsecase) account(user *authdomain.User) (emaildomain.Account, error) {
	if lr, ok := u.source.(source.LinkRequirer); ok && lr.RequiresMailboxLink() && !user.MailboxLinked() {
		return emaildomain.Account{}, apperror.Unauthorized("mailbox not linked")
	}
	return emaildomain.Account{
		UserID:         user.ID,
		Email:          user.Email,
		AccessToken:    user.AccessToken,
		RefreshToken:   user.RefreshToken,
		TokenExpiry:    user.TokenExpiry,
		OnTokenRefresh: u.makeTokenUpdateCallback(user.ID),
	}, nil
}

func mapSourceError(err error, action string) error {
	if errors.Is(err, source.ErrNotFound) {
		return apperror.NotFound("message not found")
	}
	return fmt.Errorf("%s: %w", action, err)
}

func (u *emailUsecase) ListMessages(ctx context.Context, user *authdomain.User, page, pageSize int) (*emaildomain.MessagePage, error) {
	acct, err := u.account(user)
	if err != nil {
		return nil, err
	}
	result, err := u.source.ListMessages(ctx, acct, page, pageSize)
	if err != nil {
		return nil, mapSourceError(err, "list messages")
	}
	return result, nil
}

func (u *emailUsecase) GetMessage(ctx context.Context, user *authdomain.User, id string) (*emaildomain.Email, error) {
	acct, err := u.account(user)
	if err != nil {
		return nil, err
	}
	email, err := u.source.GetMessage(ctx, acct, id)
	if err != nil {
		return nil, mapSourceError(err, "get message")
	}
	return email, nil
}

func (u *emailUsecase) SetStarred(ctx context.Context, user *authdomain.User, id string, star bool) (*emaildomain.Email, error) {
	acct, err := u.account(user)
	if err != nil {
		return nil, err
	}
	email, err := u.source.SetStarred(ctx, acct, id, star)
	if err != nil {
		return nil, mapSourceError(err, "set star")
	}
	return email, nil
}

func (u *emailUsecase) ListLabels(ctx context.Context, user *authdomain.User) ([]*emaildomain.Label, error) {
	acct, err := u.account(user)
	if err != nil {
		return nil, err
	}
	labels, err := u.source.ListLabels(ctx, acct)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	return labels, nil
}

// SyncStatus reports the history id advanced by push notifications. Before the first
// notification it falls back to the mailbox profile.
func (u *emailUsecase) SyncStatus(ctx context.Context, user *authdomain.User) (*emaildomain.SyncStatus, error) {
	status := &emaildomain.SyncStatus{
		Status:       "idle",
		Source:       u.source.Name(),
		HistoryID:    user.HistoryID,
		LastSyncedAt: user.LastSyncedAt,
	}
	if user.LastSyncedAt == nil {
		status.Status = "never_synced"
	}

	if status.HistoryID == 0 {
		acct, err := u.account(user)
		if err != nil {
			return nil, err
		}
		profile, err := u.source.Profile(ctx, acct)
		if err != nil {
			u.log.Warn("profile unavailable for sync status", zap.String("user_id", user.ID), zap.Error(err))
			return status, nil
		}
		status.HistoryID = profile.HistoryID
	}
	return status, nil
}

func (u *emailUsecase) Storage(ctx context.Context, user *authdomain.User) (*emaildomain.StorageInfo, error) {
	acct, err := u.account(user)
	if err != nil {
		return nil, err
	}
	profile, err := u.source.Profile(ctx, acct)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	used := int64(profile.MessagesTotal) * avgMessageBytes
	return &emaildomain.StorageInfo{
		UsedBytes:     used,
		TotalBytes:    mailboxQuotaBytes,
		UsedPercent:   math.Round(float64(used)/float64(mailboxQuotaBytes)*10000) / 100,
		MessagesTotal: profile.MessagesTotal,
		ThreadsTotal:  profile.ThreadsTotal,
	}, nil
}

func (u *emailUsecase) RecentMessages(ctx context.Context, user *authdomain.User, limit int) ([]*emaildomain.Email, error) {
	acct, err := u.account(user)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []*emaildomain.Email{}, nil
	}

	pageSize := limit
	if pageSize > source.MaxPageSize {
		pageSize = source.MaxPageSize
	}

	emails := make([]*emaildomain.Email, 0, limit)
	for page := 1; len(emails) < limit; page++ {
		result, err := u.source.ListMessages(ctx, acct, page, pageSize)
		if err != nil {
			return nil, mapSourceError(err, "list messages")
		}
		emails = append(emails, result.Messages...)
		if !result.HasMore || len(result.Messages) == 0 {
			break
		}
	}

	if len(emails) > limit {
		emails = emails[:limit]
	}
	return emails, nil
}

func (u *emailUsecase) WatchMailbox(ctx context.Context, user *authdomain.User) error {
	watcher, ok := u.source.(source.Watcher)
	if !ok || u.topicName == "" {
		return nil
	}

	acct, err := u.account(user)
	if err != nil {
		return err
	}
	historyID, err := watcher.Watch(ctx, acct, u.topicName)
	if err != nil {
		return fmt.Errorf("watch mailbox: %w", err)
	}

	if _, err := u.userRepo.AdvanceHistory(ctx, user.Email, historyID, time.Now()); err != nil {
		return fmt.Errorf("record history id: %w", err)
	}
	return nil
}
