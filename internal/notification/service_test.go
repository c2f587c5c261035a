package notification

import (
	"context"
	"testing"
	"time"

	authdomain "mailsync-backend/internal/auth/domain"
	authrepo "mailsync-backend/internal/auth/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicNames(t *testing.T) {
	assert.Equal(t, "projects/p1/topics/gmail", TopicPath("p1", "gmail"))
	assert.Equal(t, "projects/p2/topics/gmail", TopicPath("p1", "projects/p2/topics/gmail"))
	assert.Equal(t, "", TopicPath("p1", ""))

	svc := newService(authrepo.NewMemoryUserRepository(), "projects/p1/topics/gmail-push", nil)
	assert.Equal(t, "gmail-push", svc.topicName)
	assert.Equal(t, "gmail-push-sub", svc.subName)
}

func TestHandleNotification(t *testing.T) {
	ctx := context.Background()
	store := authrepo.NewMemoryUserRepository()
	require.NoError(t, store.Create(ctx, &authdomain.User{Email: "alex@example.com", GoogleID: "g-1"}))

	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	svc := newService(store, "gmail", nil)
	svc.now = func() time.Time { return at }

	var changed []uint64
	svc.SetChangeHandler(func(ctx context.Context, user *authdomain.User) {
		changed = append(changed, user.HistoryID)
	})

	require.NoError(t, svc.HandleNotification(ctx, []byte(`{"emailAddress":"alex@example.com","historyId":120}`)))
	// duplicate and older ids are ignored
	require.NoError(t, svc.HandleNotification(ctx, []byte(`{"emailAddress":"alex@example.com","historyId":120}`)))
	require.NoError(t, svc.HandleNotification(ctx, []byte(`{"emailAddress":"alex@example.com","historyId":90}`)))
	// unknown mailbox
	require.NoError(t, svc.HandleNotification(ctx, []byte(`{"emailAddress":"nobody@example.com","historyId":500}`)))

	user, err := store.FindByEmail(ctx, "alex@example.com")
	require.NoError(t, err)
	assert.EqualValues(t, 120, user.HistoryID)
	require.NotNil(t, user.LastSyncedAt)
	assert.True(t, at.Equal(*user.LastSyncedAt))
	assert.Equal(t, []uint64{120}, changed)
}

func TestHandleNotification_Malformed(t *testing.T) {
	svc := newService(authrepo.NewMemoryUserRepository(), "gmail", nil)

	assert.Error(t, svc.HandleNotification(context.Background(), []byte(`not json`)))
	assert.Error(t, svc.HandleNotification(context.Background(), []byte(`{"historyId":1}`)))
	assert.Error(t, svc.HandleNotification(context.Background(), []byte(`{"emailAddress":"a@b.c"}`)))
}
