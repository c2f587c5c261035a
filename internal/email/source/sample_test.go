package source

import (
	"context"
	"testing"
	"time"

	emaildomain "mailsync-backend/internal/email/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 14, 9, 26, 0, 0, time.UTC)
}

var testAccount = emaildomain.Account{UserID: "user-1", Email: "alex@example.com"}

func TestSampleSource_Deterministic(t *testing.T) {
	a := NewSampleSource(fixedClock)
	b := NewSampleSource(fixedClock)

	pa, err := a.ListMessages(context.Background(), testAccount, 1, 20)
	require.NoError(t, err)
	pb, err := b.ListMessages(context.Background(), testAccount, 1, 20)
	require.NoError(t, err)

	assert.Equal(t, pa, pb)
	require.Len(t, pa.Messages, 20)
	assert.Equal(t, "msg-000", pa.Messages[0].ID)
	assert.Equal(t, time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC), pa.Messages[0].ReceivedAt)
}

func TestSampleSource_NewestFirst(t *testing.T) {
	s := NewSampleSource(fixedClock)

	page, err := s.ListMessages(context.Background(), testAccount, 1, 100)
	require.NoError(t, err)

	for i := 1; i < len(page.Messages); i++ {
		assert.True(t, page.Messages[i-1].ReceivedAt.After(page.Messages[i].ReceivedAt), "message %d out of order", i)
	}
}

func TestSampleSource_Paging(t *testing.T) {
	s := NewSampleSource(fixedClock)
	ctx := context.Background()

	first, err := s.ListMessages(ctx, testAccount, 1, 0)
	require.NoError(t, err)
	assert.Len(t, first.Messages, DefaultPageSize)
	assert.True(t, first.HasMore)
	assert.False(t, first.MaxReached)

	fourth, err := s.ListMessages(ctx, testAccount, 4, 50)
	require.NoError(t, err)
	assert.Len(t, fourth.Messages, 50)
	assert.False(t, fourth.HasMore)
	assert.True(t, fourth.MaxReached)

	fifth, err := s.ListMessages(ctx, testAccount, 5, 50)
	require.NoError(t, err)
	assert.Empty(t, fifth.Messages)
	assert.NotNil(t, fifth.Messages)
	assert.True(t, fifth.MaxReached)
	assert.Equal(t, SampleMaxMessages, fifth.Total)
}

func TestSampleSource_GetMessage(t *testing.T) {
	s := NewSampleSource(fixedClock)

	email, err := s.GetMessage(context.Background(), testAccount, "msg-007")
	require.NoError(t, err)
	assert.Equal(t, "msg-007", email.ID)
	assert.NotEmpty(t, email.Body)
	assert.Contains(t, email.Body, "Hi alex,")
	assert.Equal(t, []string{"alex@example.com"}, email.To)

	for _, id := range []string{"", "msg-200", "msg-7", "msg--01", "other-001"} {
		_, err := s.GetMessage(context.Background(), testAccount, id)
		assert.ErrorIs(t, err, ErrNotFound, id)
	}
}

func TestSampleSource_SetStarredIdempotent(t *testing.T) {
	s := NewSampleSource(fixedClock)
	ctx := context.Background()

	first, err := s.SetStarred(ctx, testAccount, "msg-001", true)
	require.NoError(t, err)
	second, err := s.SetStarred(ctx, testAccount, "msg-001", true)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, second.IsStarred)
	assert.True(t, second.HasLabel("STARRED"))

	unstarred, err := s.SetStarred(ctx, testAccount, "msg-001", false)
	require.NoError(t, err)
	assert.False(t, unstarred.IsStarred)
	assert.False(t, unstarred.HasLabel("STARRED"))

	// other users keep the default
	other, err := s.GetMessage(ctx, emaildomain.Account{UserID: "user-2"}, "msg-000")
	require.NoError(t, err)
	assert.True(t, other.IsStarred)

	_, err = s.SetStarred(ctx, testAccount, "missing", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSampleSource_LabelsAndProfile(t *testing.T) {
	s := NewSampleSource(fixedClock)
	ctx := context.Background()

	labels, err := s.ListLabels(ctx, testAccount)
	require.NoError(t, err)
	require.NotEmpty(t, labels)
	assert.Equal(t, "INBOX", labels[0].ID)
	assert.Equal(t, SampleMaxMessages, labels[0].MessagesTotal)

	profile, err := s.Profile(ctx, testAccount)
	require.NoError(t, err)
	assert.Equal(t, "alex@example.com", profile.EmailAddress)
	assert.Equal(t, SampleMaxMessages, profile.MessagesTotal)
}
