package repository

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	authdomain "mailsync-backend/internal/auth/domain"
	"mailsync-backend/pkg/crypto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	user := &authdomain.User{Email: "alex@example.com", GoogleID: "g-1", Name: "Alex"}
	require.NoError(t, repo.Create(ctx, user))
	require.NotEmpty(t, user.ID)

	byGoogle, err := repo.FindByGoogleID(ctx, "g-1")
	require.NoError(t, err)
	require.NotNil(t, byGoogle)
	assert.Equal(t, user.ID, byGoogle.ID)

	// callers get copies
	byGoogle.Name = "changed"
	again, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alex", again.Name)

	again.AccessToken = "ya29.token"
	require.NoError(t, repo.Update(ctx, again))
	byEmail, err := repo.FindByEmail(ctx, "alex@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ya29.token", byEmail.AccessToken)

	missing, err := repo.FindByEmail(ctx, "nobody@example.com")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	assert.Error(t, repo.Create(ctx, &authdomain.User{Email: "alex@example.com", GoogleID: "g-2"}))

	require.NoError(t, repo.Delete(ctx, user.ID))
	gone, err := repo.FindByID(ctx, user.ID)
	assert.NoError(t, err)
	assert.Nil(t, gone)
}

func TestMemoryRepository_AdvanceHistoryIsMonotonic(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	require.NoError(t, repo.Create(ctx, &authdomain.User{Email: "alex@example.com", GoogleID: "g-1"}))

	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	advanced, err := repo.AdvanceHistory(ctx, "alex@example.com", 100, at)
	require.NoError(t, err)
	assert.True(t, advanced)

	advanced, err = repo.AdvanceHistory(ctx, "alex@example.com", 90, at.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, advanced)

	user, err := repo.FindByEmail(ctx, "alex@example.com")
	require.NoError(t, err)
	assert.EqualValues(t, 100, user.HistoryID)
	require.NotNil(t, user.LastSyncedAt)
	assert.Equal(t, at, *user.LastSyncedAt)

	advanced, err = repo.AdvanceHistory(ctx, "unknown@example.com", 500, at)
	require.NoError(t, err)
	assert.False(t, advanced)
}

func TestUserRepository_SealsTokens(t *testing.T) {
	cipher, err := crypto.NewTokenCipher("test-secret")
	require.NoError(t, err)
	repo := &userRepository{cipher: cipher}

	user := &authdomain.User{ID: "u1", AccessToken: "ya29.access", RefreshToken: "1//refresh"}

	row, err := repo.seal(user)
	require.NoError(t, err)
	assert.NotContains(t, row.AccessToken, "ya29")
	assert.NotContains(t, row.RefreshToken, "refresh")
	assert.True(t, strings.HasPrefix(row.AccessToken, "sb1:"))
	// the caller's value is untouched
	assert.Equal(t, "ya29.access", user.AccessToken)

	opened, err := repo.open(row)
	require.NoError(t, err)
	assert.Equal(t, "ya29.access", opened.AccessToken)
	assert.Equal(t, "1//refresh", opened.RefreshToken)
}

func TestUser_TokensNeverSerialized(t *testing.T) {
	raw, err := json.Marshal(&authdomain.User{ID: "u1", AccessToken: "ya29.secret", RefreshToken: "1//secret"})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
	assert.Contains(t, string(raw), `"googleId"`)
}
