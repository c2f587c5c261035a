package usecase

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	authdomain "mailsync-backend/internal/auth/domain"
	"mailsync-backend/internal/auth/repository"
	"mailsync-backend/pkg/apperror"
	"mailsync-backend/pkg/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeVerifier struct {
	identity *authdomain.GoogleIdentity
	err      error
}

func (f *fakeVerifier) Verify(ctx context.Context, credential string) (*authdomain.GoogleIdentity, error) {
	return f.identity, f.err
}

type fakeOAuth struct {
	token *oauth2.Token
	err   error
	code  string
}

func (f *fakeOAuth) AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string {
	return NewOAuthConfig("client-id", "secret", "http://localhost:8080/api/auth/callback").AuthCodeURL(state, opts...)
}

func (f *fakeOAuth) Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	f.code = code
	return f.token, f.err
}

func testConfig() *config.Config {
	return &config.Config{SessionSecret: "test-secret", SessionTTL: time.Hour}
}

func alexIdentity() *authdomain.GoogleIdentity {
	return &authdomain.GoogleIdentity{Subject: "g-123", Email: "alex@example.com", EmailVerified: true, Name: "Alex Doe"}
}

func TestGoogleSignIn_CreatesThenReusesUser(t *testing.T) {
	store := repository.NewMemoryUserRepository()
	uc := NewAuthUsecase(store, &fakeVerifier{identity: alexIdentity()}, &fakeOAuth{}, testConfig(), nil)

	first, err := uc.GoogleSignIn(context.Background(), "cred")
	require.NoError(t, err)
	assert.Equal(t, "alex", first.Username)
	assert.Equal(t, "g-123", first.GoogleID)

	second, err := uc.GoogleSignIn(context.Background(), "cred")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestGoogleSignIn_LinksExistingEmail(t *testing.T) {
	store := repository.NewMemoryUserRepository()
	existing := &authdomain.User{Email: "alex@example.com", GoogleID: "legacy"}
	require.NoError(t, store.Create(context.Background(), existing))

	uc := NewAuthUsecase(store, &fakeVerifier{identity: alexIdentity()}, &fakeOAuth{}, testConfig(), nil)
	user, err := uc.GoogleSignIn(context.Background(), "cred")

	require.NoError(t, err)
	assert.Equal(t, existing.ID, user.ID)
	assert.Equal(t, "g-123", user.GoogleID)
}

func TestGoogleSignIn_Rejected(t *testing.T) {
	store := repository.NewMemoryUserRepository()

	uc := NewAuthUsecase(store, &fakeVerifier{err: errors.New("bad signature")}, &fakeOAuth{}, testConfig(), nil)
	_, err := uc.GoogleSignIn(context.Background(), "cred")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	unverified := alexIdentity()
	unverified.EmailVerified = false
	uc = NewAuthUsecase(store, &fakeVerifier{identity: unverified}, &fakeOAuth{}, testConfig(), nil)
	_, err = uc.GoogleSignIn(context.Background(), "cred")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestAuthURL(t *testing.T) {
	uc := NewAuthUsecase(repository.NewMemoryUserRepository(), &fakeVerifier{}, &fakeOAuth{}, testConfig(), nil)

	raw, state := uc.AuthURL()
	require.NotEmpty(t, state)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, state, q.Get("state"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Contains(t, q.Get("scope"), "gmail.modify")

	_, other := uc.AuthURL()
	assert.NotEqual(t, state, other)
}

func TestHandleCallback_StoresTokensAndNotifies(t *testing.T) {
	store := repository.NewMemoryUserRepository()
	user := &authdomain.User{Email: "alex@example.com", GoogleID: "g-123"}
	require.NoError(t, store.Create(context.Background(), user))

	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	oauth := &fakeOAuth{token: &oauth2.Token{AccessToken: "ya29.a", RefreshToken: "1//r", Expiry: expiry}}
	uc := NewAuthUsecase(store, &fakeVerifier{}, oauth, testConfig(), nil)

	linked := make(chan *authdomain.User, 1)
	uc.SetMailboxLinkedCallback(func(u *authdomain.User) { linked <- u })

	updated, err := uc.HandleCallback(context.Background(), user.ID, "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "auth-code", oauth.code)
	assert.True(t, updated.MailboxLinked())

	stored, err := store.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ya29.a", stored.AccessToken)
	assert.Equal(t, "1//r", stored.RefreshToken)
	assert.Equal(t, expiry, stored.TokenExpiry)

	select {
	case u := <-linked:
		assert.Equal(t, user.ID, u.ID)
	case <-time.After(time.Second):
		t.Fatal("mailbox linked callback not invoked")
	}
}

func TestHandleCallback_Errors(t *testing.T) {
	store := repository.NewMemoryUserRepository()
	user := &authdomain.User{Email: "alex@example.com", GoogleID: "g-123"}
	require.NoError(t, store.Create(context.Background(), user))

	uc := NewAuthUsecase(store, &fakeVerifier{}, &fakeOAuth{err: errors.New("invalid_grant")}, testConfig(), nil)

	_, err := uc.HandleCallback(context.Background(), user.ID, "")
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = uc.HandleCallback(context.Background(), "missing", "code")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = uc.HandleCallback(context.Background(), user.ID, "code")
	assert.Error(t, err)
}

func TestSessionRoundTrip(t *testing.T) {
	store := repository.NewMemoryUserRepository()
	user := &authdomain.User{Email: "alex@example.com", GoogleID: "g-123"}
	require.NoError(t, store.Create(context.Background(), user))
	uc := NewAuthUsecase(store, &fakeVerifier{}, &fakeOAuth{}, testConfig(), nil)

	token, err := uc.IssueSession(user)
	require.NoError(t, err)

	got, err := uc.ValidateSession(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = uc.ValidateSession(context.Background(), token+"x")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	other := NewAuthUsecase(store, &fakeVerifier{}, &fakeOAuth{}, &config.Config{SessionSecret: "other", SessionTTL: time.Hour}, nil)
	_, err = other.ValidateSession(context.Background(), token)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestValidateSession_Expired(t *testing.T) {
	store := repository.NewMemoryUserRepository()
	uc := NewAuthUsecase(store, &fakeVerifier{}, &fakeOAuth{}, testConfig(), nil)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "u1",
		"exp":     time.Now().Add(-time.Minute).Unix(),
	})
	token, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = uc.ValidateSession(context.Background(), token)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestRevokeSessions(t *testing.T) {
	store := repository.NewMemoryUserRepository()
	user := &authdomain.User{Email: "alex@example.com", GoogleID: "g-123"}
	require.NoError(t, store.Create(context.Background(), user))
	uc := NewAuthUsecase(store, &fakeVerifier{}, &fakeOAuth{}, testConfig(), nil)

	oldToken, err := uc.IssueSession(user)
	require.NoError(t, err)

	require.NoError(t, uc.RevokeSessions(context.Background(), user))

	_, err = uc.ValidateSession(context.Background(), oldToken)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	fresh, err := store.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.SessionVersion)

	newToken, err := uc.IssueSession(fresh)
	require.NoError(t, err)
	got, err := uc.ValidateSession(context.Background(), newToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}
