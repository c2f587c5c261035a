package usecase

import (
	"context"

	authdomain "mailsync-backend/internal/auth/domain"

	"golang.org/x/oauth2"
)

// AuthUsecase covers Google sign-in, mailbox linking and session tokens.
type AuthUsecase interface {
	GoogleSignIn(ctx context.Context, credential string) (*authdomain.User, error)
	// AuthURL returns the consent URL and the state value it embeds.
	AuthURL() (url string, state string)
	HandleCallback(ctx context.Context, userID, code string) (*authdomain.User, error)
	IssueSession(user *authdomain.User) (string, error)
	ValidateSession(ctx context.Context, token string) (*authdomain.User, error)
	// RevokeSessions invalidates every session token issued to the user so far.
	RevokeSessions(ctx context.Context, user *authdomain.User) error
	SetMailboxLinkedCallback(cb func(user *authdomain.User))
}

// CredentialVerifier checks a Google identity credential (an ID token).
type CredentialVerifier interface {
	Verify(ctx context.Context, credential string) (*authdomain.GoogleIdentity, error)
}

// OAuthProvider is the part of *oauth2.Config the gateway needs.
type OAuthProvider interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}
