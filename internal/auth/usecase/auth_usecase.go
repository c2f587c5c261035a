package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	authdomain "mailsync-backend/internal/auth/domain"
	"mailsync-backend/internal/auth/repository"
	"mailsync-backend/pkg/apperror"
	"mailsync-backend/pkg/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

type authUsecase struct {
	userRepo repository.UserStore
	verifier CredentialVerifier
	oauth    OAuthProvider
	config   *config.Config
	log      *zap.Logger

	onMailboxLinked func(user *authdomain.User)
}

func NewAuthUsecase(userRepo repository.UserStore, verifier CredentialVerifier, oauth OAuthProvider, cfg *config.Config, log *zap.Logger) AuthUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &authUsecase{
		userRepo: userRepo,
		verifier: verifier,
		oauth:    oauth,
		config:   cfg,
		log:      log.Named("auth"),
	}
}

// SetMailboxLinkedCallback registers a hook that runs in the background after a successful code exchange.
func (u *authUsecase) SetMailboxLinkedCallback(cb func(user *authdomain.User)) {
	u.onMailboxLinked = cb
}

func usernameFromEmail(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

// GoogleSignIn verifies the credential and creates the user on first sign-in, or links an
// existing account with the same email to the Google identity.
func (u *authUsecase) GoogleSignIn(ctx context.Context, credential string) (*authdomain.User, error) {
	identity, err := u.verifier.Verify(ctx, credential)
	if err != nil {
		u.log.Info("credential rejected", zap.Error(err))
		return nil, apperror.Unauthorized("invalid Google credential")
	}
	if identity.Email == "" || !identity.EmailVerified {
		return nil, apperror.Unauthorized("google email is not verified")
	}

	user, err := u.userRepo.FindByGoogleID(ctx, identity.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		if user, err = u.userRepo.FindByEmail(ctx, identity.Email); err != nil {
			return nil, err
		}
	}

	if user == nil {
		user = &authdomain.User{
			Username: usernameFromEmail(identity.Email),
			Email:    identity.Email,
			Name:     identity.Name,
			GoogleID: identity.Subject,
		}
		if err := u.userRepo.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		u.log.Info("user created", zap.String("user_id", user.ID))
		return user, nil
	}

	user.GoogleID = identity.Subject
	user.Email = identity.Email
	if identity.Name != "" {
		user.Name = identity.Name
	}
	if user.Username == "" {
		user.Username = usernameFromEmail(identity.Email)
	}
	if err := u.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// AuthURL asks for offline access and forces the consent prompt so a refresh token is always issued.
func (u *authUsecase) AuthURL() (string, string) {
	state := xid.New().String()
	url := u.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
	return url, state
}

func (u *authUsecase) HandleCallback(ctx context.Context, userID, code string) (*authdomain.User, error) {
	if code == "" {
		return nil, apperror.InvalidInput("authorization code is required")
	}

	user, err := u.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.Unauthorized("user not found")
	}

	token, err := u.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	user.AccessToken = token.AccessToken
	// Google omits the refresh token when the user already granted offline access
	if token.RefreshToken != "" {
		user.RefreshToken = token.RefreshToken
	}
	user.TokenExpiry = token.Expiry

	if err := u.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("store tokens: %w", err)
	}
	u.log.Info("mailbox linked", zap.String("user_id", user.ID))

	if u.onMailboxLinked != nil {
		linked := *user
		go u.onMailboxLinked(&linked)
	}
	return user, nil
}

func (u *authUsecase) IssueSession(user *authdomain.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"sv":      user.SessionVersion,
		"exp":     now.Add(u.config.SessionTTL).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(u.config.SessionSecret))
}

func (u *authUsecase) ValidateSession(ctx context.Context, tokenString string) (*authdomain.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(u.config.SessionSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, apperror.Unauthorized("invalid or expired session")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperror.Unauthorized("invalid session claims")
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, apperror.Unauthorized("invalid session claims")
	}

	user, err := u.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.New(apperror.ErrUnauthorized, "user not found")
	}

	// tokens issued before the version existed carry no claim and count as 0
	version, _ := claims["sv"].(float64)
	if int(version) != user.SessionVersion {
		return nil, apperror.Unauthorized("session revoked")
	}
	return user, nil
}

func (u *authUsecase) RevokeSessions(ctx context.Context, user *authdomain.User) error {
	current, err := u.userRepo.FindByID(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if current == nil {
		return nil
	}

	current.SessionVersion++
	if err := u.userRepo.Update(ctx, current); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	u.log.Info("sessions revoked", zap.String("user_id", current.ID))
	return nil
}
