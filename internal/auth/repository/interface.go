package repository

import (
	"context"
	"time"

	authdomain "mailsync-backend/internal/auth/domain"
)

// UserStore persists users. Lookups return (nil, nil) when nothing matches.
type UserStore interface {
	Create(ctx context.Context, user *authdomain.User) error
	FindByID(ctx context.Context, id string) (*authdomain.User, error)
	FindByGoogleID(ctx context.Context, googleID string) (*authdomain.User, error)
	FindByEmail(ctx context.Context, email string) (*authdomain.User, error)
	Update(ctx context.Context, user *authdomain.User) error
	Delete(ctx context.Context, id string) error
	// AdvanceHistory moves the user's history id forward. Older or equal ids are ignored
	// and reported with advanced=false.
	AdvanceHistory(ctx context.Context, email string, historyID uint64, at time.Time) (advanced bool, err error)
}
