package usecase

import (
	"context"
	"time"

	authdomain "mailsync-backend/internal/auth/domain"
	emaildomain "mailsync-backend/internal/email/domain"
	"mailsync-backend/internal/insight/domain"
)

// InsightUsecase runs the AI features over a user's mailbox or a client-supplied batch.
type InsightUsecase interface {
	DailyDigest(ctx context.Context, user *authdomain.User) (*domain.Digest, error)
	EmailClusters(ctx context.Context, user *authdomain.User) (*domain.ClusterResult, error)
	ProjectClusters(ctx context.Context, emails []*emaildomain.Email) ([]*domain.Cluster, error)
	ExtractTopics(ctx context.Context, emails []*emaildomain.Email) (*domain.TopicResult, error)
	DraftReply(ctx context.Context, email *emaildomain.Email, tone string) (string, error)
	// PrewarmSummaries queues background summaries for the user's digest candidates.
	PrewarmSummaries(ctx context.Context, user *authdomain.User) error
}

// Settings are the batching knobs, read on every request so runtime updates apply.
type Settings struct {
	DigestLookback   time.Duration
	DigestMaxEmails  int
	ClusterMaxEmails int
	Concurrency      int
	CallTimeout      time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		DigestLookback:   24 * time.Hour,
		DigestMaxEmails:  10,
		ClusterMaxEmails: 30,
		Concurrency:      10,
		CallTimeout:      10 * time.Second,
	}
}
