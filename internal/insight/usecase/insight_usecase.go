package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	authdomain "mailsync-backend/internal/auth/domain"
	emaildomain "mailsync-backend/internal/email/domain"
	emailrepo "mailsync-backend/internal/email/repository"
	"mailsync-backend/internal/insight/domain"
	"mailsync-backend/pkg/ai"
	"mailsync-backend/pkg/apperror"
	"mailsync-backend/pkg/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	summaryPlaceholder  = "Summary unavailable for this email."
	genericExplanation  = "This email looks like the most time-sensitive message in your recent inbox. Read it first and reply with a clear next step or a time when you will follow up."
	defaultTone         = "professional"
	maxToneChars        = 40
	maxStoredSummaryLen = 300
)

// MailboxReader is the slice of the email layer the insight features read from.
type MailboxReader interface {
	RecentMessages(ctx context.Context, user *authdomain.User, limit int) ([]*emaildomain.Email, error)
}

// InsightService implements InsightUsecase.
type InsightService struct {
	mailbox   MailboxReader
	completer ai.Completer
	summaries emailrepo.EmailSummaryRepository
	worker    *SummaryWorkerService
	settings  func() Settings
	now       func() time.Time
	log       *zap.Logger
}

// NewInsightUsecase wires the AI features. summaries may be nil to disable the
// summary cache; settings may be nil to use DefaultSettings.
func NewInsightUsecase(
	mailbox MailboxReader,
	completer ai.Completer,
	summaries emailrepo.EmailSummaryRepository,
	settings func() Settings,
	log *zap.Logger,
) *InsightService {
	if settings == nil {
		settings = DefaultSettings
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &InsightService{
		mailbox:   mailbox,
		completer: completer,
		summaries: summaries,
		settings:  settings,
		now:       time.Now,
		log:       log.Named("insight"),
	}
}

var _ InsightUsecase = (*InsightService)(nil)

// SetSummaryWorker enables PrewarmSummaries.
func (u *InsightService) SetSummaryWorker(w *SummaryWorkerService) {
	u.worker = w
}

// complete runs one model call under the per-call deadline and records its outcome.
func (u *InsightService) complete(ctx context.Context, operation string, req ai.CompletionRequest) (string, error) {
	start := time.Now()
	out, err := ai.CallWithDeadline(ctx, u.settings().CallTimeout, func(ctx context.Context) (string, error) {
		return u.completer.Complete(ctx, req)
	})

	status := "ok"
	switch {
	case errors.Is(err, ai.ErrDeadlineExceeded):
		status = "timeout"
	case err != nil:
		status = "error"
	}
	metrics.RecordAICall(operation, status, time.Since(start))

	return strings.TrimSpace(out), err
}

// SummarizeEmail returns the one-sentence urgency and reply suggestion for email.
func (u *InsightService) SummarizeEmail(ctx context.Context, email *emaildomain.Email) (string, error) {
	summary, err := u.complete(ctx, "summarize", summarizePrompt(email))
	if err != nil {
		return "", err
	}
	if summary == "" {
		return "", errors.New("empty summary")
	}
	return clip(summary, maxStoredSummaryLen), nil
}

func (u *InsightService) DailyDigest(ctx context.Context, user *authdomain.User) (*domain.Digest, error) {
	s := u.settings()

	recent, err := u.mailbox.RecentMessages(ctx, user, s.DigestMaxEmails)
	if err != nil {
		return nil, err
	}

	cutoff := u.now().Add(-s.DigestLookback)
	batch := make([]*emaildomain.Email, 0, len(recent))
	for _, e := range recent {
		if !e.ReceivedAt.Before(cutoff) {
			batch = append(batch, e)
		}
	}

	digest := &domain.Digest{ImportantHighlights: []*domain.Highlight{}}
	if len(batch) == 0 {
		metrics.IncDigestSelection("empty")
		return digest, nil
	}

	priority := make(chan *domain.PriorityEmail, 1)
	go func() {
		priority <- u.pickPriority(ctx, batch)
	}()

	digest.ImportantHighlights = u.summarizeBatch(ctx, user.ID, batch, s.Concurrency)
	digest.TopPriorityEmail = <-priority
	return digest, nil
}

// summarizeBatch fans out one summary call per email. Results keep input order and
// a failed item only marks itself.
func (u *InsightService) summarizeBatch(ctx context.Context, userID string, batch []*emaildomain.Email, limit int) []*domain.Highlight {
	cached := u.cachedSummaries(ctx, userID, batch)

	highlights := make([]*domain.Highlight, len(batch))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, e := range batch {
		h := &domain.Highlight{
			EmailID:    e.ID,
			From:       e.From,
			FromName:   e.FromName,
			Subject:    e.Subject,
			Snippet:    e.Snippet,
			ReceivedAt: e.ReceivedAt,
		}
		highlights[i] = h

		if summary, ok := cached[e.ID]; ok {
			h.Summary = summary
			continue
		}

		g.Go(func() error {
			summary, err := u.SummarizeEmail(ctx, e)
			if err != nil {
				u.log.Warn("email summary failed", zap.String("email_id", e.ID), zap.Error(err))
				h.Summary = summaryPlaceholder
				h.Error = err.Error()
				return nil
			}
			h.Summary = summary
			u.storeSummary(ctx, userID, e.ID, summary)
			return nil
		})
	}
	_ = g.Wait()

	return highlights
}

func (u *InsightService) cachedSummaries(ctx context.Context, userID string, batch []*emaildomain.Email) map[string]string {
	if u.summaries == nil {
		return nil
	}

	ids := make([]string, len(batch))
	for i, e := range batch {
		ids[i] = e.ID
	}
	cached, err := u.summaries.GetSummaries(ctx, userID, ids)
	if err != nil {
		metrics.IncSummaryCache("error")
		u.log.Warn("summary cache read failed", zap.Error(err))
		return nil
	}

	for _, id := range ids {
		if _, ok := cached[id]; ok {
			metrics.IncSummaryCache("hit")
		} else {
			metrics.IncSummaryCache("miss")
		}
	}
	return cached
}

func (u *InsightService) storeSummary(ctx context.Context, userID, emailID, summary string) {
	if u.summaries == nil {
		return
	}
	if err := u.summaries.SaveSummary(ctx, userID, emailID, summary); err != nil {
		u.log.Warn("summary cache write failed", zap.String("email_id", emailID), zap.Error(err))
	}
}

// pickPriority asks the model for the index of the most important email, then for
// an explanation of that one email. Any stage-1 failure yields nil.
func (u *InsightService) pickPriority(ctx context.Context, batch []*emaildomain.Email) *domain.PriorityEmail {
	reply, err := u.complete(ctx, "identify_important", selectionPrompt(batch))
	if err != nil {
		metrics.IncDigestSelection("error")
		u.log.Warn("important email selection failed", zap.Error(err))
		return nil
	}

	idx, ok := parseIndex(reply, len(batch))
	if !ok {
		metrics.IncDigestSelection("miss")
		u.log.Info("important email selection did not resolve", zap.String("reply", clip(reply, 120)))
		return nil
	}
	metrics.IncDigestSelection("selected")

	e := batch[idx]
	explanation, err := u.complete(ctx, "explain_important", explainPrompt(e))
	if err != nil || explanation == "" {
		if err != nil {
			u.log.Warn("important email explanation failed", zap.String("email_id", e.ID), zap.Error(err))
		}
		explanation = genericExplanation
	}

	return &domain.PriorityEmail{
		EmailID:     e.ID,
		From:        e.From,
		FromName:    e.FromName,
		Subject:     e.Subject,
		Snippet:     e.Snippet,
		ReceivedAt:  e.ReceivedAt,
		Explanation: explanation,
	}
}

func (u *InsightService) EmailClusters(ctx context.Context, user *authdomain.User) (*domain.ClusterResult, error) {
	recent, err := u.mailbox.RecentMessages(ctx, user, u.settings().ClusterMaxEmails)
	if err != nil {
		return nil, err
	}

	clusters, err := u.ProjectClusters(ctx, recent)
	if err != nil {
		return nil, err
	}
	return &domain.ClusterResult{Clusters: clusters, GraphData: buildGraph(clusters)}, nil
}

func (u *InsightService) ProjectClusters(ctx context.Context, emails []*emaildomain.Email) ([]*domain.Cluster, error) {
	batch := u.clusterBatch(emails)
	if len(batch) == 0 {
		return []*domain.Cluster{}, nil
	}

	reply, err := u.complete(ctx, "cluster", clusterPrompt(batch))
	if err != nil {
		u.log.Error("clustering call failed", zap.Int("emails", len(batch)), zap.Error(err))
		return nil, apperror.Upstream("failed to cluster emails")
	}

	clusters, err := parseClusters(reply, batch)
	if err != nil {
		u.log.Error("clustering reply unusable", zap.String("reply", clip(reply, 200)), zap.Error(err))
		return nil, apperror.Upstream("failed to cluster emails")
	}
	return clusters, nil
}

func (u *InsightService) ExtractTopics(ctx context.Context, emails []*emaildomain.Email) (*domain.TopicResult, error) {
	batch := u.clusterBatch(emails)
	if len(batch) == 0 {
		return &domain.TopicResult{TopicData: []*domain.Topic{}, TopicEvolution: []domain.TopicPoint{}}, nil
	}

	reply, err := u.complete(ctx, "extract_topics", topicPrompt(batch))
	if err != nil {
		u.log.Error("topic extraction call failed", zap.Int("emails", len(batch)), zap.Error(err))
		return nil, apperror.Upstream("failed to extract topics")
	}

	topics, err := parseTopics(reply, len(batch))
	if err != nil {
		u.log.Error("topic reply unusable", zap.String("reply", clip(reply, 200)), zap.Error(err))
		return nil, apperror.Upstream("failed to extract topics")
	}
	return &domain.TopicResult{TopicData: topics, TopicEvolution: topicEvolution(topics, batch)}, nil
}

// clusterBatch drops nil entries and caps the batch at ClusterMaxEmails.
func (u *InsightService) clusterBatch(emails []*emaildomain.Email) []*emaildomain.Email {
	limit := u.settings().ClusterMaxEmails
	batch := make([]*emaildomain.Email, 0, len(emails))
	for _, e := range emails {
		if e == nil {
			continue
		}
		if limit > 0 && len(batch) == limit {
			break
		}
		batch = append(batch, e)
	}
	return batch
}

func (u *InsightService) DraftReply(ctx context.Context, email *emaildomain.Email, tone string) (string, error) {
	if email == nil {
		return "", apperror.InvalidInput("email is required")
	}
	tone = clip(strings.TrimSpace(tone), maxToneChars)
	if tone == "" {
		tone = defaultTone
	}

	draft, err := u.complete(ctx, "draft_reply", draftPrompt(email, tone))
	if err != nil {
		u.log.Error("draft reply failed", zap.String("email_id", email.ID), zap.Error(err))
		return "", apperror.Upstream("failed to draft reply")
	}
	if draft == "" {
		return "", apperror.Upstream("failed to draft reply")
	}
	return draft, nil
}

func (u *InsightService) PrewarmSummaries(ctx context.Context, user *authdomain.User) error {
	if u.worker == nil {
		return nil
	}

	recent, err := u.mailbox.RecentMessages(ctx, user, u.settings().DigestMaxEmails)
	if err != nil {
		return err
	}

	cached, queued, err := u.worker.QueueEmailsForSummary(ctx, user.ID, recent)
	if err != nil {
		return err
	}
	u.log.Info("summary prewarm queued",
		zap.String("user_id", user.ID),
		zap.Int("cached", len(cached)),
		zap.Int("queued", queued),
	)
	return nil
}
