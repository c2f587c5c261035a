package usecase

import (
	"context"
	"fmt"
	"sync"

	emaildomain "mailsync-backend/internal/email/domain"
	"mailsync-backend/internal/email/repository"

	"go.uber.org/zap"
)

// SummaryJob asks for the summary of one email of one user
type SummaryJob struct {
	UserID string
	Email  *emaildomain.Email
}

// SummarizeFunc produces the one-line summary of an email
type SummarizeFunc func(ctx context.Context, email *emaildomain.Email) (string, error)

// SummaryWorkerService fills the summary cache in the background so the next
// digest finds its summaries ready.
type SummaryWorkerService struct {
	summaryRepo repository.EmailSummaryRepository
	summarize   SummarizeFunc
	jobQueue    chan SummaryJob
	workerWg    sync.WaitGroup
	workerCount int
	started     bool
	stopped     bool
	mu          sync.Mutex
	log         *zap.Logger
}

func NewSummaryWorkerService(
	summaryRepo repository.EmailSummaryRepository,
	summarize SummarizeFunc,
	workerCount int,
	log *zap.Logger,
) *SummaryWorkerService {
	if workerCount <= 0 {
		workerCount = 3
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &SummaryWorkerService{
		summaryRepo: summaryRepo,
		summarize:   summarize,
		jobQueue:    make(chan SummaryJob, 500),
		workerCount: workerCount,
		log:         log.Named("summary_worker"),
	}
}

// Start launches the workers. They exit when ctx is cancelled or Stop is called.
func (s *SummaryWorkerService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}

	for i := 0; i < s.workerCount; i++ {
		s.workerWg.Add(1)
		go s.worker(ctx)
	}
	s.started = true
	s.log.Info("summary workers started", zap.Int("workers", s.workerCount))
}

// Stop closes the queue and waits for in-flight jobs.
func (s *SummaryWorkerService) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.jobQueue)
	s.mu.Unlock()

	s.workerWg.Wait()
	s.log.Info("summary workers stopped")
}

func (s *SummaryWorkerService) worker(ctx context.Context) {
	defer s.workerWg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-s.jobQueue:
			if !ok {
				return
			}
			s.processJob(ctx, job)
		}
	}
}

func (s *SummaryWorkerService) processJob(ctx context.Context, job SummaryJob) {
	log := s.log.With(zap.String("user_id", job.UserID), zap.String("email_id", job.Email.ID))

	existing, err := s.summaryRepo.GetSummary(ctx, job.UserID, job.Email.ID)
	if err != nil {
		log.Warn("summary cache lookup failed", zap.Error(err))
		return
	}
	if existing != nil {
		return
	}

	summary, err := s.summarize(ctx, job.Email)
	if err != nil {
		log.Warn("background summary failed", zap.Error(err))
		return
	}

	if err := s.summaryRepo.SaveSummary(ctx, job.UserID, job.Email.ID, summary); err != nil {
		log.Warn("summary save failed", zap.Error(err))
		return
	}
	log.Debug("summary cached")
}

// QueueJob enqueues without blocking. It reports false when the queue is full or stopped.
func (s *SummaryWorkerService) QueueJob(job SummaryJob) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	select {
	case s.jobQueue <- job:
		return true
	default:
		return false
	}
}

// QueueEmailsForSummary returns the summaries already cached and queues the rest.
func (s *SummaryWorkerService) QueueEmailsForSummary(ctx context.Context, userID string, emails []*emaildomain.Email) (map[string]string, int, error) {
	if len(emails) == 0 {
		return map[string]string{}, 0, nil
	}

	emailIDs := make([]string, len(emails))
	for i, email := range emails {
		emailIDs[i] = email.ID
	}

	cached, err := s.summaryRepo.GetSummaries(ctx, userID, emailIDs)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get cached summaries: %w", err)
	}

	queued := 0
	for _, email := range emails {
		if _, ok := cached[email.ID]; ok {
			continue
		}
		if s.QueueJob(SummaryJob{UserID: userID, Email: email}) {
			queued++
		}
	}

	return cached, queued, nil
}
