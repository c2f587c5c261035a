package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	authdomain "mailsync-backend/internal/auth/domain"
	authrepo "mailsync-backend/internal/auth/repository"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GmailNotification is the payload Gmail publishes on every mailbox change.
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// ChangeFunc runs after a notification advanced a user's history id.
type ChangeFunc func(ctx context.Context, user *authdomain.User)

// Service consumes Gmail push notifications and records sync progress on the user.
type Service struct {
	pubsubClient *pubsub.Client
	userRepo     authrepo.UserStore
	topicName    string
	subName      string
	onChange     ChangeFunc
	now          func() time.Time
	log          *zap.Logger
}

// TopicPath returns the fully qualified topic name Gmail watch requests need.
func TopicPath(projectID, topic string) string {
	if topic == "" || strings.HasPrefix(topic, "projects/") {
		return topic
	}
	return fmt.Sprintf("projects/%s/topics/%s", projectID, topic)
}

// topicID strips the "projects/<p>/topics/" prefix.
func topicID(topic string) string {
	if i := strings.LastIndex(topic, "/topics/"); i >= 0 {
		return topic[i+len("/topics/"):]
	}
	return topic
}

func NewService(ctx context.Context, projectID, topicName, credentialsFile string, userRepo authrepo.UserStore, log *zap.Logger) (*Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	svc := newService(userRepo, topicName, log)
	svc.pubsubClient = client
	return svc, nil
}

func newService(userRepo authrepo.UserStore, topicName string, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	id := topicID(topicName)
	return &Service{
		userRepo:  userRepo,
		topicName: id,
		subName:   id + "-sub",
		now:       time.Now,
		log:       log.Named("pubsub"),
	}
}

// SetChangeHandler registers fn to run for every accepted notification.
func (s *Service) SetChangeHandler(fn ChangeFunc) {
	s.onChange = fn
}

// Start makes sure the subscription exists and receives until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log := s.log.With(zap.String("topic", s.topicName), zap.String("subscription", s.subName))

	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return fmt.Errorf("check subscription: %w", err)
	}

	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			return fmt.Errorf("check topic: %w", err)
		}
		if !topicExists {
			return fmt.Errorf("topic %s does not exist", s.topicName)
		}

		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			return fmt.Errorf("create subscription: %w", err)
		}
		log.Info("created subscription")
	}

	log.Info("listening for mailbox notifications")
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := s.HandleNotification(ctx, msg.Data); err != nil {
			log.Warn("notification dropped", zap.String("message_id", msg.ID), zap.Error(err))
		}
		// acked even when dropped; redelivery would fail the same way
		msg.Ack()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("receive: %w", err)
	}
	return nil
}

// HandleNotification decodes one Gmail notification and advances the user's
// history id. Stale or duplicate ids and unknown mailboxes are ignored.
func (s *Service) HandleNotification(ctx context.Context, data []byte) error {
	var notification GmailNotification
	if err := json.Unmarshal(data, &notification); err != nil {
		return fmt.Errorf("decode notification: %w", err)
	}
	if notification.EmailAddress == "" || notification.HistoryID == 0 {
		return errors.New("notification without emailAddress or historyId")
	}

	log := s.log.With(zap.String("email", notification.EmailAddress), zap.Uint64("history_id", notification.HistoryID))

	advanced, err := s.userRepo.AdvanceHistory(ctx, notification.EmailAddress, notification.HistoryID, s.now())
	if err != nil {
		return fmt.Errorf("advance history: %w", err)
	}
	if !advanced {
		log.Debug("notification skipped (stale, duplicate or unknown mailbox)")
		return nil
	}
	log.Info("mailbox changed")

	if s.onChange == nil {
		return nil
	}
	user, err := s.userRepo.FindByEmail(ctx, notification.EmailAddress)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user != nil {
		s.onChange(ctx, user)
	}
	return nil
}

func (s *Service) Close() error {
	if s.pubsubClient == nil {
		return nil
	}
	return s.pubsubClient.Close()
}
