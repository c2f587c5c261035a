package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	emaildomain "mailsync-backend/internal/email/domain"
	"mailsync-backend/internal/email/source"
	"mailsync-backend/pkg/htmltext"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// maxListed mirrors the sample mailbox cap so paging behaves the same for every source.
const maxListed = 200

const user = "me"

// Service reads a user's mailbox through the Gmail API.
type Service struct {
	clientID     string
	clientSecret string
	log          *zap.Logger
}

var (
	_ source.EmailSource  = (*Service)(nil)
	_ source.Watcher      = (*Service)(nil)
	_ source.LinkRequirer = (*Service)(nil)
)

type notifyTokenSource struct {
	mu       sync.Mutex
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback emaildomain.TokenUpdateFunc
	log      *zap.Logger
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			s.log.Warn("failed to persist refreshed token", zap.Error(err))
		}
	}
	return t, nil
}

func NewService(clientID, clientSecret string, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
		log:          log.Named("source.gmail"),
	}
}

func (s *Service) Name() string { return "gmail" }

func (s *Service) RequiresMailboxLink() bool { return true }

func (s *Service) client(ctx context.Context, acct emaildomain.Account) (*gmail.Service, error) {
	if acct.AccessToken == "" && acct.RefreshToken == "" {
		return nil, errors.New("mailbox not linked")
	}

	token := &oauth2.Token{
		AccessToken:  acct.AccessToken,
		RefreshToken: acct.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       acct.TokenExpiry,
	}
	// unknown expiry with a refresh token: refresh up front
	if token.Expiry.IsZero() && acct.RefreshToken != "" {
		token.Expiry = time.Now()
	}

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}

	wrapped := &notifyTokenSource{
		src:      config.TokenSource(ctx, token),
		current:  token,
		callback: acct.OnTokenRefresh,
		log:      s.log.With(zap.String("user_id", acct.UserID)),
	}

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, wrapped)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

func mapError(err error, action string) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return source.ErrNotFound
	}
	return fmt.Errorf("unable to %s: %w", action, err)
}

// ListMessages walks page tokens up to the requested offset, then fetches the page's
// metadata in parallel.
func (s *Service) ListMessages(ctx context.Context, acct emaildomain.Account, page, pageSize int) (*emaildomain.MessagePage, error) {
	page, pageSize = source.NormalizePaging(page, pageSize)
	offset := (page - 1) * pageSize

	result := &emaildomain.MessagePage{
		Messages: []*emaildomain.Email{},
		Page:     page,
		PageSize: pageSize,
	}
	if offset >= maxListed {
		result.MaxReached = true
		result.Total = maxListed
		return result, nil
	}

	srv, err := s.client(ctx, acct)
	if err != nil {
		return nil, err
	}

	pageToken := ""
	for skipped := 0; skipped < offset; {
		resp, err := srv.Users.Messages.List(user).
			LabelIds("INBOX").
			MaxResults(int64(offset - skipped)).
			PageToken(pageToken).
			Context(ctx).Do()
		if err != nil {
			return nil, mapError(err, "skip messages")
		}
		skipped += len(resp.Messages)
		pageToken = resp.NextPageToken
		if pageToken == "" {
			result.Total = skipped
			result.MaxReached = true
			return result, nil
		}
	}

	limit := pageSize
	if offset+limit > maxListed {
		limit = maxListed - offset
	}

	resp, err := srv.Users.Messages.List(user).
		LabelIds("INBOX").
		MaxResults(int64(limit)).
		PageToken(pageToken).
		Context(ctx).Do()
	if err != nil {
		return nil, mapError(err, "retrieve messages")
	}

	type emailResult struct {
		email *emaildomain.Email
		err   error
	}
	emailChan := make(chan emailResult, len(resp.Messages))
	semaphore := make(chan struct{}, 10)

	for _, msg := range resp.Messages {
		go func(msgID string) {
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			meta, err := srv.Users.Messages.Get(user, msgID).
				Format("metadata").
				MetadataHeaders("From", "To", "Subject").
				Context(ctx).Do()
			if err != nil {
				emailChan <- emailResult{err: err}
				return
			}
			emailChan <- emailResult{email: convertMessage(meta, false)}
		}(msg.Id)
	}

	for range resp.Messages {
		r := <-emailChan
		if r.err != nil {
			s.log.Debug("skipping message", zap.Error(r.err))
			continue
		}
		result.Messages = append(result.Messages, r.email)
	}

	sort.Slice(result.Messages, func(i, j int) bool {
		return result.Messages[i].ReceivedAt.After(result.Messages[j].ReceivedAt)
	})

	end := offset + len(resp.Messages)
	result.Total = int(resp.ResultSizeEstimate)
	if result.Total < end {
		result.Total = end
	}
	if result.Total > maxListed {
		result.Total = maxListed
	}
	result.MaxReached = end >= maxListed || resp.NextPageToken == ""
	result.HasMore = !result.MaxReached
	return result, nil
}

func (s *Service) GetMessage(ctx context.Context, acct emaildomain.Account, id string) (*emaildomain.Email, error) {
	srv, err := s.client(ctx, acct)
	if err != nil {
		return nil, err
	}

	msg, err := srv.Users.Messages.Get(user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, mapError(err, "retrieve message")
	}
	return convertMessage(msg, true), nil
}

// SetStarred only sends a modify request when the flag actually changes.
func (s *Service) SetStarred(ctx context.Context, acct emaildomain.Account, id string, star bool) (*emaildomain.Email, error) {
	srv, err := s.client(ctx, acct)
	if err != nil {
		return nil, err
	}

	msg, err := srv.Users.Messages.Get(user, id).
		Format("metadata").
		MetadataHeaders("From", "To", "Subject").
		Context(ctx).Do()
	if err != nil {
		return nil, mapError(err, "get message")
	}

	if hasLabel(msg.LabelIds, "STARRED") == star {
		return convertMessage(msg, false), nil
	}

	req := &gmail.ModifyMessageRequest{}
	if star {
		req.AddLabelIds = []string{"STARRED"}
	} else {
		req.RemoveLabelIds = []string{"STARRED"}
	}
	if _, err := srv.Users.Messages.Modify(user, id, req).Context(ctx).Do(); err != nil {
		return nil, mapError(err, "modify star")
	}

	email := convertMessage(msg, false)
	email.IsStarred = star
	email.LabelIDs = withLabel(email.LabelIDs, "STARRED", star)
	return email, nil
}

// ListLabels fetches each label's counters; the list call only returns names.
func (s *Service) ListLabels(ctx context.Context, acct emaildomain.Account) ([]*emaildomain.Label, error) {
	srv, err := s.client(ctx, acct)
	if err != nil {
		return nil, err
	}

	resp, err := srv.Users.Labels.List(user).Context(ctx).Do()
	if err != nil {
		return nil, mapError(err, "retrieve labels")
	}

	labels := make([]*emaildomain.Label, len(resp.Labels))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 10)

	for i, l := range resp.Labels {
		labels[i] = &emaildomain.Label{ID: l.Id, Name: l.Name, Type: l.Type}
		wg.Add(1)
		go func(label *emaildomain.Label) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			full, err := srv.Users.Labels.Get(user, label.ID).Context(ctx).Do()
			if err != nil {
				s.log.Debug("label counters unavailable", zap.String("label", label.ID), zap.Error(err))
				return
			}
			label.MessagesTotal = int(full.MessagesTotal)
			label.MessagesUnread = int(full.MessagesUnread)
		}(labels[i])
	}
	wg.Wait()

	return labels, nil
}

func (s *Service) Profile(ctx context.Context, acct emaildomain.Account) (*emaildomain.Profile, error) {
	srv, err := s.client(ctx, acct)
	if err != nil {
		return nil, err
	}

	p, err := srv.Users.GetProfile(user).Context(ctx).Do()
	if err != nil {
		return nil, mapError(err, "retrieve profile")
	}
	return &emaildomain.Profile{
		EmailAddress:  p.EmailAddress,
		MessagesTotal: int(p.MessagesTotal),
		ThreadsTotal:  int(p.ThreadsTotal),
		HistoryID:     p.HistoryId,
	}, nil
}

// Watch (re)starts push notifications for the inbox and returns the starting history id.
func (s *Service) Watch(ctx context.Context, acct emaildomain.Account, topicName string) (uint64, error) {
	srv, err := s.client(ctx, acct)
	if err != nil {
		return 0, err
	}

	// only one push client per user is allowed
	_ = srv.Users.Stop(user).Context(ctx).Do()

	resp, err := srv.Users.Watch(user, &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX"},
	}).Context(ctx).Do()
	if err != nil {
		return 0, mapError(err, "watch mailbox")
	}

	s.log.Info("watch started",
		zap.String("user_id", acct.UserID),
		zap.Uint64("history_id", resp.HistoryId),
		zap.Int64("expiration", resp.Expiration),
	)
	return resp.HistoryId, nil
}

func convertMessage(msg *gmail.Message, withBody bool) *emaildomain.Email {
	var headers []*gmail.MessagePartHeader
	if msg.Payload != nil {
		headers = msg.Payload.Headers
	}

	from := getHeader(headers, "From")
	fromName := from
	if idx := strings.Index(from, "<"); idx > 0 {
		fromName = strings.Trim(strings.TrimSpace(from[:idx]), `"`)
	}

	to := []string{}
	if h := getHeader(headers, "To"); h != "" {
		for _, addr := range strings.Split(h, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				to = append(to, addr)
			}
		}
	}

	email := &emaildomain.Email{
		ID:         msg.Id,
		ThreadID:   msg.ThreadId,
		From:       from,
		FromName:   fromName,
		To:         to,
		Subject:    getHeader(headers, "Subject"),
		Snippet:    html.UnescapeString(msg.Snippet),
		ReceivedAt: time.UnixMilli(msg.InternalDate).UTC(),
		IsRead:     !hasLabel(msg.LabelIds, "UNREAD"),
		IsStarred:  hasLabel(msg.LabelIds, "STARRED"),
		LabelIDs:   append([]string{}, msg.LabelIds...),
	}

	if withBody && msg.Payload != nil {
		body, isHTML := getEmailBody(msg.Payload)
		if email.Snippet == "" {
			email.Snippet = previewText(body, isHTML)
		}
		if !isHTML {
			body = "<pre>" + html.EscapeString(body) + "</pre>"
		}
		email.Body = body
	}
	return email
}

func previewText(body string, isHTML bool) string {
	if isHTML {
		body = htmltext.PlainText(body)
	}
	preview := strings.Join(strings.Fields(body), " ")
	if r := []rune(preview); len(r) > 200 {
		preview = string(r[:200]) + "..."
	}
	return preview
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

func decodePart(part *gmail.MessagePart) (string, bool) {
	if part.Body == nil || part.Body.Data == "" {
		return "", false
	}
	data, err := base64.URLEncoding.DecodeString(part.Body.Data)
	if err != nil {
		// some parts arrive without padding
		data, err = base64.RawURLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			return "", false
		}
	}
	return string(data), true
}

// getEmailBody prefers the HTML alternative and falls back to plain text.
func getEmailBody(payload *gmail.MessagePart) (string, bool) {
	if data, ok := decodePart(payload); ok {
		return data, payload.MimeType == "text/html"
	}

	var htmlBody, plainBody string
	var walk func(parts []*gmail.MessagePart)
	walk = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			switch part.MimeType {
			case "text/html":
				if data, ok := decodePart(part); ok && htmlBody == "" {
					htmlBody = data
				}
			case "text/plain":
				if data, ok := decodePart(part); ok && plainBody == "" {
					plainBody = data
				}
			}
			if len(part.Parts) > 0 {
				walk(part.Parts)
			}
		}
	}
	walk(payload.Parts)

	if htmlBody != "" {
		return htmlBody, true
	}
	return plainBody, false
}

func hasLabel(labels []string, labelID string) bool {
	for _, label := range labels {
		if label == labelID {
			return true
		}
	}
	return false
}

func withLabel(labels []string, labelID string, present bool) []string {
	out := make([]string, 0, len(labels)+1)
	for _, l := range labels {
		if l != labelID {
			out = append(out, l)
		}
	}
	if present {
		out = append(out, labelID)
	}
	return out
}
