// Package imap serves a single server-configured mailbox over IMAP.
package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	emaildomain "mailsync-backend/internal/email/domain"
	"mailsync-backend/internal/email/source"
	"mailsync-backend/pkg/htmltext"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"
)

const (
	maxListed = 200
	inbox     = "INBOX"
)

type Config struct {
	Addr     string
	Username string
	Password string
	// Insecure dials without TLS, for local test servers.
	Insecure    bool
	DialTimeout time.Duration
}

// Service opens one connection per call; the demo mailbox sees little traffic.
type Service struct {
	cfg Config
	log *zap.Logger
}

var _ source.EmailSource = (*Service)(nil)

func NewService(cfg Config, log *zap.Logger) (*Service, error) {
	if cfg.Addr == "" || cfg.Username == "" {
		return nil, errors.New("imap: address and username are required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{cfg: cfg, log: log.Named("source.imap")}, nil
}

func (s *Service) Name() string { return "imap" }

func (s *Service) connect(ctx context.Context) (*client.Client, error) {
	dialer := &net.Dialer{Timeout: s.cfg.DialTimeout}

	var (
		c   *client.Client
		err error
	)
	if s.cfg.Insecure {
		c, err = client.DialWithDialer(dialer, s.cfg.Addr)
	} else {
		host, _, _ := net.SplitHostPort(s.cfg.Addr)
		c, err = client.DialWithDialerTLS(dialer, s.cfg.Addr, &tls.Config{ServerName: host})
	}
	if err != nil {
		return nil, fmt.Errorf("imap dial: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.Timeout = time.Until(deadline)
	}

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return c, nil
}

func (s *Service) withInbox(ctx context.Context, readOnly bool, fn func(c *client.Client, status *goimap.MailboxStatus) error) error {
	c, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Logout(); err != nil {
			s.log.Debug("logout failed", zap.Error(err))
		}
	}()

	status, err := c.Select(inbox, readOnly)
	if err != nil {
		return fmt.Errorf("imap select: %w", err)
	}
	return fn(c, status)
}

func fetchItems() (*goimap.BodySectionName, []goimap.FetchItem) {
	section := &goimap.BodySectionName{Peek: true}
	return section, []goimap.FetchItem{
		goimap.FetchUid,
		goimap.FetchEnvelope,
		goimap.FetchFlags,
		goimap.FetchInternalDate,
		section.FetchItem(),
	}
}

func collect(fetch func(ch chan *goimap.Message) error) ([]*goimap.Message, error) {
	messages := make(chan *goimap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- fetch(messages)
	}()

	var out []*goimap.Message
	for msg := range messages {
		out = append(out, msg)
	}
	if err := <-done; err != nil {
		return nil, err
	}
	return out, nil
}

// ListMessages maps pages onto sequence numbers counted back from the newest message.
func (s *Service) ListMessages(ctx context.Context, acct emaildomain.Account, page, pageSize int) (*emaildomain.MessagePage, error) {
	page, pageSize = source.NormalizePaging(page, pageSize)
	offset := (page - 1) * pageSize

	result := &emaildomain.MessagePage{
		Messages: []*emaildomain.Email{},
		Page:     page,
		PageSize: pageSize,
	}

	err := s.withInbox(ctx, true, func(c *client.Client, status *goimap.MailboxStatus) error {
		total := int(status.Messages)
		if total > maxListed {
			total = maxListed
		}
		result.Total = total

		if offset >= total {
			result.MaxReached = true
			return nil
		}

		end := offset + pageSize
		if end > total {
			end = total
		}
		hi := status.Messages - uint32(offset)
		lo := status.Messages - uint32(end) + 1

		seqset := new(goimap.SeqSet)
		seqset.AddRange(lo, hi)
		section, items := fetchItems()

		msgs, err := collect(func(ch chan *goimap.Message) error {
			return c.Fetch(seqset, items, ch)
		})
		if err != nil {
			return fmt.Errorf("imap fetch: %w", err)
		}

		for _, m := range msgs {
			email, err := convertMessage(m, section, acct.Email, false)
			if err != nil {
				s.log.Debug("skipping message", zap.Uint32("uid", m.Uid), zap.Error(err))
				continue
			}
			result.Messages = append(result.Messages, email)
		}
		sort.Slice(result.Messages, func(i, j int) bool {
			return result.Messages[i].ReceivedAt.After(result.Messages[j].ReceivedAt)
		})

		result.HasMore = end < total
		result.MaxReached = end >= total
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func parseUID(id string) (uint32, bool) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil || uid == 0 {
		return 0, false
	}
	return uint32(uid), true
}

func (s *Service) fetchByUID(c *client.Client, uid uint32, acct emaildomain.Account, withBody bool) (*emaildomain.Email, error) {
	seqset := new(goimap.SeqSet)
	seqset.AddNum(uid)
	section, items := fetchItems()

	msgs, err := collect(func(ch chan *goimap.Message) error {
		return c.UidFetch(seqset, items, ch)
	})
	if err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}
	if len(msgs) == 0 {
		return nil, source.ErrNotFound
	}
	return convertMessage(msgs[0], section, acct.Email, withBody)
}

func (s *Service) GetMessage(ctx context.Context, acct emaildomain.Account, id string) (*emaildomain.Email, error) {
	uid, ok := parseUID(id)
	if !ok {
		return nil, source.ErrNotFound
	}

	var email *emaildomain.Email
	err := s.withInbox(ctx, true, func(c *client.Client, _ *goimap.MailboxStatus) error {
		var err error
		email, err = s.fetchByUID(c, uid, acct, true)
		return err
	})
	return email, err
}

// SetStarred maps the star to the \Flagged flag. Adding or removing a flag twice is a no-op on the server.
func (s *Service) SetStarred(ctx context.Context, acct emaildomain.Account, id string, star bool) (*emaildomain.Email, error) {
	uid, ok := parseUID(id)
	if !ok {
		return nil, source.ErrNotFound
	}

	var email *emaildomain.Email
	err := s.withInbox(ctx, false, func(c *client.Client, _ *goimap.MailboxStatus) error {
		// existence check first so an unknown uid is a 404 rather than a silent no-op
		if _, err := s.fetchByUID(c, uid, acct, false); err != nil {
			return err
		}

		op := goimap.AddFlags
		if !star {
			op = goimap.RemoveFlags
		}
		seqset := new(goimap.SeqSet)
		seqset.AddNum(uid)
		if err := c.UidStore(seqset, goimap.FormatFlagsOp(op, true), []interface{}{goimap.FlaggedFlag}, nil); err != nil {
			return fmt.Errorf("imap store: %w", err)
		}

		var err error
		email, err = s.fetchByUID(c, uid, acct, false)
		return err
	})
	return email, err
}

func (s *Service) ListLabels(ctx context.Context, acct emaildomain.Account) ([]*emaildomain.Label, error) {
	c, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.Logout() }()

	mailboxes := make(chan *goimap.MailboxInfo, 16)
	done := make(chan error, 1)
	go func() {
		done <- c.List("", "*", mailboxes)
	}()

	var names []string
	for m := range mailboxes {
		if hasAttr(m.Attributes, goimap.NoSelectAttr) {
			continue
		}
		names = append(names, m.Name)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap list: %w", err)
	}

	labels := make([]*emaildomain.Label, 0, len(names))
	for _, name := range names {
		status, err := c.Status(name, []goimap.StatusItem{goimap.StatusMessages, goimap.StatusUnseen})
		if err != nil {
			s.log.Debug("status unavailable", zap.String("mailbox", name), zap.Error(err))
			status = &goimap.MailboxStatus{}
		}
		labels = append(labels, &emaildomain.Label{
			ID:             labelID(name),
			Name:           name,
			Type:           labelType(name),
			MessagesTotal:  int(status.Messages),
			MessagesUnread: int(status.Unseen),
		})
	}
	return labels, nil
}

func (s *Service) Profile(ctx context.Context, acct emaildomain.Account) (*emaildomain.Profile, error) {
	var profile *emaildomain.Profile
	err := s.withInbox(ctx, true, func(c *client.Client, status *goimap.MailboxStatus) error {
		profile = &emaildomain.Profile{
			EmailAddress:  s.cfg.Username,
			MessagesTotal: int(status.Messages),
			ThreadsTotal:  int(status.Messages),
			HistoryID:     uint64(status.UidNext),
		}
		return nil
	})
	return profile, err
}

func hasAttr(attrs []string, want string) bool {
	for _, a := range attrs {
		if strings.EqualFold(a, want) {
			return true
		}
	}
	return false
}

func labelID(mailbox string) string {
	if strings.EqualFold(mailbox, inbox) {
		return inbox
	}
	return strings.ToUpper(strings.ReplaceAll(mailbox, " ", "_"))
}

func labelType(mailbox string) string {
	switch strings.ToUpper(mailbox) {
	case inbox, "SENT", "DRAFTS", "TRASH", "SPAM", "JUNK":
		return "system"
	}
	return "user"
}

func formatAddress(a *goimap.Address) (string, string) {
	addr := a.Address()
	if a.PersonalName == "" {
		return addr, addr
	}
	return fmt.Sprintf("%s <%s>", a.PersonalName, addr), a.PersonalName
}

func convertMessage(m *goimap.Message, section *goimap.BodySectionName, fallbackTo string, withBody bool) (*emaildomain.Email, error) {
	if m.Envelope == nil {
		return nil, errors.New("message has no envelope")
	}

	email := &emaildomain.Email{
		ID:         strconv.FormatUint(uint64(m.Uid), 10),
		ThreadID:   strings.Trim(m.Envelope.MessageId, "<>"),
		Subject:    m.Envelope.Subject,
		To:         []string{},
		ReceivedAt: m.InternalDate.UTC(),
		LabelIDs:   []string{inbox},
		IsRead:     true,
	}
	if email.ReceivedAt.IsZero() {
		email.ReceivedAt = m.Envelope.Date.UTC()
	}
	if len(m.Envelope.InReplyTo) > 0 {
		email.ThreadID = strings.Trim(m.Envelope.InReplyTo, "<>")
	}

	if len(m.Envelope.From) > 0 {
		email.From, email.FromName = formatAddress(m.Envelope.From[0])
	}
	for _, a := range m.Envelope.To {
		email.To = append(email.To, a.Address())
	}
	if len(email.To) == 0 && fallbackTo != "" {
		email.To = append(email.To, fallbackTo)
	}

	for _, f := range m.Flags {
		if f == goimap.FlaggedFlag {
			email.IsStarred = true
			email.LabelIDs = append(email.LabelIDs, "STARRED")
		}
	}
	if !hasAttr(m.Flags, goimap.SeenFlag) {
		email.IsRead = false
		email.LabelIDs = append(email.LabelIDs, "UNREAD")
	}

	if r := m.GetBody(section); r != nil {
		htmlBody, text, err := parseBody(r)
		if err != nil {
			return nil, fmt.Errorf("parse body: %w", err)
		}
		email.Snippet = snippet(text)
		if withBody {
			if htmlBody == "" {
				htmlBody = "<pre>" + html.EscapeString(text) + "</pre>"
			}
			email.Body = htmlBody
		}
	}
	return email, nil
}

// parseBody returns the first text/html part and the first text/plain part of a message.
func parseBody(r io.Reader) (string, string, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", "", err
	}

	var htmlBody, text string
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return htmlBody, text, err
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		b, err := io.ReadAll(p.Body)
		if err != nil {
			return htmlBody, text, err
		}
		switch ct {
		case "text/html":
			if htmlBody == "" {
				htmlBody = string(b)
			}
		case "text/plain", "":
			if text == "" {
				text = string(b)
			}
		}
	}
	if text == "" && htmlBody != "" {
		text = htmltext.PlainText(htmlBody)
	}
	return htmlBody, text, nil
}

func snippet(text string) string {
	s := strings.Join(strings.Fields(text), " ")
	if r := []rune(s); len(r) > 200 {
		s = string(r[:200]) + "..."
	}
	return s
}
