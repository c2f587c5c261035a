package source

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	emaildomain "mailsync-backend/internal/email/domain"

	"github.com/google/uuid"
)

// SampleMaxMessages caps the sample mailbox.
const SampleMaxMessages = 200

var threadNamespace = uuid.MustParse("6f1c2a4e-9d3b-4c8e-a1f7-3b5d2e8c9a10")

type sampleSender struct {
	name  string
	email string
}

type sampleTopic struct {
	subject   string
	snippet   string
	detail    string
	category  string
	important bool
}

var (
	sampleSenders = []sampleSender{
		{"Priya Raman", "priya.raman@northwind.io"},
		{"Marcus Chen", "marcus.chen@contoso.com"},
		{"Elena Petrova", "elena@fabrikam.dev"},
		{"GitHub", "notifications@github.com"},
		{"Jordan Blake", "jordan.blake@contoso.com"},
		{"Finance Team", "finance@northwind.io"},
		{"Sofia Alvarez", "sofia.alvarez@adatum.org"},
		{"Calendar", "calendar-noreply@google.com"},
		{"Tom Okafor", "tom.okafor@fabrikam.dev"},
		{"Linear", "updates@linear.app"},
		{"Hannah Weiss", "hannah@tailspin.co"},
		{"Product Hunt", "hello@producthunt.com"},
	}

	sampleTopics = []sampleTopic{
		{"Q3 budget approval needed by Friday", "Can you sign off on the revised Q3 budget before the board pack goes out?", "The revision moves 8% from contractors to tooling. Finance needs your approval to close the quarter.", "CATEGORY_UPDATES", true},
		{"Production incident: checkout latency", "p95 checkout latency jumped to 4.2s after the 14:05 deploy. Rolling back now.", "We are tracking this in the incident channel. Please confirm whether the payment retry change can be reverted independently.", "CATEGORY_UPDATES", true},
		{"Contract renewal with Contoso", "Legal flagged two clauses in the renewal draft. They need your input on liability caps.", "The current draft caps liability at 1x annual fees. Contoso is asking for 2x. We need a position before Thursday's call.", "CATEGORY_PERSONAL", true},
		{"Team offsite planning", "Here are three venue options for the November offsite. Please vote by Wednesday.", "Options are Lisbon, Porto and a local venue. Costs are in the attached sheet.", "CATEGORY_PERSONAL", false},
		{"[mailsync] PR #482: Add cluster graph endpoint", "Review requested on PR #482. 6 files changed, 214 additions.", "This PR adds the cluster graph builder and tests. CI is green.", "CATEGORY_FORUMS", false},
		{"Invoice INV-20931 is overdue", "Invoice INV-20931 for $12,400 was due on the 3rd. Please arrange payment.", "If payment has already been sent, reply with the remittance reference so we can reconcile.", "CATEGORY_UPDATES", true},
		{"Interview feedback for senior backend role", "Please submit your scorecard for yesterday's candidate by end of day.", "The hiring committee meets tomorrow morning and needs all scorecards in advance.", "CATEGORY_PERSONAL", true},
		{"Weekly product digest", "Top launches this week: 12 new AI tools for productivity.", "Curated launches, trending discussions and maker stories from the past week.", "CATEGORY_PROMOTIONS", false},
		{"Invitation: Roadmap review @ Thu 10:00", "You have been invited to Roadmap review on Thursday at 10:00.", "Agenda: H1 priorities, platform migration status, staffing.", "CATEGORY_UPDATES", false},
		{"Customer escalation: Adatum data export", "Adatum cannot export their audit logs and their compliance deadline is Monday.", "Support has tried the standard workaround. Engineering input is needed on the export job.", "CATEGORY_PERSONAL", true},
		{"Issue ENG-311 moved to In Review", "ENG-311 \"Rate limit OAuth callbacks\" was moved to In Review.", "Assigned to you. Two comments are waiting for a reply.", "CATEGORY_FORUMS", false},
		{"Lunch on Friday?", "A few of us are grabbing ramen on Friday. Want to join?", "Meeting in the lobby at 12:15.", "CATEGORY_SOCIAL", false},
		{"Security review for OAuth scopes", "The security team wants to review the new gmail.modify scope before launch.", "Please share the data-flow diagram and the token storage design by Tuesday.", "CATEGORY_UPDATES", true},
		{"Your subscription receipt", "Thanks for your payment. Your receipt for this month is attached.", "Plan: Team. Seats: 12. Next billing date in 30 days.", "CATEGORY_PROMOTIONS", false},
		{"Draft blog post for launch", "Here is the first draft of the launch post. Comments welcome.", "Marketing would like final copy by next Monday to schedule the announcement.", "CATEGORY_PERSONAL", false},
		{"On-call handover notes", "Handover for this week: two open alerts and one flaky job.", "The nightly export job failed twice. Runbook updated with a manual retry step.", "CATEGORY_UPDATES", false},
	}
)

// SampleSource is a deterministic mailbox of SampleMaxMessages messages.
// Message i is always the same apart from star flags set by the user.
type SampleSource struct {
	now func() time.Time

	mu      sync.RWMutex
	starred map[string]map[string]bool // userID -> messageID -> starred
}

func NewSampleSource(now func() time.Time) *SampleSource {
	if now == nil {
		now = time.Now
	}
	return &SampleSource{
		now:     now,
		starred: make(map[string]map[string]bool),
	}
}

func (s *SampleSource) Name() string { return "sample" }

func sampleMessageID(i int) string {
	return fmt.Sprintf("msg-%03d", i)
}

func parseSampleMessageID(id string) (int, bool) {
	raw, ok := strings.CutPrefix(id, "msg-")
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(raw)
	if err != nil || i < 0 || i >= SampleMaxMessages || sampleMessageID(i) != id {
		return 0, false
	}
	return i, true
}

// anchor keeps timestamps stable within the hour.
func (s *SampleSource) anchor() time.Time {
	return s.now().UTC().Truncate(time.Hour)
}

func (s *SampleSource) build(acct emaildomain.Account, i int, withBody bool) *emaildomain.Email {
	sender := sampleSenders[(i*5)%len(sampleSenders)]
	topic := sampleTopics[(i*7)%len(sampleTopics)]

	offset := time.Duration(i)*47*time.Minute + time.Duration((i*13)%11)*time.Minute
	receivedAt := s.anchor().Add(-offset)

	recipient := acct.Email
	if recipient == "" {
		recipient = "me@mailsync.local"
	}

	labels := []string{"INBOX", topic.category}
	isRead := i%3 != 0
	if !isRead {
		labels = append(labels, "UNREAD")
	}
	if topic.important && i%2 == 0 {
		labels = append(labels, "IMPORTANT")
	}

	email := &emaildomain.Email{
		ID:         sampleMessageID(i),
		ThreadID:   uuid.NewSHA1(threadNamespace, []byte(strconv.Itoa(i/2))).String(),
		From:       fmt.Sprintf("%s <%s>", sender.name, sender.email),
		FromName:   sender.name,
		To:         []string{recipient},
		Subject:    topic.subject,
		Snippet:    topic.snippet,
		ReceivedAt: receivedAt,
		IsRead:     isRead,
		LabelIDs:   labels,
	}

	s.applyStar(acct.UserID, email, i%11 == 0)

	if withBody {
		email.Body = sampleBody(recipient, sender.name, topic)
	}
	return email
}

func (s *SampleSource) applyStar(userID string, email *emaildomain.Email, defaultStarred bool) {
	starred := defaultStarred
	s.mu.RLock()
	if v, ok := s.starred[userID][email.ID]; ok {
		starred = v
	}
	s.mu.RUnlock()

	email.IsStarred = starred
	if starred {
		email.LabelIDs = append(email.LabelIDs, "STARRED")
	}
}

func sampleBody(recipient, senderName string, topic sampleTopic) string {
	name := recipient
	if at := strings.Index(name, "@"); at > 0 {
		name = name[:at]
	}
	return fmt.Sprintf(
		"<div style=\"font-family: sans-serif; line-height: 1.5\">"+
			"<p>Hi %s,</p><p>%s</p><p>%s</p><p>Best,<br>%s</p></div>",
		html.EscapeString(name),
		html.EscapeString(topic.snippet),
		html.EscapeString(topic.detail),
		html.EscapeString(senderName),
	)
}

func (s *SampleSource) ListMessages(ctx context.Context, acct emaildomain.Account, page, pageSize int) (*emaildomain.MessagePage, error) {
	page, pageSize = NormalizePaging(page, pageSize)

	start := (page - 1) * pageSize
	result := &emaildomain.MessagePage{
		Messages: []*emaildomain.Email{},
		Page:     page,
		PageSize: pageSize,
		Total:    SampleMaxMessages,
	}

	if start >= SampleMaxMessages {
		result.MaxReached = true
		return result, nil
	}

	end := start + pageSize
	if end > SampleMaxMessages {
		end = SampleMaxMessages
	}
	for i := start; i < end; i++ {
		result.Messages = append(result.Messages, s.build(acct, i, false))
	}
	result.HasMore = end < SampleMaxMessages
	result.MaxReached = end >= SampleMaxMessages
	return result, nil
}

func (s *SampleSource) GetMessage(ctx context.Context, acct emaildomain.Account, id string) (*emaildomain.Email, error) {
	i, ok := parseSampleMessageID(id)
	if !ok {
		return nil, ErrNotFound
	}
	return s.build(acct, i, true), nil
}

func (s *SampleSource) SetStarred(ctx context.Context, acct emaildomain.Account, id string, star bool) (*emaildomain.Email, error) {
	i, ok := parseSampleMessageID(id)
	if !ok {
		return nil, ErrNotFound
	}

	s.mu.Lock()
	if s.starred[acct.UserID] == nil {
		s.starred[acct.UserID] = make(map[string]bool)
	}
	s.starred[acct.UserID][id] = star
	s.mu.Unlock()

	return s.build(acct, i, false), nil
}

func (s *SampleSource) ListLabels(ctx context.Context, acct emaildomain.Account) ([]*emaildomain.Label, error) {
	order := []string{"INBOX", "STARRED", "IMPORTANT", "UNREAD", "CATEGORY_PERSONAL", "CATEGORY_SOCIAL", "CATEGORY_PROMOTIONS", "CATEGORY_UPDATES", "CATEGORY_FORUMS"}
	names := map[string]string{
		"INBOX":               "Inbox",
		"STARRED":             "Starred",
		"IMPORTANT":           "Important",
		"UNREAD":              "Unread",
		"CATEGORY_PERSONAL":   "Personal",
		"CATEGORY_SOCIAL":     "Social",
		"CATEGORY_PROMOTIONS": "Promotions",
		"CATEGORY_UPDATES":    "Updates",
		"CATEGORY_FORUMS":     "Forums",
	}

	totals := make(map[string]int, len(order))
	unread := make(map[string]int, len(order))
	for i := 0; i < SampleMaxMessages; i++ {
		email := s.build(acct, i, false)
		for _, l := range email.LabelIDs {
			totals[l]++
			if !email.IsRead {
				unread[l]++
			}
		}
	}

	labels := make([]*emaildomain.Label, 0, len(order)+2)
	for _, id := range order {
		labels = append(labels, &emaildomain.Label{
			ID:             id,
			Name:           names[id],
			Type:           "system",
			MessagesTotal:  totals[id],
			MessagesUnread: unread[id],
		})
	}
	labels = append(labels,
		&emaildomain.Label{ID: "SENT", Name: "Sent", Type: "system"},
		&emaildomain.Label{ID: "DRAFT", Name: "Drafts", Type: "system"},
	)
	return labels, nil
}

func (s *SampleSource) Profile(ctx context.Context, acct emaildomain.Account) (*emaildomain.Profile, error) {
	email := acct.Email
	if email == "" {
		email = "me@mailsync.local"
	}
	return &emaildomain.Profile{
		EmailAddress:  email,
		MessagesTotal: SampleMaxMessages,
		ThreadsTotal:  (SampleMaxMessages + 1) / 2,
		HistoryID:     uint64(s.anchor().Unix() / 60),
	}, nil
}
