package imap

import (
	"bytes"
	"strings"
	"testing"
	"time"

	goimap "github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const multipartMessage = "From: Priya Raman <priya@northwind.io>\r\n" +
	"To: alex@example.com\r\n" +
	"Subject: Budget\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=\"b1\"\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Please   approve the budget.\r\n" +
	"--b1\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Please approve the budget.</p>\r\n" +
	"--b1--\r\n"

func TestParseBody_Multipart(t *testing.T) {
	htmlBody, text, err := parseBody(strings.NewReader(multipartMessage))

	require.NoError(t, err)
	assert.Contains(t, htmlBody, "<p>Please approve the budget.</p>")
	assert.Contains(t, text, "Please   approve")
}

func TestParseBody_HTMLOnly(t *testing.T) {
	raw := "Subject: Hi\r\nContent-Type: text/html\r\n\r\n<div>Hello &amp; welcome</div>\r\n"

	htmlBody, text, err := parseBody(strings.NewReader(raw))

	require.NoError(t, err)
	assert.Contains(t, htmlBody, "<div>")
	assert.Equal(t, "Hello & welcome", snippet(text))
}

func TestConvertMessage(t *testing.T) {
	section, _ := fetchItems()
	received := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	msg := &goimap.Message{
		Uid:          42,
		InternalDate: received,
		Flags:        []string{goimap.FlaggedFlag},
		Envelope: &goimap.Envelope{
			Subject:   "Budget",
			MessageId: "<abc@northwind.io>",
			From:      []*goimap.Address{{PersonalName: "Priya Raman", MailboxName: "priya", HostName: "northwind.io"}},
		},
		Body: map[*goimap.BodySectionName]goimap.Literal{
			{}: bytes.NewBufferString(multipartMessage),
		},
	}

	email, err := convertMessage(msg, section, "alex@example.com", true)

	require.NoError(t, err)
	assert.Equal(t, "42", email.ID)
	assert.Equal(t, "abc@northwind.io", email.ThreadID)
	assert.Equal(t, "Priya Raman <priya@northwind.io>", email.From)
	assert.Equal(t, "Priya Raman", email.FromName)
	assert.Equal(t, []string{"alex@example.com"}, email.To)
	assert.Equal(t, "Please approve the budget.", email.Snippet)
	assert.True(t, email.IsStarred)
	assert.False(t, email.IsRead)
	assert.ElementsMatch(t, []string{"INBOX", "STARRED", "UNREAD"}, email.LabelIDs)
	assert.Contains(t, email.Body, "<p>")
	assert.Equal(t, received, email.ReceivedAt)
}

func TestParseUID(t *testing.T) {
	uid, ok := parseUID("17")
	assert.True(t, ok)
	assert.EqualValues(t, 17, uid)

	for _, id := range []string{"", "0", "msg-001", "-3"} {
		_, ok := parseUID(id)
		assert.False(t, ok, id)
	}
}

func TestNewService_RequiresAddress(t *testing.T) {
	_, err := NewService(Config{}, nil)
	assert.Error(t, err)
}

func TestParseBody_HTMLOnlyDropsStyle(t *testing.T) {
	raw := "Subject: Hi\r\nContent-Type: text/html\r\n\r\n<style>p { color: red; }</style><p>Quarterly <b>review</b></p>\r\n"

	_, text, err := parseBody(strings.NewReader(raw))

	require.NoError(t, err)
	assert.Equal(t, "Quarterly review", text)
}
