package usecase

import (
	"fmt"
	"strings"

	emaildomain "mailsync-backend/internal/email/domain"
	"mailsync-backend/pkg/ai"
	"mailsync-backend/pkg/htmltext"
)

const assistantSystem = "You are an email assistant that helps a busy person triage their inbox. Be concise and concrete."

const maxSnippetChars = 400

func sender(e *emaildomain.Email) string {
	if e.FromName != "" && e.FromName != e.From {
		return fmt.Sprintf("%s <%s>", e.FromName, e.From)
	}
	return e.From
}

func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// batchListing renders "[i] From | Subject | Snippet" lines.
func batchListing(emails []*emaildomain.Email) string {
	var b strings.Builder
	for i, e := range emails {
		fmt.Fprintf(&b, "[%d] %s | %s | %s\n", i, sender(e), e.Subject, clip(e.Snippet, maxSnippetChars))
	}
	return b.String()
}

func summarizePrompt(e *emaildomain.Email) ai.CompletionRequest {
	return ai.CompletionRequest{
		System: assistantSystem,
		Prompt: fmt.Sprintf(`Summarize this email in ONE sentence: say how urgent it is and what reply, if any, it needs.

From: %s
Subject: %s
Content: %s

Reply with the sentence only.`, sender(e), e.Subject, clip(e.Snippet, maxSnippetChars)),
		Temperature: 0.3,
		MaxTokens:   80,
	}
}

var selectionSchema = &ai.JSONSchema{
	Name: "important_email",
	Schema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"index": map[string]interface{}{"type": "integer"},
		},
		"required":             []string{"index"},
		"additionalProperties": false,
	},
}

func selectionPrompt(emails []*emaildomain.Email) ai.CompletionRequest {
	return ai.CompletionRequest{
		System: assistantSystem,
		Prompt: fmt.Sprintf(`Here are the most recent emails, one per line as [index] From | Subject | Snippet:

%s
Which ONE email is the most important to deal with first? Consider deadlines, requests that block other people, and messages from managers or customers.
Answer with JSON {"index": <number>} using the index in brackets.`, batchListing(emails)),
		Temperature: 0,
		MaxTokens:   20,
		Schema:      selectionSchema,
	}
}

func explainPrompt(e *emaildomain.Email) ai.CompletionRequest {
	return ai.CompletionRequest{
		System: assistantSystem,
		Prompt: fmt.Sprintf(`This email was picked as the most important one in the inbox.

From: %s
Subject: %s
Content: %s

Write exactly two sentences. The first says why it is important. The second says how to reply.`,
			sender(e), e.Subject, clip(e.Snippet, maxSnippetChars)),
		Temperature: 0.4,
		MaxTokens:   160,
	}
}

var clusterSchema = &ai.JSONSchema{
	Name: "email_clusters",
	Schema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"clusters": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"name":          map[string]interface{}{"type": "string"},
						"emailIndexes":  map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "integer"}},
						"summary":       map[string]interface{}{"type": "string"},
						"replyStrategy": map[string]interface{}{"type": "string"},
					},
					"required":             []string{"name", "emailIndexes", "summary", "replyStrategy"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"clusters"},
		"additionalProperties": false,
	},
}

func clusterPrompt(emails []*emaildomain.Email) ai.CompletionRequest {
	return ai.CompletionRequest{
		System: assistantSystem,
		Prompt: fmt.Sprintf(`Group these emails into projects or topics. Each line is [index] From | Subject | Snippet:

%s
Return 2 to 6 clusters. For each cluster give a short name, the indexes of its emails, a one-sentence summary, and a one-sentence strategy for replying to the group.
Every index must come from the list above.`, batchListing(emails)),
		Temperature: 0.2,
		MaxTokens:   1200,
		Schema:      clusterSchema,
	}
}

var topicSchema = &ai.JSONSchema{
	Name: "email_topics",
	Schema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"topics": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"name":         map[string]interface{}{"type": "string"},
						"keywords":     map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
						"emailIndexes": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "integer"}},
					},
					"required":             []string{"name", "keywords", "emailIndexes"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"topics"},
		"additionalProperties": false,
	},
}

func topicPrompt(emails []*emaildomain.Email) ai.CompletionRequest {
	return ai.CompletionRequest{
		System: assistantSystem,
		Prompt: fmt.Sprintf(`Extract the main topics discussed in these emails. Each line is [index] From | Subject | Snippet:

%s
For each topic give a short name (1-3 words), up to 5 keywords, and the indexes of the emails about it. An email may belong to several topics.`, batchListing(emails)),
		Temperature: 0.2,
		MaxTokens:   1000,
		Schema:      topicSchema,
	}
}

func draftPrompt(e *emaildomain.Email, tone string) ai.CompletionRequest {
	content := e.Snippet
	if e.Body != "" {
		content = htmltext.PlainText(e.Body)
	}
	return ai.CompletionRequest{
		System: assistantSystem,
		Prompt: fmt.Sprintf(`Draft a reply to this email in a %s tone.

From: %s
Subject: %s
Content: %s

Write only the reply body, ready to send, without a subject line.`,
			tone, sender(e), e.Subject, clip(content, 2000)),
		Temperature: 0.6,
		MaxTokens:   400,
	}
}
