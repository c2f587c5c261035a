package dto

import (
	emaildomain "mailsync-backend/internal/email/domain"
)

// EmailBatchRequest carries the emails a client wants clustered or tagged.
type EmailBatchRequest struct {
	Emails []*emaildomain.Email `json:"emails" binding:"required"`
}

type DraftReplyRequest struct {
	Email *emaildomain.Email `json:"email" binding:"required"`
	Tone  string             `json:"tone"`
}

type DraftReplyResponse struct {
	Draft string `json:"draft"`
}
