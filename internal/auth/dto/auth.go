package dto

import authdomain "mailsync-backend/internal/auth/domain"

type GoogleSignInRequest struct {
	Credential string `json:"credential" binding:"required"`
}

type GoogleSignInResponse struct {
	User    *authdomain.User `json:"user"`
	AuthURL string           `json:"authUrl"`
}

type StatusResponse struct {
	Authenticated bool             `json:"authenticated"`
	MailboxLinked bool             `json:"mailboxLinked,omitempty"`
	User          *authdomain.User `json:"user,omitempty"`
}
