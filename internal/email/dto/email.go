package dto

import emaildomain "mailsync-backend/internal/email/domain"

// StarRequest uses a pointer so a missing field is rejected instead of read as false.
type StarRequest struct {
	Star *bool `json:"star" binding:"required"`
}

type LabelsResponse struct {
	Labels []*emaildomain.Label `json:"labels"`
}
