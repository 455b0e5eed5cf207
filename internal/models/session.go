package models

import "time"

const (
	SessionPending   = "pending"
	SessionAccepted  = "accepted"
	SessionRejected  = "rejected"
	SessionCompleted = "completed"
	SessionNoShow    = "no_show"
)

const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

type Session struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"user_id"`
	CounsellorID     int64     `json:"counsellor_id"`
	ScheduledAt      time.Time `json:"scheduled_at"`
	Status           string    `json:"status"`
	Note             *string   `json:"note,omitempty"`
	RejectionMessage *string   `json:"rejection_message,omitempty"`
	Joined           bool      `json:"joined"`
	PaymentStatus    string    `json:"payment_status"`
	TransactionID    *string   `json:"transaction_id,omitempty"`
	Rating           *int      `json:"rating,omitempty"`
	Feedback         *string   `json:"feedback,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
