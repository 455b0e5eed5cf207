package models

import "time"

type CounsellorProfile struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	HourlyRate *float64  `json:"hourly_rate"`
	Bio        *string   `json:"bio"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
