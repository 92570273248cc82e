package models

import "time"

// WebsiteStatus is the singleton open/closed switch for the registration
// form. While closed, submissions are rejected and the closed message is
// shown to visitors.
type WebsiteStatus struct {
	ID            int       `json:"id" gorm:"primaryKey"`
	IsOpen        bool      `json:"is_open" gorm:"not null;default:true"`
	ClosedMessage string    `json:"closed_message"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
