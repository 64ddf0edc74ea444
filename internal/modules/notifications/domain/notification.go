package domain

import "time"

// Notification is an admin-facing message pushed over the realtime channel
// (booking conflicts, payment failures, maintenance notices).
type Notification struct {
	ID        string    `json:"id"`
	ClubID    string    `json:"clubId"`
	Level     string    `json:"level,omitempty"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
