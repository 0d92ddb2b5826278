package models

import "time"

// Status is a story entry: an uploaded image shown in the shared status
// feed.
type Status struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	ImageURL  string    `db:"image_url" json:"image"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
}
