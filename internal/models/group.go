package models

import (
	"time"

	"github.com/lib/pq"
)

// Group represents a multi-party message thread.
type Group struct {
	ID        string         `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	Members   pq.StringArray `db:"members" json:"members"`
	ImageURL  string         `db:"image_url" json:"image"`
	AdminID   string         `db:"admin_id" json:"admin"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
}

// IsMember reports whether the user belongs to the group.
func (g Group) IsMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}
