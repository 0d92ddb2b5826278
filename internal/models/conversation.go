package models

import (
	"time"

	"github.com/lib/pq"
)

// Conversation is the document created lazily on first send for a pair of
// participants. Its id is derived deterministically from the two
// participant ids, so both sides always resolve to the same record.
type Conversation struct {
	ID           string         `db:"id" json:"id"`
	Participants pq.StringArray `db:"participants" json:"participants"`
	LastUpdated  time.Time      `db:"last_updated" json:"lastUpdated"`
}
