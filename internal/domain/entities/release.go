package entities

import "time"

// ReleaseRecord is the subset of a drafted release needed to attach assets.
// Unknown JSON fields are ignored on decode.
type ReleaseRecord struct {
	ID        int64     `json:"id"`
	TagName   string    `json:"tag_name"`
	CreatedAt time.Time `json:"created_at"`
}
