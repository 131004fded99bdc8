package models

import (
	"time"
)

// PostStyle selects the voice used for scheduled posts.
type PostStyle string

const (
	StyleMeme        PostStyle = "meme"
	StyleEntertainer PostStyle = "entertainer"
	StyleInformative PostStyle = "informative"
	StyleStoryteller PostStyle = "storyteller"
	StyleAnalyst     PostStyle = "analyst"
)

// Valid reports whether s is one of the known styles.
func (s PostStyle) Valid() bool {
	switch s {
	case StyleMeme, StyleEntertainer, StyleInformative, StyleStoryteller, StyleAnalyst:
		return true
	}
	return false
}

// MediaItem is one downloaded attachment image, scoped to a single
// generation call and discarded after use.
type MediaItem struct {
	Data        []byte
	MIMEType    string
	Description string
}

// CacheEntry represents a cached generated reply
type CacheEntry struct {
	Source    string
	Style     string
	Reply     string
	CreatedAt time.Time
}
