package domain

import "time"

// FeedItem is a single entry produced by the feed parser. No field is
// guaranteed present; the parser discards entries that carry none of
// GUID/Link/Title.
type FeedItem struct {
	FeedURL   string
	FeedTitle string
	GUID      string
	Link      string
	Title     string
	Summary   string
	Published time.Time // zero when the feed omits a date
}

// HasPublished reports whether the item carries a publication date.
func (i FeedItem) HasPublished() bool { return !i.Published.IsZero() }
