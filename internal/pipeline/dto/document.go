package dto

import "time"

// IngestedDocument is a raw document produced by the fetcher. It is
// transient: converted into an Article or rejected, never persisted.
type IngestedDocument struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Text        string    `json:"text"`
	Author      string    `json:"author,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	SourceID    uint      `json:"source_id"`
}

// Valid reports whether the document carries the minimum required
// fields established at the fetcher boundary.
func (d *IngestedDocument) Valid() bool {
	return d.URL != "" && d.Text != "" && !d.PublishedAt.IsZero()
}
