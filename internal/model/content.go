package model

// ContentType discriminates the closed set of content variants in
// spec.md §3.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentMarkdown ContentType = "markdown"
	ContentHTML     ContentType = "html"
	ContentEmail    ContentType = "email"
	ContentArticle  ContentType = "article"
	ContentVideo    ContentType = "video"
	ContentTrack    ContentType = "track"
	ContentTask     ContentType = "task"
	ContentEvent    ContentType = "event"
	ContentBookmark ContentType = "bookmark"
	ContentGeneric  ContentType = "generic"
)

// Content is a tagged union over the closed content-variant set. Only the
// fields relevant to Type are populated; the rest are left zero-valued.
// Modeled as one struct with a type tag rather than an interface hierarchy
// because every field is serialized in and out of the cache's
// content_data_json column as a single JSON document (content/data in the
// teacher takes the same flat-struct approach for Article/Podcast variants).
type Content struct {
	Type ContentType `json:"type"`

	// Text / Markdown / Html / Generic
	Body string `json:"body,omitempty"`

	// Email
	Subject  string `json:"subject,omitempty"`
	BodyText string `json:"body_text,omitempty"`
	BodyHTML string `json:"body_html,omitempty"`
	Snippet  string `json:"snippet,omitempty"`

	// Article
	Summary     string `json:"summary,omitempty"`
	FullContent string `json:"full_content,omitempty"`

	// Video
	Description    string `json:"description,omitempty"`
	DurationSecond *int   `json:"duration_seconds,omitempty"`
	ViewCount      *int64 `json:"view_count,omitempty"`

	// Track
	Album      string   `json:"album,omitempty"`
	DurationMs *int     `json:"duration_ms,omitempty"`
	Artists    []string `json:"artists,omitempty"`

	// Task
	DueDate     *string `json:"due_date,omitempty"`
	IsCompleted bool    `json:"is_completed,omitempty"`

	// Event
	Start      *string `json:"start,omitempty"`
	End        *string `json:"end,omitempty"`
	Location   string  `json:"location,omitempty"`
	IsAllDay   bool    `json:"is_all_day,omitempty"`
}
