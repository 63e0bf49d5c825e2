package model

import "time"

// StreamKind is the closed set of stream kinds from spec.md §3.
type StreamKind string

const (
	KindFeed       StreamKind = "feed"
	KindCollection StreamKind = "collection"
	KindSavedItems StreamKind = "saved_items"
	KindCommunity  StreamKind = "community"
	KindCustom     StreamKind = "custom"
)

// Stream is a logical feed or collection, per spec.md §3.
type Stream struct {
	ID           StreamID
	Name         string
	ProviderID   string
	Kind         StreamKind
	CustomTag    string // set when Kind == KindCustom
	Icon         string
	UnreadCount  *int
	TotalCount   *int
	LastUpdated  *time.Time
	Metadata     map[string]string
}

// Validate enforces I-S1 and I-S2.
func (s Stream) Validate() error {
	if s.ID.Owner() != s.ProviderID {
		return &InvariantError{Rule: "I-S1", Detail: "stream id owner prefix must equal provider_id"}
	}
	if s.UnreadCount != nil && s.TotalCount != nil && *s.UnreadCount > *s.TotalCount {
		return &InvariantError{Rule: "I-S2", Detail: "unread_count must be <= total_count"}
	}
	return nil
}

// InvariantError reports violation of a named data-model invariant.
type InvariantError struct {
	Rule   string
	Detail string
}

func (e *InvariantError) Error() string {
	return e.Rule + ": " + e.Detail
}
