package model

import "time"

// Author is an item's byline, per spec.md §3.
type Author struct {
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	URL    string `json:"url,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// Item is a single entry inside exactly one stream.
type Item struct {
	ID           ItemID
	StreamID     StreamID
	Title        string
	Content      Content
	Author       *Author
	Published    *time.Time
	Updated      *time.Time
	URL          string
	ThumbnailURL string

	IsRead     bool
	IsSaved    bool
	IsArchived bool

	Tags     []string
	Metadata map[string]string
}

// MergeFlags preserves is_read/is_saved/is_archived from the existing
// record on re-ingest (I-3): content fields are taken from incoming,
// flags from existing.
func (incoming Item) MergeFlags(existing Item) Item {
	merged := incoming
	merged.IsRead = existing.IsRead
	merged.IsSaved = existing.IsSaved
	merged.IsArchived = existing.IsArchived
	return merged
}

// MergeTagsAndMetadata merges tags (union, de-duplicated) and metadata
// (incoming overrides colliding keys) per I-4.
func (incoming Item) MergeTagsAndMetadata(existing Item) Item {
	merged := incoming

	seen := make(map[string]bool, len(existing.Tags)+len(incoming.Tags))
	tags := make([]string, 0, len(existing.Tags)+len(incoming.Tags))
	for _, t := range existing.Tags {
		if !seen[t] {
			seen[t] = true
			tags = append(tags, t)
		}
	}
	for _, t := range incoming.Tags {
		if !seen[t] {
			seen[t] = true
			tags = append(tags, t)
		}
	}
	merged.Tags = tags

	metadata := make(map[string]string, len(existing.Metadata)+len(incoming.Metadata))
	for k, v := range existing.Metadata {
		metadata[k] = v
	}
	for k, v := range incoming.Metadata {
		metadata[k] = v
	}
	merged.Metadata = metadata

	return merged
}
