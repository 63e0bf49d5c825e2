package cachestore

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"scryforge/internal/model"
)

type streamRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	ProviderID   string         `db:"provider_id"`
	StreamType   string         `db:"stream_type"`
	CustomTag    sql.NullString `db:"custom_tag"`
	Icon         sql.NullString `db:"icon"`
	UnreadCount  sql.NullInt64  `db:"unread_count"`
	TotalCount   sql.NullInt64  `db:"total_count"`
	LastUpdated  sql.NullTime   `db:"last_updated"`
	MetadataJSON string         `db:"metadata_json"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func rowFromStream(s model.Stream, createdAt, updatedAt time.Time) (streamRow, error) {
	metadataJSON, err := json.Marshal(nonNilMap(s.Metadata))
	if err != nil {
		return streamRow{}, errors.Wrap(err, "marshaling stream metadata")
	}

	r := streamRow{
		ID:           string(s.ID),
		Name:         s.Name,
		ProviderID:   s.ProviderID,
		StreamType:   string(s.Kind),
		Icon:         toNullString(s.Icon),
		MetadataJSON: string(metadataJSON),
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}
	if s.Kind == model.KindCustom {
		r.CustomTag = toNullString(s.CustomTag)
	}
	if s.UnreadCount != nil {
		r.UnreadCount = sql.NullInt64{Int64: int64(*s.UnreadCount), Valid: true}
	}
	if s.TotalCount != nil {
		r.TotalCount = sql.NullInt64{Int64: int64(*s.TotalCount), Valid: true}
	}
	if s.LastUpdated != nil {
		r.LastUpdated = sql.NullTime{Time: *s.LastUpdated, Valid: true}
	}
	return r, nil
}

func (r streamRow) toModel() (model.Stream, error) {
	s := model.Stream{
		ID:         model.StreamID(r.ID),
		Name:       r.Name,
		ProviderID: r.ProviderID,
		Kind:       model.StreamKind(r.StreamType),
		Icon:       r.Icon.String,
	}
	if r.CustomTag.Valid {
		s.CustomTag = r.CustomTag.String
	}
	if r.UnreadCount.Valid {
		v := int(r.UnreadCount.Int64)
		s.UnreadCount = &v
	}
	if r.TotalCount.Valid {
		v := int(r.TotalCount.Int64)
		s.TotalCount = &v
	}
	if r.LastUpdated.Valid {
		t := r.LastUpdated.Time
		s.LastUpdated = &t
	}

	var metadata map[string]string
	if err := json.Unmarshal([]byte(r.MetadataJSON), &metadata); err != nil {
		return model.Stream{}, errors.Wrap(err, "unmarshaling stream metadata")
	}
	s.Metadata = metadata

	return s, nil
}

type itemRow struct {
	ID              string         `db:"id"`
	StreamID        string         `db:"stream_id"`
	Title           string         `db:"title"`
	ContentType     string         `db:"content_type"`
	ContentDataJSON string         `db:"content_data_json"`
	AuthorName      sql.NullString `db:"author_name"`
	AuthorEmail     sql.NullString `db:"author_email"`
	AuthorURL       sql.NullString `db:"author_url"`
	AuthorAvatar    sql.NullString `db:"author_avatar"`
	Published       sql.NullTime   `db:"published"`
	Updated         sql.NullTime   `db:"updated"`
	URL             sql.NullString `db:"url"`
	ThumbnailURL    sql.NullString `db:"thumbnail_url"`
	IsRead          bool           `db:"is_read"`
	IsSaved         bool           `db:"is_saved"`
	IsArchived      bool           `db:"is_archived"`
	TagsJSON        string         `db:"tags_json"`
	MetadataJSON    string         `db:"metadata_json"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func rowFromItem(it model.Item, createdAt, updatedAt time.Time) (itemRow, error) {
	contentJSON, err := json.Marshal(it.Content)
	if err != nil {
		return itemRow{}, errors.Wrap(err, "marshaling item content")
	}
	tagsJSON, err := json.Marshal(nonNilSlice(it.Tags))
	if err != nil {
		return itemRow{}, errors.Wrap(err, "marshaling item tags")
	}
	metadataJSON, err := json.Marshal(nonNilMap(it.Metadata))
	if err != nil {
		return itemRow{}, errors.Wrap(err, "marshaling item metadata")
	}

	r := itemRow{
		ID:              string(it.ID),
		StreamID:        string(it.StreamID),
		Title:           it.Title,
		ContentType:     string(it.Content.Type),
		ContentDataJSON: string(contentJSON),
		URL:             toNullString(it.URL),
		ThumbnailURL:    toNullString(it.ThumbnailURL),
		IsRead:          it.IsRead,
		IsSaved:         it.IsSaved,
		IsArchived:      it.IsArchived,
		TagsJSON:        string(tagsJSON),
		MetadataJSON:    string(metadataJSON),
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}
	if it.Author != nil {
		r.AuthorName = toNullString(it.Author.Name)
		r.AuthorEmail = toNullString(it.Author.Email)
		r.AuthorURL = toNullString(it.Author.URL)
		r.AuthorAvatar = toNullString(it.Author.Avatar)
	}
	if it.Published != nil {
		r.Published = sql.NullTime{Time: *it.Published, Valid: true}
	}
	if it.Updated != nil {
		r.Updated = sql.NullTime{Time: *it.Updated, Valid: true}
	}
	return r, nil
}

func (r itemRow) toModel() (model.Item, error) {
	it := model.Item{
		ID:         model.ItemID(r.ID),
		StreamID:   model.StreamID(r.StreamID),
		Title:      r.Title,
		URL:        r.URL.String,
		ThumbnailURL: r.ThumbnailURL.String,
		IsRead:     r.IsRead,
		IsSaved:    r.IsSaved,
		IsArchived: r.IsArchived,
	}

	var content model.Content
	if err := json.Unmarshal([]byte(r.ContentDataJSON), &content); err != nil {
		return model.Item{}, errors.Wrap(err, "unmarshaling item content")
	}
	it.Content = content

	if r.AuthorName.Valid || r.AuthorEmail.Valid || r.AuthorURL.Valid || r.AuthorAvatar.Valid {
		it.Author = &model.Author{
			Name:   r.AuthorName.String,
			Email:  r.AuthorEmail.String,
			URL:    r.AuthorURL.String,
			Avatar: r.AuthorAvatar.String,
		}
	}
	if r.Published.Valid {
		t := r.Published.Time
		it.Published = &t
	}
	if r.Updated.Valid {
		t := r.Updated.Time
		it.Updated = &t
	}

	var tags []string
	if err := json.Unmarshal([]byte(r.TagsJSON), &tags); err != nil {
		return model.Item{}, errors.Wrap(err, "unmarshaling item tags")
	}
	it.Tags = tags

	var metadata map[string]string
	if err := json.Unmarshal([]byte(r.MetadataJSON), &metadata); err != nil {
		return model.Item{}, errors.Wrap(err, "unmarshaling item metadata")
	}
	it.Metadata = metadata

	return it, nil
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func nonNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
