package model

// Collection is a named, ordered container of item ids.
type Collection struct {
	ID          CollectionID
	Name        string
	Description string
	Icon        string
	ItemCount   int
	IsEditable  bool
	Owner       string
}
