package database

import "go.mongodb.org/mongo-driver/bson/primitive"

// Document is implemented by every persisted entity through an embedded Model.
type Document interface {
	DocumentID() primitive.ObjectID
	SetDocumentID(id primitive.ObjectID)
	UpdatedExisting() bool
	MarkUpdatedExisting(existing bool)
}

// Model carries the identifier and the findAndModify metadata of a stored document.
type Model struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"_id"`

	updatedExisting bool
}

func (m *Model) DocumentID() primitive.ObjectID {
	return m.ID
}

func (m *Model) SetDocumentID(id primitive.ObjectID) {
	m.ID = id
}

// UpdatedExisting reports whether the last findAndModify matched an existing document.
// For an upsert, false means the document was inserted.
func (m *Model) UpdatedExisting() bool {
	return m.updatedExisting
}

func (m *Model) MarkUpdatedExisting(existing bool) {
	m.updatedExisting = existing
}

// Page is a slice of wrapped documents tagged with the total count of matching documents.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}
