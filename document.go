package sealdb

import (
	"encoding/json"
	"time"
)

// DocumentMeta is the envelope metadata of a document
type DocumentMeta struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   int       `json:"version"`
	Deleted   bool      `json:"deleted,omitempty"`
}

// Document is one record in a collection. The ID is unique within the
// collection and immutable once assigned. Soft-deleted documents remain
// physically present until hard-deleted.
type Document struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
	Meta DocumentMeta   `json:"meta"`
}

// Clone returns a deep copy of the document so callers cannot mutate the
// store's in-memory state behind its back
func (d *Document) Clone() *Document {
	return &Document{
		ID:   d.ID,
		Data: cloneData(d.Data),
		Meta: d.Meta,
	}
}

func cloneData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneData(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// Index is declared index metadata. Indexes are recorded but never consulted
// during query execution.
type Index struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
	Unique bool     `json:"unique,omitempty"`
}

// CollectionMeta is the bookkeeping metadata of a collection. DocumentCount
// always equals the number of stored documents, soft-deleted included.
type CollectionMeta struct {
	CreatedAt     time.Time `json:"createdAt"`
	ModifiedAt    time.Time `json:"modifiedAt"`
	DocumentCount int       `json:"documentCount"`
}

// Collection owns a set of documents keyed by id. Iteration order is the
// explicit insertion order, preserved across serialization, so "first match"
// semantics survive a save/load round trip.
type Collection struct {
	Name    string
	Indexes []Index
	Meta    CollectionMeta

	docs  map[string]*Document
	order []string
}

// NewCollection creates an empty collection
func NewCollection(name string) *Collection {
	now := time.Now().UTC()
	return &Collection{
		Name: name,
		Meta: CollectionMeta{CreatedAt: now, ModifiedAt: now},
		docs: make(map[string]*Document),
	}
}

// Get returns the document with the given id, or nil if absent
func (c *Collection) Get(id string) *Document {
	return c.docs[id]
}

// Insert adds a document; the id must not be present yet
func (c *Collection) Insert(doc *Document) error {
	if _, exists := c.docs[doc.ID]; exists {
		return NewDuplicateError("document", doc.ID)
	}
	c.docs[doc.ID] = doc
	c.order = append(c.order, doc.ID)
	c.Meta.DocumentCount = len(c.docs)
	c.Meta.ModifiedAt = time.Now().UTC()
	return nil
}

// Remove physically deletes a document and updates the document count
func (c *Collection) Remove(id string) error {
	if _, exists := c.docs[id]; !exists {
		return NewNotFoundError("document", id)
	}
	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.Meta.DocumentCount = len(c.docs)
	c.Meta.ModifiedAt = time.Now().UTC()
	return nil
}

// Documents returns the documents in insertion order
func (c *Collection) Documents() []*Document {
	out := make([]*Document, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.docs[id])
	}
	return out
}

// Len returns the number of stored documents, soft-deleted included
func (c *Collection) Len() int {
	return len(c.docs)
}

// collectionJSON is the serialized form of a collection. Documents are stored
// as an ordered array so insertion order survives the round trip.
type collectionJSON struct {
	Name      string         `json:"name"`
	Documents []*Document    `json:"documents"`
	Indexes   []Index        `json:"indexes,omitempty"`
	Meta      CollectionMeta `json:"meta"`
}

// MarshalJSON implements json.Marshaler
func (c *Collection) MarshalJSON() ([]byte, error) {
	return json.Marshal(collectionJSON{
		Name:      c.Name,
		Documents: c.Documents(),
		Indexes:   c.Indexes,
		Meta:      c.Meta,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (c *Collection) UnmarshalJSON(raw []byte) error {
	var cj collectionJSON
	if err := json.Unmarshal(raw, &cj); err != nil {
		return err
	}
	c.Name = cj.Name
	c.Indexes = cj.Indexes
	c.Meta = cj.Meta
	c.docs = make(map[string]*Document, len(cj.Documents))
	c.order = make([]string, 0, len(cj.Documents))
	for _, doc := range cj.Documents {
		c.docs[doc.ID] = doc
		c.order = append(c.order, doc.ID)
	}
	c.Meta.DocumentCount = len(c.docs)
	return nil
}
