package sealdb

import (
	"encoding/json"
	"time"
)

// MagicTag identifies a decrypted database payload. AEAD verification already
// rejects a wrong passphrase; the tag is a defensive secondary check against
// decrypting a file that was never a database.
const MagicTag = "SEALDB1"

// DatabaseVersion is the current payload format version
const DatabaseVersion = 1

// DatabaseMeta is the bookkeeping metadata of a database
type DatabaseMeta struct {
	Magic      string    `json:"magic"`
	Version    int       `json:"version"`
	ChunkSize  int       `json:"chunkSize"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// Database is the whole document set of one store: named collections plus
// metadata. The entire value is what gets serialized into one encrypted
// container plaintext.
type Database struct {
	Filename string
	Meta     DatabaseMeta

	collections map[string]*Collection
	order       []string
}

// NewDatabase creates an empty database for the given filename
func NewDatabase(filename string, chunkSize int) *Database {
	now := time.Now().UTC()
	return &Database{
		Filename: filename,
		Meta: DatabaseMeta{
			Magic:      MagicTag,
			Version:    DatabaseVersion,
			ChunkSize:  chunkSize,
			CreatedAt:  now,
			ModifiedAt: now,
		},
		collections: make(map[string]*Collection),
	}
}

// Collection returns the named collection, or nil if absent
func (db *Database) Collection(name string) *Collection {
	return db.collections[name]
}

// AddCollection creates a new empty collection
func (db *Database) AddCollection(name string) (*Collection, error) {
	if _, exists := db.collections[name]; exists {
		return nil, NewDuplicateError("collection", name)
	}
	coll := NewCollection(name)
	db.collections[name] = coll
	db.order = append(db.order, name)
	db.Meta.ModifiedAt = time.Now().UTC()
	return coll, nil
}

// RemoveCollection drops a collection and all its documents
func (db *Database) RemoveCollection(name string) error {
	if _, exists := db.collections[name]; !exists {
		return NewNotFoundError("collection", name)
	}
	delete(db.collections, name)
	for i, existing := range db.order {
		if existing == name {
			db.order = append(db.order[:i], db.order[i+1:]...)
			break
		}
	}
	db.Meta.ModifiedAt = time.Now().UTC()
	return nil
}

// CollectionNames returns the collection names in creation order
func (db *Database) CollectionNames() []string {
	return append([]string(nil), db.order...)
}

// databaseJSON is the serialized form of a database. Collections are stored
// as an ordered array so creation order survives the round trip.
type databaseJSON struct {
	Filename    string        `json:"filename"`
	Collections []*Collection `json:"collections"`
	Meta        DatabaseMeta  `json:"meta"`
}

// MarshalJSON implements json.Marshaler
func (db *Database) MarshalJSON() ([]byte, error) {
	colls := make([]*Collection, 0, len(db.order))
	for _, name := range db.order {
		colls = append(colls, db.collections[name])
	}
	return json.Marshal(databaseJSON{
		Filename:    db.Filename,
		Collections: colls,
		Meta:        db.Meta,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (db *Database) UnmarshalJSON(raw []byte) error {
	var dj databaseJSON
	if err := json.Unmarshal(raw, &dj); err != nil {
		return err
	}
	db.Filename = dj.Filename
	db.Meta = dj.Meta
	db.collections = make(map[string]*Collection, len(dj.Collections))
	db.order = make([]string, 0, len(dj.Collections))
	for _, coll := range dj.Collections {
		db.collections[coll.Name] = coll
		db.order = append(db.order, coll.Name)
	}
	return nil
}
