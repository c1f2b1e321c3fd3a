package sealdb

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/absfs/absfs"
	"github.com/google/uuid"
)

// tempFileSuffix marks the in-progress file written before the atomic rename
const tempFileSuffix = ".tmp"

// Store is an open handle on one encrypted database file. It owns the
// decrypted in-memory Database value; every mutation re-encrypts and rewrites
// the whole file. A Store assumes at most one logical writer at a time and
// does no internal locking.
type Store struct {
	fs         absfs.FileSystem
	filename   string
	passphrase string
	opts       Options
	db         *Database
	closed     bool
}

// Create creates a new database file. It fails if the file already exists.
func Create(fs absfs.FileSystem, filename, passphrase string, opts Options) (*Store, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if _, err := fs.Stat(filename); err == nil {
		return nil, NewDuplicateError("database", filename)
	}

	s := &Store{
		fs:         fs,
		filename:   filename,
		passphrase: passphrase,
		opts:       opts,
		db:         NewDatabase(filename, opts.ChunkSize),
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	return s, nil
}

// Open decrypts an existing database file and returns a handle on it.
// A wrong passphrase surfaces as an IntegrityError on the first chunk;
// the design cannot distinguish corruption from a wrong key.
func Open(fs absfs.FileSystem, filename, passphrase string) (*Store, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}

	file, err := fs.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	raw, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}

	container, err := UnmarshalContainer(raw)
	if err != nil {
		return nil, err
	}

	plaintext, err := DecryptContainer(container, passphrase)
	if err != nil {
		return nil, err
	}

	db := &Database{}
	if err := json.Unmarshal(plaintext, db); err != nil {
		return nil, fmt.Errorf("failed to decode database: %w", err)
	}
	if db.Meta.Magic != MagicTag {
		return nil, ErrWrongMagic
	}

	opts := Options{
		Algorithm: container.Metadata.Algorithm,
		ChunkSize: db.Meta.ChunkSize,
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = DefaultChunkSize
	}

	return &Store{
		fs:         fs,
		filename:   filename,
		passphrase: passphrase,
		opts:       opts,
		db:         db,
	}, nil
}

// Close drops the in-memory database. The handle cannot be used afterwards.
func (s *Store) Close() {
	s.db = nil
	s.closed = true
}

// Filename returns the database file name
func (s *Store) Filename() string {
	return s.filename
}

// CreateCollection creates a new empty collection and persists the change
func (s *Store) CreateCollection(name string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.db.AddCollection(name); err != nil {
		return err
	}
	return s.persist()
}

// DropCollection removes a collection and all its documents
func (s *Store) DropCollection(name string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.db.RemoveCollection(name); err != nil {
		return err
	}
	return s.persist()
}

// ListCollections returns the collection names in creation order
func (s *Store) ListCollections() ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.db.CollectionNames(), nil
}

// CollectionMeta returns the metadata of a collection
func (s *Store) CollectionMeta(name string) (CollectionMeta, error) {
	if err := s.ready(); err != nil {
		return CollectionMeta{}, err
	}
	coll := s.db.Collection(name)
	if coll == nil {
		return CollectionMeta{}, NewNotFoundError("collection", name)
	}
	return coll.Meta, nil
}

// CreateIndex records index metadata on a collection. Indexes are never
// consulted during query execution.
func (s *Store) CreateIndex(collection string, index Index) error {
	if err := s.ready(); err != nil {
		return err
	}
	coll := s.db.Collection(collection)
	if coll == nil {
		return NewNotFoundError("collection", collection)
	}
	for _, existing := range coll.Indexes {
		if existing.Name == index.Name {
			return NewDuplicateError("index", index.Name)
		}
	}
	coll.Indexes = append(coll.Indexes, index)
	return s.persist()
}

// Insert adds a document to a collection. An empty id is replaced with a
// fresh UUID. The inserted document is returned as a clone.
func (s *Store) Insert(collection, id string, data map[string]any) (*Document, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	coll := s.db.Collection(collection)
	if coll == nil {
		return nil, NewNotFoundError("collection", collection)
	}

	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	doc := &Document{
		ID:   id,
		Data: cloneData(data),
		Meta: DocumentMeta{CreatedAt: now, UpdatedAt: now, Version: 1},
	}
	if err := coll.Insert(doc); err != nil {
		return nil, err
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	return doc.Clone(), nil
}

// Get returns a clone of the document with the given id. Soft-deleted
// documents are reported as not found; Find with IncludeDeleted reaches them.
func (s *Store) Get(collection, id string) (*Document, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	coll := s.db.Collection(collection)
	if coll == nil {
		return nil, NewNotFoundError("collection", collection)
	}
	doc := coll.Get(id)
	if doc == nil || doc.Meta.Deleted {
		return nil, NewNotFoundError("document", id)
	}
	return doc.Clone(), nil
}

// Find runs a query over a collection
func (s *Store) Find(collection string, opts FindOptions) (*FindResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	coll := s.db.Collection(collection)
	if coll == nil {
		return nil, NewNotFoundError("collection", collection)
	}
	return FindDocuments(coll.Documents(), opts), nil
}

// Update applies an update to matching documents in insertion order. With
// multi false only the first match is updated. Zero matches is a
// NotFoundError, not a silent no-op. Returns the number of updated documents.
func (s *Store) Update(collection string, filter *Filter, update Update, multi bool) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	coll := s.db.Collection(collection)
	if coll == nil {
		return 0, NewNotFoundError("collection", collection)
	}

	ids := s.matchingIDs(coll, filter, multi)
	if len(ids) == 0 {
		return 0, NewNotFoundError("document", "no document matches filter")
	}

	for _, id := range ids {
		if err := ApplyUpdate(coll.Get(id), update); err != nil {
			return 0, err
		}
	}
	coll.Meta.ModifiedAt = time.Now().UTC()
	if err := s.persist(); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Delete removes matching documents in insertion order. A soft delete marks
// documents deleted but keeps them stored and counted; a hard delete removes
// them and decrements the document count. With multi false only the first
// match is deleted. Returns the number of deleted documents.
func (s *Store) Delete(collection string, filter *Filter, hard, multi bool) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	coll := s.db.Collection(collection)
	if coll == nil {
		return 0, NewNotFoundError("collection", collection)
	}

	// Snapshot ids before mutating so the iteration cannot be invalidated
	ids := s.matchingIDs(coll, filter, multi)
	if len(ids) == 0 {
		return 0, NewNotFoundError("document", "no document matches filter")
	}

	for _, id := range ids {
		if hard {
			if err := coll.Remove(id); err != nil {
				return 0, err
			}
		} else {
			doc := coll.Get(id)
			doc.Meta.Deleted = true
			doc.Meta.UpdatedAt = time.Now().UTC()
		}
	}
	coll.Meta.ModifiedAt = time.Now().UTC()
	if err := s.persist(); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// matchingIDs returns the ids of non-deleted documents matching the filter,
// in insertion order, truncated to one when multi is false
func (s *Store) matchingIDs(coll *Collection, filter *Filter, multi bool) []string {
	var ids []string
	for _, doc := range coll.Documents() {
		if doc.Meta.Deleted {
			continue
		}
		if !filter.Match(doc.Data) {
			continue
		}
		ids = append(ids, doc.ID)
		if !multi {
			break
		}
	}
	return ids
}

// Compact physically removes all soft-deleted documents and rewrites the file
func (s *Store) Compact() (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	removed := 0
	for _, name := range s.db.CollectionNames() {
		coll := s.db.Collection(name)
		var stale []string
		for _, doc := range coll.Documents() {
			if doc.Meta.Deleted {
				stale = append(stale, doc.ID)
			}
		}
		for _, id := range stale {
			if err := coll.Remove(id); err != nil {
				return removed, err
			}
			removed++
		}
	}
	if err := s.persist(); err != nil {
		return removed, err
	}
	return removed, nil
}

// ChangeMasterKey re-encrypts the database under a new passphrase
func (s *Store) ChangeMasterKey(newPassphrase string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if newPassphrase == "" {
		return ErrEmptyPassphrase
	}
	old := s.passphrase
	s.passphrase = newPassphrase
	if err := s.persist(); err != nil {
		s.passphrase = old
		return err
	}
	return nil
}

func (s *Store) ready() error {
	if s.closed || s.db == nil {
		return ErrStoreClosed
	}
	return nil
}

// persist serializes, encrypts and atomically rewrites the whole database
// file. The temp-file-plus-rename keeps the previous version intact if the
// write is interrupted.
func (s *Store) persist() error {
	s.db.Meta.ModifiedAt = time.Now().UTC()

	plaintext, err := json.Marshal(s.db)
	if err != nil {
		return fmt.Errorf("failed to encode database: %w", err)
	}

	blob, err := EncryptAuto(plaintext, s.passphrase, s.opts.ChunkSize, s.opts.Algorithm)
	if err != nil {
		return err
	}

	tempPath := s.filename + tempFileSuffix
	file, err := s.fs.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", tempPath, err)
	}
	if _, err := file.Write(blob); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", tempPath, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tempPath, err)
	}
	if err := s.fs.Rename(tempPath, s.filename); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.filename, err)
	}
	return nil
}
