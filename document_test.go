package sealdb

import (
	"encoding/json"
	"testing"
)

func TestCollection_InsertRemove(t *testing.T) {
	coll := NewCollection("users")

	if err := coll.Insert(testDoc("a", nil)); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}
	if err := coll.Insert(testDoc("a", nil)); !IsDuplicateError(err) {
		t.Fatalf("expected DuplicateError, got %v", err)
	}
	if coll.Meta.DocumentCount != 1 {
		t.Fatalf("documentCount = %d, want 1", coll.Meta.DocumentCount)
	}

	if err := coll.Remove("a"); err != nil {
		t.Fatalf("failed to remove: %v", err)
	}
	if err := coll.Remove("a"); !IsNotFoundError(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if coll.Meta.DocumentCount != 0 {
		t.Fatalf("documentCount = %d, want 0", coll.Meta.DocumentCount)
	}
}

func TestCollection_JSONKeepsInsertionOrder(t *testing.T) {
	coll := NewCollection("users")
	order := []string{"zebra", "apple", "mango"}
	for _, id := range order {
		if err := coll.Insert(testDoc(id, map[string]any{"id": id})); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}
	}

	raw, err := json.Marshal(coll)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	restored := &Collection{}
	if err := json.Unmarshal(raw, restored); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	docs := restored.Documents()
	if len(docs) != len(order) {
		t.Fatalf("got %d documents, want %d", len(docs), len(order))
	}
	for i, id := range order {
		if docs[i].ID != id {
			t.Fatalf("document %d has id %s, want %s", i, docs[i].ID, id)
		}
	}
}

func TestDocument_Clone(t *testing.T) {
	doc := testDoc("a", map[string]any{
		"plain":  "value",
		"nested": map[string]any{"k": float64(1)},
		"list":   []any{float64(1), map[string]any{"deep": true}},
	})

	clone := doc.Clone()
	clone.Data["plain"] = "changed"
	clone.Data["nested"].(map[string]any)["k"] = float64(99)
	clone.Data["list"].([]any)[1].(map[string]any)["deep"] = false

	if doc.Data["plain"] != "value" {
		t.Fatal("clone shares top-level data with original")
	}
	if doc.Data["nested"].(map[string]any)["k"] != float64(1) {
		t.Fatal("clone shares nested maps with original")
	}
	if doc.Data["list"].([]any)[1].(map[string]any)["deep"] != true {
		t.Fatal("clone shares nested slices with original")
	}
}

func TestDatabase_JSONRoundTrip(t *testing.T) {
	db := NewDatabase("/test.sdb", DefaultChunkSize)
	for _, name := range []string{"users", "orders"} {
		if _, err := db.AddCollection(name); err != nil {
			t.Fatalf("failed to add collection: %v", err)
		}
	}
	if err := db.Collection("users").Insert(testDoc("u1", map[string]any{"n": float64(1)})); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}

	raw, err := json.Marshal(db)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	restored := &Database{}
	if err := json.Unmarshal(raw, restored); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if restored.Meta.Magic != MagicTag {
		t.Fatalf("magic = %q, want %q", restored.Meta.Magic, MagicTag)
	}
	names := restored.CollectionNames()
	if len(names) != 2 || names[0] != "users" || names[1] != "orders" {
		t.Fatalf("collections = %v, want [users orders]", names)
	}
	if restored.Collection("users").Get("u1") == nil {
		t.Fatal("document lost in round trip")
	}
}
