package sealdb

import (
	"testing"
	"time"
)

func testDoc(id string, data map[string]any) *Document {
	now := time.Now().UTC()
	return &Document{
		ID:   id,
		Data: data,
		Meta: DocumentMeta{CreatedAt: now, UpdatedAt: now, Version: 1},
	}
}

func docIDs(result *FindResult) []string {
	ids := make([]string, 0, len(result.Documents))
	for _, doc := range result.Documents {
		ids = append(ids, doc.ID)
	}
	return ids
}

func mustFilter(t *testing.T, raw map[string]any) *Filter {
	t.Helper()
	filter, err := ParseFilter(raw)
	if err != nil {
		t.Fatalf("failed to parse filter: %v", err)
	}
	return filter
}

func TestFindDocuments_ExcludesSoftDeleted(t *testing.T) {
	deleted := testDoc("c", map[string]any{"x": float64(10)})
	deleted.Meta.Deleted = true
	docs := []*Document{
		testDoc("a", map[string]any{"x": float64(1)}),
		testDoc("b", map[string]any{"x": float64(5)}),
		deleted,
	}

	filter := mustFilter(t, map[string]any{"x": map[string]any{"$gte": float64(5)}})
	result := FindDocuments(docs, FindOptions{Filter: filter})

	if got := docIDs(result); len(got) != 1 || got[0] != "b" {
		t.Fatalf("got %v, want [b]", got)
	}
	if result.TotalCount != 1 {
		t.Fatalf("totalCount = %d, want 1", result.TotalCount)
	}
	if result.HasMore {
		t.Fatal("hasMore = true, want false")
	}

	withDeleted := FindDocuments(docs, FindOptions{Filter: filter, IncludeDeleted: true})
	if got := docIDs(withDeleted); len(got) != 2 {
		t.Fatalf("includeDeleted got %v, want [b c]", got)
	}
}

func TestFilter_Operators(t *testing.T) {
	data := map[string]any{
		"age":  float64(36),
		"name": "ada",
		"tags": []any{"math", "computing"},
		"addr": map[string]any{"city": "london"},
	}

	tests := []struct {
		name  string
		raw   map[string]any
		match bool
	}{
		{"literal equality", map[string]any{"name": "ada"}, true},
		{"literal mismatch", map[string]any{"name": "bob"}, false},
		{"eq", map[string]any{"age": map[string]any{"$eq": float64(36)}}, true},
		{"ne", map[string]any{"age": map[string]any{"$ne": float64(35)}}, true},
		{"ne equal", map[string]any{"age": map[string]any{"$ne": float64(36)}}, false},
		{"gt", map[string]any{"age": map[string]any{"$gt": float64(35)}}, true},
		{"gt equal", map[string]any{"age": map[string]any{"$gt": float64(36)}}, false},
		{"gte equal", map[string]any{"age": map[string]any{"$gte": float64(36)}}, true},
		{"lt", map[string]any{"age": map[string]any{"$lt": float64(40)}}, true},
		{"lte", map[string]any{"age": map[string]any{"$lte": float64(36)}}, true},
		{"in", map[string]any{"name": map[string]any{"$in": []any{"ada", "bob"}}}, true},
		{"in miss", map[string]any{"name": map[string]any{"$in": []any{"bob"}}}, false},
		{"nin", map[string]any{"name": map[string]any{"$nin": []any{"bob"}}}, true},
		{"regex", map[string]any{"name": map[string]any{"$regex": "^a.a$"}}, true},
		{"regex miss", map[string]any{"name": map[string]any{"$regex": "^b"}}, false},
		{"exists true", map[string]any{"age": map[string]any{"$exists": true}}, true},
		{"exists false on present", map[string]any{"age": map[string]any{"$exists": false}}, false},
		{"exists false on missing", map[string]any{"salary": map[string]any{"$exists": false}}, true},
		{"dot path", map[string]any{"addr.city": "london"}, true},
		{"dot path miss", map[string]any{"addr.city": "paris"}, false},
		{"dot path through missing", map[string]any{"addr.street.number": float64(1)}, false},
		{"missing field literal", map[string]any{"salary": float64(100)}, false},
		{"missing field ne", map[string]any{"salary": map[string]any{"$ne": float64(100)}}, true},
		{"missing field nin", map[string]any{"salary": map[string]any{"$nin": []any{float64(1)}}}, true},
		{"range conjunction", map[string]any{"age": map[string]any{"$gte": float64(30), "$lt": float64(40)}}, true},
		{"mixed type comparison", map[string]any{"name": map[string]any{"$gt": float64(5)}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := mustFilter(t, tt.raw)
			if got := filter.Match(data); got != tt.match {
				t.Fatalf("match = %v, want %v", got, tt.match)
			}
		})
	}
}

func TestFilter_Logical(t *testing.T) {
	data := map[string]any{"x": float64(5), "y": "left"}

	tests := []struct {
		name  string
		raw   map[string]any
		match bool
	}{
		{
			"and all true",
			map[string]any{"$and": []any{
				map[string]any{"x": float64(5)},
				map[string]any{"y": "left"},
			}},
			true,
		},
		{
			"and one false",
			map[string]any{"$and": []any{
				map[string]any{"x": float64(5)},
				map[string]any{"y": "right"},
			}},
			false,
		},
		{
			"or one true",
			map[string]any{"$or": []any{
				map[string]any{"x": float64(99)},
				map[string]any{"y": "left"},
			}},
			true,
		},
		{
			"or none true",
			map[string]any{"$or": []any{
				map[string]any{"x": float64(99)},
				map[string]any{"y": "right"},
			}},
			false,
		},
		{
			// $not negates the conjunction of all its sub-predicates
			"not all true",
			map[string]any{"$not": []any{
				map[string]any{"x": float64(5)},
				map[string]any{"y": "left"},
			}},
			false,
		},
		{
			"not one false",
			map[string]any{"$not": []any{
				map[string]any{"x": float64(5)},
				map[string]any{"y": "right"},
			}},
			true,
		},
		{
			"logical and field key conjunction",
			map[string]any{
				"x": float64(5),
				"$or": []any{
					map[string]any{"y": "left"},
					map[string]any{"y": "center"},
				},
			},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := mustFilter(t, tt.raw)
			if got := filter.Match(data); got != tt.match {
				t.Fatalf("match = %v, want %v", got, tt.match)
			}
		})
	}
}

func TestParseFilter_RejectsUnknownOperator(t *testing.T) {
	_, err := ParseFilter(map[string]any{"x": map[string]any{"$near": float64(1)}})
	if err == nil {
		t.Fatal("unknown operator was accepted")
	}

	_, err = ParseFilter(map[string]any{"$nor": []any{}})
	if err == nil {
		t.Fatal("unknown logical key was accepted")
	}
}

func TestParseFilter_RejectsBadRegex(t *testing.T) {
	if _, err := ParseFilter(map[string]any{"x": map[string]any{"$regex": "("}}); err == nil {
		t.Fatal("invalid regex was accepted")
	}
}

func TestFindDocuments_Sort(t *testing.T) {
	docs := []*Document{
		testDoc("a", map[string]any{"group": "g2", "rank": float64(1)}),
		testDoc("b", map[string]any{"group": "g1", "rank": float64(2)}),
		testDoc("c", map[string]any{"group": "g1", "rank": float64(1)}),
		testDoc("d", map[string]any{"group": "g2"}), // missing rank falls through
	}

	result := FindDocuments(docs, FindOptions{
		Sort: []SortKey{
			{Field: "group", Direction: 1},
			{Field: "rank", Direction: -1},
		},
	})

	got := docIDs(result)
	want := []string{"b", "c", "a", "d"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sort order = %v, want %v", got, want)
		}
	}
}

func TestFindDocuments_SortStable(t *testing.T) {
	docs := []*Document{
		testDoc("first", map[string]any{"k": float64(1)}),
		testDoc("second", map[string]any{"k": float64(1)}),
		testDoc("third", map[string]any{"k": float64(1)}),
	}

	result := FindDocuments(docs, FindOptions{Sort: []SortKey{{Field: "k", Direction: 1}}})
	got := docIDs(result)
	// Ties keep input order; order beyond the given keys is otherwise
	// unspecified
	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tie order = %v, want %v", got, want)
		}
	}
}

func TestFindDocuments_Pagination(t *testing.T) {
	var docs []*Document
	for i := 0; i < 10; i++ {
		docs = append(docs, testDoc(string(rune('a'+i)), map[string]any{"i": float64(i)}))
	}

	tests := []struct {
		name      string
		skip      int
		limit     int
		wantCount int
		wantMore  bool
	}{
		{"no pagination", 0, 0, 10, false},
		{"limit", 0, 3, 3, true},
		{"skip", 4, 0, 6, false},
		{"skip and limit", 4, 3, 3, true},
		{"last page", 8, 5, 2, false},
		{"skip past end", 20, 0, 0, false},
		{"negative skip treated as zero", -5, 0, 10, false},
		{"negative skip with limit", -5, 3, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FindDocuments(docs, FindOptions{Skip: tt.skip, Limit: tt.limit})
			if len(result.Documents) != tt.wantCount {
				t.Fatalf("got %d documents, want %d", len(result.Documents), tt.wantCount)
			}
			if result.TotalCount != 10 {
				t.Fatalf("totalCount = %d, want 10", result.TotalCount)
			}
			if result.HasMore != tt.wantMore {
				t.Fatalf("hasMore = %v, want %v", result.HasMore, tt.wantMore)
			}
		})
	}
}

func TestFindDocuments_Projection(t *testing.T) {
	docs := []*Document{
		testDoc("a", map[string]any{
			"name": "ada",
			"age":  float64(36),
			"addr": map[string]any{"city": "london", "zip": "N1"},
		}),
	}

	result := FindDocuments(docs, FindOptions{Projection: []string{"name", "addr.city"}})
	data := result.Documents[0].Data

	if data["name"] != "ada" {
		t.Fatalf("name = %v, want ada", data["name"])
	}
	if _, present := data["age"]; present {
		t.Fatal("age survived projection")
	}
	addr, ok := data["addr"].(map[string]any)
	if !ok {
		t.Fatalf("addr = %v, want nested object", data["addr"])
	}
	if addr["city"] != "london" {
		t.Fatalf("addr.city = %v, want london", addr["city"])
	}
	if _, present := addr["zip"]; present {
		t.Fatal("addr.zip survived projection")
	}
}

func TestProjectionFromMap(t *testing.T) {
	fields := ProjectionFromMap(map[string]bool{"a": true, "b": false, "c": true})
	if len(fields) != 2 || fields[0] != "a" || fields[1] != "c" {
		t.Fatalf("got %v, want [a c]", fields)
	}
}

func TestFindDocuments_ClonesResults(t *testing.T) {
	docs := []*Document{testDoc("a", map[string]any{"x": float64(1)})}

	result := FindDocuments(docs, FindOptions{})
	result.Documents[0].Data["x"] = float64(99)

	if docs[0].Data["x"] != float64(1) {
		t.Fatal("mutating a find result leaked into the source document")
	}
}
