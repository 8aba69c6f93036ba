package store

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ToRecords flattens a snapshot into records sorted by id.
// An empty or absent collection yields an empty, non-nil slice.
func ToRecords(snap Snapshot) []Record {
	records := make([]Record, 0, len(snap.Docs))
	for id, doc := range snap.Docs {
		records = append(records, Record{ID: id, Data: doc})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
	return records
}

// Encode converts a typed value into a document using its JSON field names
func Encode(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("encode document: %T is not an object", v)
	}
	return doc, nil
}

// Decode fills out from a document using its JSON field names
func Decode(doc Document, out any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// normalize deep-copies a document into its JSON representation, so every
// backend hands out the same value types (float64 numbers, []any arrays).
func normalize(doc Document) (Document, error) {
	if doc == nil {
		return Document{}, nil
	}
	return Encode(doc)
}

func emptySnapshot(collection string, version uint64) Snapshot {
	return Snapshot{Collection: collection, Version: version, Docs: map[string]Document{}}
}
