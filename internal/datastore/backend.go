package datastore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Backend persists the document. Save receives the full document and the
// name of the collection that changed; backends that store collections
// separately only need to write that one.
type Backend interface {
	Load(ctx context.Context) (Document, error)
	Save(ctx context.Context, doc Document, changed string) error
	Ping(ctx context.Context) error
	Close() error
}

// Memory keeps nothing beyond the process lifetime.
type Memory struct {
	seed Document
}

var _ Backend = (*Memory)(nil)

// NewMemory returns a backend that starts from a copy of seed.
func NewMemory(seed Document) *Memory {
	return &Memory{seed: seed}
}

func (m *Memory) Load(context.Context) (Document, error) {
	out := Document{}
	for name, items := range m.seed {
		out[name] = cloneRecords(items)
	}
	return out, nil
}

func (m *Memory) Save(context.Context, Document, string) error { return nil }
func (m *Memory) Ping(context.Context) error                   { return nil }
func (m *Memory) Close() error                                 { return nil }

// File stores the document as a pretty-printed JSON file.
type File struct {
	path string
	mu   sync.Mutex
}

var _ Backend = (*File)(nil)

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Load(ctx context.Context) (Document, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		doc := Document{"users": []Record{}}
		if err := f.Save(ctx, doc, "users"); err != nil {
			return nil, err
		}
		return doc, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseDocument(data)
}

// Save writes to a temp file next to the target and renames it into place.
func (f *File) Save(_ context.Context, doc Document, _ string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".db-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *File) Ping(context.Context) error {
	_, err := os.Stat(f.path)
	return err
}

func (f *File) Close() error { return nil }

// ParseDocument decodes a document. Every top-level value must be an array
// of objects.
func ParseDocument(data []byte) (Document, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	doc := make(Document, len(raw))
	for name, body := range raw {
		items, err := parseCollection(body)
		if err != nil {
			return nil, fmt.Errorf("collection %q: %w", name, err)
		}
		doc[name] = items
	}
	return doc, nil
}

func parseCollection(body []byte) ([]Record, error) {
	var items []Record
	if err := unmarshalNumbers(body, &items); err != nil {
		return nil, fmt.Errorf("not an array of objects: %w", err)
	}
	if items == nil {
		items = []Record{}
	}
	return items, nil
}

func unmarshalNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
