// Package schema loads the per-template field declarations from
// templates_metadata.json and synthesises example payloads from them.
//
// The file is re-read on every lookup so edits are picked up without a
// restart. A missing file or key is not an error: callers fall back to a
// template scan.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrInvalidSchema is returned when the file is not valid JSON or does not
// match the metadata layout.
var ErrInvalidSchema = errors.New("schema: invalid metadata file")

// Kind is the declared data type of a field.
type Kind string

const (
	KindString Kind = "string"
	KindNumber Kind = "number"
	KindArray  Kind = "array"
	KindObject Kind = "object"
)

// Valid reports whether k is one of the four known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindString, KindNumber, KindArray, KindObject:
		return true
	}
	return false
}

// FieldSpec describes one template field.
type FieldSpec struct {
	Type        Kind   `json:"type"`
	Format      string `json:"format,omitempty"`
	Description string `json:"description,omitempty"`
	Example     any    `json:"example,omitempty"`
}

// Field is a named FieldSpec.
type Field struct {
	Name string
	FieldSpec
}

// Fields keeps the declaration order of the JSON object it was read from.
type Fields []Field

// Get returns the spec for name.
func (fs Fields) Get(name string) (FieldSpec, bool) {
	for _, f := range fs {
		if f.Name == name {
			return f.FieldSpec, true
		}
	}
	return FieldSpec{}, false
}

// UnmarshalJSON decodes a JSON object preserving key order.
func (fs *Fields) UnmarshalJSON(data []byte) error {
	*fs = (*fs)[:0]
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}
	return decodeObject(data, func(key string, dec *json.Decoder) error {
		var spec FieldSpec
		if err := dec.Decode(&spec); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		if spec.Type == "" {
			spec.Type = KindString
		}
		*fs = append(*fs, Field{Name: key, FieldSpec: spec})
		return nil
	})
}

// MarshalJSON encodes the fields as an object in declaration order.
func (fs Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fs {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.FieldSpec)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Entry is the declaration for one template.
type Entry struct {
	Description string `json:"description"`
	Required    Fields `json:"required_fields"`
	Optional    Fields `json:"optional_fields"`
}

// Lookup finds a field in either partition and reports whether it is required.
func (e *Entry) Lookup(name string) (spec FieldSpec, required, ok bool) {
	if spec, ok := e.Required.Get(name); ok {
		return spec, true, true
	}
	if spec, ok := e.Optional.Get(name); ok {
		return spec, false, true
	}
	return FieldSpec{}, false, false
}

// Catalog is the decoded metadata file.
type Catalog struct {
	Keys    []string
	Entries map[string]*Entry
}

// Parse validates data against the metadata layout and decodes it.
func Parse(data []byte) (*Catalog, error) {
	if err := validate(data); err != nil {
		return nil, err
	}
	cat := &Catalog{Entries: make(map[string]*Entry)}
	err := decodeObject(data, func(key string, dec *json.Decoder) error {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			return fmt.Errorf("template %q: %w", key, err)
		}
		cat.Keys = append(cat.Keys, key)
		cat.Entries[key] = &e
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	return cat, nil
}

// Key strips the .docx extension from a template name.
func Key(templateName string) string {
	return strings.TrimSuffix(templateName, ".docx")
}

// Store reads the metadata file at a fixed path.
type Store struct {
	path string
}

// NewStore returns a Store reading path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the metadata file location.
func (s *Store) Path() string { return s.path }

// Load reads and decodes the file. A missing file yields an empty catalog.
func (s *Store) Load() (*Catalog, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &Catalog{Entries: map[string]*Entry{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("schema: read %s: %w", s.path, err)
	}
	return Parse(data)
}

// Lookup returns the entry for a template name (extension optional), or nil
// when the file or the key is absent.
func (s *Store) Lookup(templateName string) (*Entry, error) {
	cat, err := s.Load()
	if err != nil {
		return nil, err
	}
	return cat.Entries[Key(templateName)], nil
}

// Keys lists the template keys in file order.
func (s *Store) Keys() ([]string, error) {
	cat, err := s.Load()
	if err != nil {
		return nil, err
	}
	return cat.Keys, nil
}

func decodeObject(data []byte, fn func(key string, dec *json.Decoder) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected key, got %v", tok)
		}
		if err := fn(key, dec); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

// Zero is the placeholder used for an absent optional field of kind k.
func (k Kind) Zero() any {
	switch k {
	case KindNumber:
		return 0
	case KindArray:
		return []any{}
	case KindObject:
		return map[string]any{}
	}
	return ""
}

// FillOptional sets every declared optional field missing from data to the
// zero value of its kind, so templates can guard it with {{if}}.
func (e *Entry) FillOptional(data map[string]any) {
	for _, f := range e.Optional {
		if _, ok := data[f.Name]; !ok {
			data[f.Name] = f.Type.Zero()
		}
	}
}

// JSONSchema is the JSON-Schema rendition of an Entry.
type JSONSchema struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Properties  Fields   `json:"properties"`
	Required    []string `json:"required"`
}

// JSONSchema converts the entry, required fields first.
func (e *Entry) JSONSchema() JSONSchema {
	js := JSONSchema{
		Type:        "object",
		Description: e.Description,
		Properties:  make(Fields, 0, len(e.Required)+len(e.Optional)),
		Required:    make([]string, 0, len(e.Required)),
	}
	for _, f := range e.Required {
		js.Properties = append(js.Properties, f)
		js.Required = append(js.Required, f.Name)
	}
	js.Properties = append(js.Properties, e.Optional...)
	return js
}
