package config

import (
	"fmt"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Document is an immutable JSON object holding user-supplied parameters.
//
// The zero value is an empty object. Edits return a new Document and never
// touch the receiver.
type Document struct {
	raw []byte
}

// ParseDocument parses b as a JSON object.
func ParseDocument(b []byte) (Document, error) {
	if len(strings.TrimSpace(string(b))) == 0 {
		return Document{}, nil
	}
	if !gjson.ValidBytes(b) {
		return Document{}, fmt.Errorf("%w: malformed JSON", ErrInvalidDocument)
	}
	if !gjson.ParseBytes(b).IsObject() {
		return Document{}, fmt.Errorf("%w: top level must be an object", ErrInvalidDocument)
	}
	raw := make([]byte, len(b))
	copy(raw, b)
	return Document{raw: raw}, nil
}

// MustParseDocument is like ParseDocument but panics on error.
// It is intended for literals in tests and examples.
func MustParseDocument(s string) Document {
	d, err := ParseDocument([]byte(s))
	if err != nil {
		panic(err)
	}
	return d
}

// NewDocument builds a Document from a Go map.
func NewDocument(m map[string]any) (Document, error) {
	if len(m) == 0 {
		return Document{}, nil
	}
	b, err := gojson.Marshal(m)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return Document{raw: b}, nil
}

func (d Document) root() gjson.Result {
	if len(d.raw) == 0 {
		return gjson.Parse("{}")
	}
	return gjson.ParseBytes(d.raw)
}

// Lookup returns the top-level value stored under name.
//
// Keys are matched literally, so names containing path characters such as
// '.' or '*' are not interpreted.
func (d Document) Lookup(name string) (gjson.Result, bool) {
	var (
		found gjson.Result
		ok    bool
	)
	d.root().ForEach(func(key, value gjson.Result) bool {
		if key.String() == name {
			found, ok = value, true
			return false
		}
		return true
	})
	return found, ok
}

// Has reports whether name is present.
func (d Document) Has(name string) bool {
	_, ok := d.Lookup(name)
	return ok
}

// Keys returns the top-level keys in document order.
func (d Document) Keys() []string {
	var keys []string
	d.root().ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	return keys
}

// Len returns the number of top-level keys.
func (d Document) Len() int { return len(d.Keys()) }

// With returns a copy of d with name set to v.
func (d Document) With(name string, v any) (Document, error) {
	raw := d.raw
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	out, err := sjson.SetBytes(raw, escapePath(name), v)
	if err != nil {
		return d, fmt.Errorf("%w: set %s: %w", ErrInvalidDocument, name, err)
	}
	return Document{raw: out}, nil
}

// WithRaw returns a copy of d with name set to the raw JSON fragment.
func (d Document) WithRaw(name string, fragment string) (Document, error) {
	raw := d.raw
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	out, err := sjson.SetRawBytes(raw, escapePath(name), []byte(fragment))
	if err != nil {
		return d, fmt.Errorf("%w: set %s: %w", ErrInvalidDocument, name, err)
	}
	return Document{raw: out}, nil
}

// Without returns a copy of d with name removed.
func (d Document) Without(name string) Document {
	if !d.Has(name) {
		return d
	}
	out, err := sjson.DeleteBytes(d.raw, escapePath(name))
	if err != nil {
		return d
	}
	return Document{raw: out}
}

// Merge returns a copy of d with every key of other applied on top.
func (d Document) Merge(other Document) (Document, error) {
	out := d
	var err error
	other.root().ForEach(func(key, value gjson.Result) bool {
		out, err = out.WithRaw(key.String(), value.Raw)
		return err == nil
	})
	return out, err
}

// Bytes returns the JSON encoding of the document.
func (d Document) Bytes() []byte {
	if len(d.raw) == 0 {
		return []byte("{}")
	}
	out := make([]byte, len(d.raw))
	copy(out, d.raw)
	return out
}

func (d Document) String() string { return string(d.Bytes()) }

// MarshalJSON implements json.Marshaler.
func (d Document) MarshalJSON() ([]byte, error) { return d.Bytes(), nil }

// UnmarshalJSON implements json.Unmarshaler.
func (d *Document) UnmarshalJSON(b []byte) error {
	parsed, err := ParseDocument(b)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func escapePath(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', ':':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
