package orm

import (
	"fmt"

	gojson "github.com/goccy/go-json"
)

// Encoder is a keyed output container. Properties write themselves into it.
type Encoder interface {
	Encode(key string, v any) error
	// Nested returns a child container stored under key.
	Nested(key string) Encoder
}

// Decoder is a keyed input container with one sub-decoder per key.
type Decoder interface {
	Contains(key string) bool
	Decode(key string, v any) error
	Nested(key string) (Decoder, error)
}

// Document is an in-memory Encoder. Nested containers are Documents too, so
// the result can be handed to any JSON encoder as is.
type Document map[string]any

func (d Document) Encode(key string, v any) error {
	d[key] = v
	return nil
}

func (d Document) Nested(key string) Encoder {
	sub := Document{}
	d[key] = sub
	return sub
}

var _ Encoder = Document(nil)

type jsonDecoder map[string]gojson.RawMessage

// NewJSONDecoder returns a Decoder over a JSON object.
func NewJSONDecoder(data []byte) (Decoder, error) {
	var m map[string]gojson.RawMessage
	if err := gojson.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("orm: decode document: %w", err)
	}
	return jsonDecoder(m), nil
}

func (d jsonDecoder) Contains(key string) bool {
	_, ok := d[key]
	return ok
}

func (d jsonDecoder) Decode(key string, v any) error {
	raw, ok := d[key]
	if !ok {
		return fmt.Errorf("orm: key %q not in document", key)
	}
	if err := gojson.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("orm: decode %q: %w", key, err)
	}
	return nil
}

func (d jsonDecoder) Nested(key string) (Decoder, error) {
	raw, ok := d[key]
	if !ok {
		return nil, fmt.Errorf("orm: key %q not in document", key)
	}
	return NewJSONDecoder(raw)
}

// Encode writes every property of t into a new Document.
func Encode[T any](t *T) (Document, error) {
	doc := Document{}
	if err := encodeInto(TableOf[T](), doc, t); err != nil {
		return nil, err
	}
	return doc, nil
}

// EncodeJSON encodes t and serialises the result as JSON.
func EncodeJSON[T any](t *T) ([]byte, error) {
	doc, err := Encode(t)
	if err != nil {
		return nil, err
	}
	return gojson.Marshal(doc) //nolint:wrapcheck // pass through
}

// DecodeJSON builds a new record of type T from a JSON object. Relations only
// restore their foreign key; nested eager-loaded objects are not decoded.
func DecodeJSON[T any](data []byte) (*T, error) {
	dec, err := NewJSONDecoder(data)
	if err != nil {
		return nil, err
	}
	tbl := TableOf[T]()
	t := tbl.New()
	for _, p := range tbl.Properties(t) {
		if err := p.Property.Decode(dec); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func encodeInto[T any](tbl *Table[T], enc Encoder, t *T) error {
	for _, p := range tbl.Properties(t) {
		if err := p.Property.Encode(enc); err != nil {
			return fmt.Errorf("orm: encode %s.%s: %w", tbl.Name(), p.Name, err)
		}
	}
	return nil
}
