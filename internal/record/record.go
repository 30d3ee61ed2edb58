// Package record implements the self-delimiting textual record codec: every
// mutation appended to a log file is one JSON object, either
// {"Set":{"key":...,"value":...}} or {"Remove":{"key":...}}, with no
// external length prefix — the JSON decoder itself reports where one
// record ends and the next begins.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"kvengine/internal/errs"
)

// Kind distinguishes the two record variants.
type Kind int

const (
	// KindSet marks a record that stores a key-value pair.
	KindSet Kind = iota
	// KindRemove marks a tombstone for a key.
	KindRemove
)

// Record is a single decoded mutation. Exactly one of the Set/Remove shapes
// is meaningful, selected by Kind.
type Record struct {
	Kind  Kind
	Key   string
	Value string // only meaningful when Kind == KindSet
}

// wireSet and wireRemove are the on-disk shapes of the two variants.
type wireSet struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type wireRemove struct {
	Key string `json:"key"`
}

// wireEnvelope is the tagged union on the wire: exactly one of Set/Remove
// is present per record.
type wireEnvelope struct {
	Set    *wireSet    `json:"Set,omitempty"`
	Remove *wireRemove `json:"Remove,omitempty"`
}

// EncodeSet renders a Set{key, value} record as its on-disk bytes.
func EncodeSet(key, value string) ([]byte, error) {
	return encode(wireEnvelope{Set: &wireSet{Key: key, Value: value}})
}

// EncodeRemove renders a Remove{key} record as its on-disk bytes.
func EncodeRemove(key string) ([]byte, error) {
	return encode(wireEnvelope{Remove: &wireRemove{Key: key}})
}

func encode(env wireEnvelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, errs.CodecErr("encode", err)
	}
	return data, nil
}

// Decoder reads a sequence of concatenated records from an underlying
// stream, one at a time. A single encoding/json.Decoder must be reused
// across calls because it buffers ahead of the logical record boundary;
// discarding it after one value and opening a fresh one on the same
// io.Reader would silently drop whatever it had already buffered past
// that boundary. Decoder exists precisely to avoid that mistake.
type Decoder struct {
	dec  *json.Decoder
	prev int64
}

// NewDecoder wraps r for sequential record-at-a-time decoding, starting at
// whatever position r is currently at.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: json.NewDecoder(r)}
}

// Next decodes the next record and returns it along with the exact number
// of bytes it occupied in the stream. Returns io.EOF when the stream is
// exhausted at a record boundary; any other error (including a stream
// that ends mid-record) is a Codec error.
func (d *Decoder) Next() (Record, int64, error) {
	var env wireEnvelope
	if err := d.dec.Decode(&env); err != nil {
		if err == io.EOF {
			return Record{}, 0, io.EOF
		}
		return Record{}, 0, errs.CodecErr("decode", err)
	}

	offset := d.dec.InputOffset()
	length := offset - d.prev
	d.prev = offset

	rec, err := fromEnvelope(env)
	if err != nil {
		return Record{}, 0, err
	}
	return rec, length, nil
}

// Decode reads exactly one JSON record from r starting at its current
// position and returns the decoded Record together with the number of
// bytes consumed. It is a convenience wrapper around Decoder for callers
// that only need a single record from a reader they won't reuse
// afterwards (e.g. a byte slice already sized to one record).
func Decode(r io.Reader) (Record, int64, error) {
	return NewDecoder(r).Next()
}

// DecodeExact decodes exactly one record from a byte slice that is known to
// contain precisely that record's bytes (the shape produced by a reader
// that seeks to a locator's offset and reads its length). It fails if
// trailing bytes remain after the one JSON value, since a locator's length
// must match the record's encoded length exactly.
func DecodeExact(data []byte) (Record, error) {
	rec, consumed, err := Decode(bytes.NewReader(data))
	if err != nil {
		return Record{}, err
	}
	if int(consumed) != len(data) {
		return Record{}, errs.CodecErr("decode", fmt.Errorf(
			"record consumed %d of %d bytes: trailing garbage", consumed, len(data)))
	}
	return rec, nil
}

func fromEnvelope(env wireEnvelope) (Record, error) {
	switch {
	case env.Set != nil && env.Remove == nil:
		return Record{Kind: KindSet, Key: env.Set.Key, Value: env.Set.Value}, nil
	case env.Remove != nil && env.Set == nil:
		return Record{Kind: KindRemove, Key: env.Remove.Key}, nil
	default:
		return Record{}, errs.CodecErr("decode", fmt.Errorf("record must tag exactly one of Set/Remove"))
	}
}
