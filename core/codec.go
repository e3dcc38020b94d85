package core

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/go-crypt/x/blake2b"
)

// MarshalPage encodes a page in its externally tagged form, a JSON object
// with a single key naming the variant:
//
//	{"Summer2025": {"url": "...", ...}}
func MarshalPage(p Page) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: page is nil", ErrInvalidPage)
	}
	return json.Marshal(map[Kind]Page{p.Kind(): p})
}

// UnmarshalPage decodes a page from its externally tagged form.
// Returns ErrMalformed if the payload is not JSON, does not carry exactly one
// variant tag, or names an unknown variant.
func UnmarshalPage(data []byte) (Page, error) {
	var tagged map[Kind]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if len(tagged) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one variant tag, got %d", ErrMalformed, len(tagged))
	}

	var kind Kind
	var body json.RawMessage
	for k, v := range tagged {
		kind, body = k, v
	}

	var page Page
	switch kind {
	case KindSummer2025:
		page = &Summer2025Page{}
	case KindJourney2025:
		page = &Journey2025Page{}
	default:
		return nil, fmt.Errorf("%w: unknown variant %q", ErrMalformed, kind)
	}
	if err := json.Unmarshal(body, page); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, kind, err)
	}
	return page, nil
}

// Envelope carries a Page through encoding/json in its tagged form.
type Envelope struct {
	Page Page
}

// MarshalJSON implements json.Marshaler.
func (e Envelope) MarshalJSON() ([]byte, error) {
	return MarshalPage(e.Page)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	page, err := UnmarshalPage(data)
	if err != nil {
		return err
	}
	e.Page = page
	return nil
}

// Fingerprint is a content hash of a page. Two pages with the same variant
// and identical fields have the same fingerprint.
type Fingerprint uint64

// FingerprintOf hashes the tagged JSON form of a page with BLAKE2b.
func FingerprintOf(p Page) Fingerprint {
	data, err := MarshalPage(p)
	if err != nil {
		return 0
	}
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write(data)
	return Fingerprint(binary.LittleEndian.Uint64(h.Sum(nil)))
}
