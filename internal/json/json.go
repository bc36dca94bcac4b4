// Package json aliases the goccy codec so every package in the project
// encodes through the same implementation.
package json

import (
	"io"

	"github.com/goccy/go-json"
)

type Decoder = json.Decoder
type Encoder = json.Encoder
type Marshaler = json.Marshaler
type Unmarshaler = json.Unmarshaler
type RawMessage = json.RawMessage
type Number = json.Number

func Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return json.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func NewDecoder(r io.Reader) *Decoder {
	return json.NewDecoder(r)
}

func NewEncoder(w io.Writer) *Encoder {
	return json.NewEncoder(w)
}
