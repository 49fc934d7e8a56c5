package kv

import (
	"bytes"
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns values into stored bytes
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Codec names accepted by Config
const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// CodecFor returns the codec for name, JSON when unknown
func CodecFor(name string) Codec {
	if name == CodecMsgpack {
		return Msgpack{}
	}
	return JSON{}
}

// JSON stores values as JSON text, readable with any tool
type JSON struct{}

func (JSON) Name() string                       { return CodecJSON }
func (JSON) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Msgpack stores values as msgpack using the json struct tags, so domain types need one set of tags
type Msgpack struct{}

func (Msgpack) Name() string { return CodecMsgpack }

func (Msgpack) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.SetOmitEmpty(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (Msgpack) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
