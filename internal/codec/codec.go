// Package codec provides the serialization formats used for broker
// messages. The format is a configuration input; both codecs encode
// the same message structure.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Format names accepted by the configuration surface.
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// Codec encodes and decodes broker message payloads.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// New returns the codec for the given format name.
func New(format string) (Codec, error) {
	switch format {
	case FormatJSON:
		return JSONCodec{}, nil
	case FormatMsgpack:
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown serialization format %q", format)
	}
}

// JSONCodec encodes messages as JSON.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSONCodec) Name() string                       { return FormatJSON }

// MsgpackCodec encodes messages as MessagePack.
type MsgpackCodec struct{}

func (MsgpackCodec) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (MsgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }
func (MsgpackCodec) Name() string                       { return FormatMsgpack }
