package dsd

// dynamic structured data
// check here for some benchmarks: https://github.com/alecthomas/go_serialization_benchmarks

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

var cborGenericDecoder cbor.DecMode

func init() {
	var err error
	cborGenericDecoder, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]interface{}{}),
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Dump stores the interface as a dsd formatted data structure.
func Dump(t interface{}, format SerializationFormat) ([]byte, error) {
	format, ok := format.ValidateSerializationFormat()
	if !ok {
		return nil, ErrIncompatibleFormat
	}

	data, err := DumpWithoutIdentifier(t, format)
	if err != nil {
		return nil, err
	}

	return append([]byte{byte(format)}, data...), nil
}

// DumpWithoutIdentifier stores the interface as a data structure, without a
// format identifier.
func DumpWithoutIdentifier(t interface{}, format SerializationFormat) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case JSON:
		data, err = json.Marshal(t)
	case CBOR:
		data, err = cbor.Marshal(t)
	case MsgPack:
		data, err = msgpack.Marshal(t)
	default:
		return nil, fmt.Errorf("dsd: tried to dump with unknown format %d", format)
	}
	if err != nil {
		return nil, fmt.Errorf("dsd: failed to dump %s: %w", format, err)
	}
	return data, nil
}

// Load loads a dsd structured data blob into the given interface and returns
// the format it was stored in.
func Load(data []byte, t interface{}) (SerializationFormat, error) {
	format, payload, err := Payload(data)
	if err != nil {
		return 0, err
	}
	return format, LoadAsFormat(payload, format, t)
}

// LoadAsFormat loads a data blob into the interface using the specified format.
func LoadAsFormat(data []byte, format SerializationFormat, t interface{}) error {
	var err error
	switch format {
	case JSON:
		err = json.Unmarshal(data, t)
	case CBOR:
		err = cbor.Unmarshal(data, t)
	case MsgPack:
		err = msgpack.Unmarshal(data, t)
	default:
		return fmt.Errorf("dsd: tried to load unknown format %d", format)
	}
	if err != nil {
		return fmt.Errorf("dsd: failed to load %s: %w", format, err)
	}
	return nil
}

// Payload splits a dsd blob into its format and payload.
func Payload(data []byte) (SerializationFormat, []byte, error) {
	if len(data) < 2 {
		return 0, nil, ErrNoMoreSpace
	}
	format := SerializationFormat(data[0])
	if _, ok := format.ValidateSerializationFormat(); !ok || format == AUTO {
		return 0, nil, fmt.Errorf("%w: %d", ErrUnknownFormat, data[0])
	}
	return format, data[1:], nil
}

// ToJSON converts a dsd blob of any format into plain JSON.
func ToJSON(data []byte) ([]byte, error) {
	format, payload, err := Payload(data)
	if err != nil {
		return nil, err
	}

	var generic interface{}
	switch format {
	case JSON:
		return payload, nil
	case CBOR:
		err = cborGenericDecoder.Unmarshal(payload, &generic)
	case MsgPack:
		err = msgpack.Unmarshal(payload, &generic)
	}
	if err != nil {
		return nil, fmt.Errorf("dsd: failed to load %s: %w", format, err)
	}
	return json.Marshal(generic)
}
