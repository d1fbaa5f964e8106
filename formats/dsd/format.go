package dsd

import (
	"errors"
	"fmt"
	"strings"
)

// Errors.
var (
	ErrIncompatibleFormat = errors.New("dsd: format is incompatible with operation")
	ErrNoMoreSpace        = errors.New("dsd: no more space left after reading dsd type")
	ErrUnknownFormat      = errors.New("dsd: format is unknown")
)

// SerializationFormat is the format byte that prefixes every dumped value.
type SerializationFormat uint8

// Serialization formats.
const (
	AUTO    SerializationFormat = 0
	CBOR    SerializationFormat = 67 // C
	JSON    SerializationFormat = 74 // J
	MsgPack SerializationFormat = 77 // M
)

// DefaultSerializationFormat is used when AUTO is requested.
var DefaultSerializationFormat = JSON

// ValidateSerializationFormat validates if the format is for serialization,
// and returns the validated format as well as the result of the validation.
// If called on the AUTO format, it returns the default serialization format.
func (format SerializationFormat) ValidateSerializationFormat() (validated SerializationFormat, ok bool) {
	switch format {
	case AUTO:
		return DefaultSerializationFormat, true
	case CBOR, JSON, MsgPack:
		return format, true
	default:
		return 0, false
	}
}

// String returns the lower case name of the format.
func (format SerializationFormat) String() string {
	switch format {
	case AUTO:
		return "auto"
	case CBOR:
		return "cbor"
	case JSON:
		return "json"
	case MsgPack:
		return "msgpack"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(format))
	}
}

// ParseFormat returns the format with the given name. An empty name selects
// the default format.
func ParseFormat(name string) (SerializationFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return DefaultSerializationFormat, nil
	case "cbor":
		return CBOR, nil
	case "json":
		return JSON, nil
	case "msgpack", "msgp":
		return MsgPack, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}
