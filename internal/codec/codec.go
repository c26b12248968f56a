// Package codec centralizes payload encoding for the index store.
//
// Codec selection is a breaking-change boundary: bytes written by one codec
// must be read back with the same codec.
package codec

// Codec encodes/decodes values. Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is the codec used for document payloads.
var Default Codec = Zstd{Inner: JSON{}}
