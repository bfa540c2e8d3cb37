// Package connectjson lets Connect carry the search messages as plain JSON
// structs instead of protobuf.
package connectjson

import (
	"encoding/json"
	"fmt"

	"github.com/bufbuild/connect-go"
)

// Name is the codec name negotiated in the Content-Type, e.g. application/connect+json.
const Name = "json"

// Codec encodes and decodes rpc.SearchRequest and rpc.StreamFrame.
type Codec struct{}

var _ connect.Codec = Codec{}

func (Codec) Name() string {
	return Name
}

func (Codec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("connectjson: marshal %T: %w", v, err)
	}
	return data, nil
}

// Unmarshal leaves v at its zero value for an empty message.
func (Codec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("connectjson: unmarshal %T: %w", v, err)
	}
	return nil
}
