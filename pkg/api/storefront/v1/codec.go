// Package storefrontv1 declares the storefront gRPC API. Messages are plain
// Go structs carried by a JSON codec registered under the "json" content
// subtype. Protobuf messages sent over the same connection, such as the
// standard health check, are encoded with protojson.
package storefrontv1

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// CodecName is the content subtype used by clients and servers of this API.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

var unmarshalProto = protojson.UnmarshalOptions{DiscardUnknown: true}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if m, ok := v.(proto.Message); ok {
		data, err = protojson.Marshal(m)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return nil, fmt.Errorf("json codec marshal %T: %w", v, err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	var err error
	if m, ok := v.(proto.Message); ok {
		err = unmarshalProto.Unmarshal(data, m)
	} else {
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		return fmt.Errorf("json codec unmarshal %T: %w", v, err)
	}
	return nil
}

func (jsonCodec) Name() string {
	return CodecName
}
