package grpc

import (
	"encoding/json"

	"boxrental-backend/internal/domain"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Messages travel as google.protobuf.Struct with the same field names as the
// REST surface, so one JSON shape serves both transports.

func decode(in *structpb.Struct, v any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	b, err := protojson.Marshal(in)
	if err != nil {
		return domain.InvalidInput("malformed request: %v", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return domain.InvalidInput("malformed request: %v", err)
	}
	return nil
}

func encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

// encodeField wraps v under key so list results still form an object.
func encodeField(key string, v any) (*structpb.Struct, error) {
	return encode(map[string]any{key: v})
}
