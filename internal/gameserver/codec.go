package gameserver

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/gridbrawl/internal/game/event"
)

// intentFromStruct decodes a gRPC message into an intent.
func intentFromStruct(msg *structpb.Struct) (event.Intent, error) {
	data, err := protojson.Marshal(msg)
	if err != nil {
		return event.Intent{}, fmt.Errorf("encoding intent struct: %w", err)
	}
	return event.DecodeIntent(data)
}

// structFromJSON wraps an encoded event for the gRPC stream.
func structFromJSON(data []byte) (*structpb.Struct, error) {
	msg := &structpb.Struct{}
	if err := protojson.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("decoding event JSON: %w", err)
	}
	return msg, nil
}

// StructFromIntent builds the wire form of an intent for gRPC clients.
func StructFromIntent(fields map[string]any) (*structpb.Struct, error) {
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("building intent struct: %w", err)
	}
	return msg, nil
}
