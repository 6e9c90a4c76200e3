package vectorstore

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// toStruct converts metadata into the protobuf struct Pinecone stores.
// String slices are widened since structpb only accepts []any lists.
func toStruct(metadata map[string]any) (*structpb.Struct, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	widened := make(map[string]any, len(metadata))
	for k, v := range metadata {
		switch typed := v.(type) {
		case []string:
			list := make([]any, len(typed))
			for i, s := range typed {
				list[i] = s
			}
			widened[k] = list
		default:
			widened[k] = v
		}
	}
	s, err := structpb.NewStruct(widened)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: encode metadata: %w", err)
	}
	return s, nil
}

func fromStruct(s *structpb.Struct) map[string]any {
	if s == nil {
		return map[string]any{}
	}
	return s.AsMap()
}

// normalizeMetadata gives in-memory entries the same shapes Pinecone hands
// back: numbers as float64 and lists as []any.
func normalizeMetadata(metadata map[string]any) (map[string]any, error) {
	s, err := toStruct(metadata)
	if err != nil {
		return nil, err
	}
	return fromStruct(s), nil
}
