package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// JSONContentType is stored with every blob written by WriteJSON.
const JSONContentType = "application/json"

// WriteJSON encodes v and stores it under key, replacing any existing blob.
func WriteJSON(ctx context.Context, s Store, key string, v any, metadata map[string]string) (Info, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return Info{}, fmt.Errorf("encode %s: %w", key, err)
	}
	if _, err := s.Delete(ctx, key); err != nil {
		return Info{}, fmt.Errorf("replace %s: %w", key, err)
	}
	return s.Put(ctx, key, bytes.NewReader(payload), PutOptions{ContentType: JSONContentType, Metadata: metadata})
}

// ReadJSON decodes the blob under key into v. It reports false without error
// when the key does not exist.
func ReadJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	_, rc, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer rc.Close()
	if err := json.NewDecoder(rc).Decode(v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}
