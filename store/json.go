package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// SaveJSON encodes v and writes it under key. A failed write is retried once
// before the error is returned.
func SaveJSON(ctx context.Context, kv KV, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", key, err)
	}

	err = kv.Put(ctx, key, data)
	if err == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("store: put %s: %w", key, err)
	}
	if retryErr := kv.Put(ctx, key, data); retryErr != nil {
		return fmt.Errorf("store: put %s (after retry): %w", key, retryErr)
	}
	return nil
}

// LoadJSON reads key and decodes it into v. It returns ErrNotFound unchanged
// so callers can tell "absent" from "malformed".
func LoadJSON(ctx context.Context, kv KV, key string, v any) error {
	data, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("store: decode %s: %w", key, err)
	}
	return nil
}
