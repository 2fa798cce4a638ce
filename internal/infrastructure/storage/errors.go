package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"RSSDigest/internal/domain"
	"RSSDigest/internal/ports"
)

var (
	// ErrNotFound is returned by Rename when the source checkpoint is absent.
	ErrNotFound = errors.New("checkpoint not found")
	// ErrCorrupt marks a checkpoint whose payload cannot be decoded. Not retryable.
	ErrCorrupt = errors.New("checkpoint corrupt")
)

// Key derives the storage key for a checkpoint: {prefix}_{name}.
func Key(prefix string, name ports.Checkpoint) string {
	return prefix + "_" + string(name)
}

func encodeItems(items []domain.Item) ([]byte, error) {
	if items == nil {
		items = []domain.Item{}
	}
	data, err := json.MarshalIndent(items, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("marshal items: %w", err)
	}
	return data, nil
}

func decodeItems(key string, data []byte) ([]domain.Item, error) {
	var items []domain.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	if items == nil {
		items = []domain.Item{}
	}
	return items, nil
}
