package redis

import "github.com/redis/rueidis"

// NewStoreForTest creates a Store with the provided rueidis client (test-only).
func NewStoreForTest(c rueidis.Client, keyPrefix string, dims int) *Store {
	return &Store{
		client:    c,
		keyPrefix: keyPrefix,
		indexName: "cortex_notes",
		dims:      dims,
	}
}
