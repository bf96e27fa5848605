// Package redis implements the vector index on Redis 8+ via rueidis: notes
// live in hashes, nearest-neighbor search runs through FT.SEARCH over an
// HNSW index with cosine distance. The same store doubles as the key-value
// backend for the embedding cache.
package redis

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/cortexnotes/cortex/internal/domain"
	"github.com/cortexnotes/cortex/internal/index"
	"github.com/cortexnotes/cortex/internal/metrics"
)

// Compile-time check: Store implements index.Index.
var _ index.Index = (*Store)(nil)

// Config holds connection and index settings.
type Config struct {
	Addrs           []string
	Password        string
	KeyPrefix       string // e.g. "cortex:"
	Dimensions      int
	HNSWM           int
	HNSWEFConstruct int
}

// Store is a Redis-backed vector index.
type Store struct {
	client    rueidis.Client
	keyPrefix string
	indexName string
	dims      int
	hnswM     int
	hnswEF    int
}

// New creates a Redis store via rueidis.
func New(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", cfg.Dimensions)
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Password:     cfg.Password,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "cortex:"
	}

	return &Store{
		client:    client,
		keyPrefix: prefix,
		indexName: strings.TrimSuffix(strings.ReplaceAll(prefix, ":", "_"), "_") + "_notes",
		dims:      cfg.Dimensions,
		hnswM:     cfg.HNSWM,
		hnswEF:    cfg.HNSWEFConstruct,
	}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for redis: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// EnsureIndex creates the FT index when absent.
func (s *Store) EnsureIndex(ctx context.Context) error {
	vectorAttrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(s.dims),
		"DISTANCE_METRIC", "COSINE",
	}
	if s.hnswM > 0 {
		vectorAttrs = append(vectorAttrs, "M", strconv.Itoa(s.hnswM))
	}
	if s.hnswEF > 0 {
		vectorAttrs = append(vectorAttrs, "EF_CONSTRUCTION", strconv.Itoa(s.hnswEF))
	}

	args := []string{
		s.indexName, "ON", "HASH",
		"PREFIX", "1", s.noteKey(""),
		"SCHEMA",
		"meta_tags", "TAG", "SEPARATOR", ",",
		"vector", "VECTOR", "HNSW", strconv.Itoa(len(vectorAttrs)),
	}
	args = append(args, vectorAttrs...)

	cmd := s.client.B().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return nil
		}
		return fmt.Errorf("create index: %v: %w", err, domain.ErrStorageFailure)
	}
	return nil
}

// Dimensions implements index.Index.
func (s *Store) Dimensions() int { return s.dims }

// Store writes the note hash. The write is durable once Redis acknowledges
// it, subject to the server's configured persistence.
func (s *Store) Store(ctx context.Context, note domain.Note, vector domain.EmbeddingVector, replace bool) error {
	if len(vector.Dims) != s.dims {
		return domain.NewDimensionMismatch(len(vector.Dims), s.dims)
	}

	key := s.noteKey(note.ID)

	if !replace {
		exists, err := s.exists(ctx, key)
		if err != nil {
			return fmt.Errorf("check note %q: %v: %w", note.ID, err, domain.ErrStorageFailure)
		}
		if exists {
			metrics.IndexDocumentsTotal.WithLabelValues("store", "rejected").Inc()
			return fmt.Errorf("note %q: %w", note.ID, domain.ErrDuplicateID)
		}
	}

	metaJSON, err := json.Marshal(note.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	fields := map[string]string{
		"text":       note.Text,
		"meta":       string(metaJSON),
		"meta_tags":  metaTags(note.Metadata),
		"created_at": note.CreatedAt.UTC().Format(time.RFC3339Nano),
		"model":      vector.ModelName,
		"vector":     vectorToBytes(vector.Dims),
	}

	cmd := s.client.B().Hset().Key(key).FieldValue()
	for k, v := range fields {
		cmd = cmd.FieldValue(k, v)
	}
	if err := s.client.Do(ctx, cmd.Build()).Error(); err != nil {
		metrics.IndexDocumentsTotal.WithLabelValues("store", "error").Inc()
		return fmt.Errorf("store note %q: %v: %w", note.ID, err, domain.ErrStorageFailure)
	}

	metrics.IndexDocumentsTotal.WithLabelValues("store", "success").Inc()
	return nil
}

// Search runs a KNN query via FT.SEARCH with optional metadata tag filters.
func (s *Store) Search(ctx context.Context, vector []float32, k int, filters map[string]string) ([]index.Hit, error) {
	if len(vector) != s.dims {
		return nil, domain.NewDimensionMismatch(len(vector), s.dims)
	}
	if k <= 0 {
		return []index.Hit{}, nil
	}

	knnPart := fmt.Sprintf("[KNN %d @vector $BLOB]", k)
	queryStr := "*=>" + knnPart
	if f := buildTagFilter(filters); f != "" {
		queryStr = fmt.Sprintf("(%s)=>%s", f, knnPart)
	}

	args := []string{
		s.indexName, queryStr,
		"RETURN", "5", "text", "meta", "created_at", "model", "__vector_score",
		"SORTBY", "__vector_score",
		"LIMIT", "0", strconv.Itoa(k),
		"PARAMS", "2", "BLOB", vectorToBytes(vector),
		"DIALECT", "2",
	}

	cmd := s.client.B().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return nil, fmt.Errorf("search knn: %v: %w", err, domain.ErrStorageFailure)
	}

	return s.parseSearchResult(raw)
}

// Count returns the number of indexed notes via FT.SEARCH with LIMIT 0 0.
func (s *Store) Count(ctx context.Context) (int, error) {
	cmd := s.client.B().Arbitrary("FT.SEARCH").Args(s.indexName, "*", "LIMIT", "0", "0").Build()
	raw, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return 0, fmt.Errorf("count notes: %v: %w", err, domain.ErrStorageFailure)
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return int(total), nil
}

// Close shuts down the client.
func (s *Store) Close() error {
	s.client.Close()
	return nil
}

// Get retrieves a cached value; a missing key yields (nil, nil).
// Used by the embedding cache.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.client.B().Get().Key(key).Build()
	data, err := s.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return data, nil
}

// Set stores a value at the given key. Used by the embedding cache.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	cmd := s.client.B().Set().Key(key).Value(rueidis.BinaryString(value)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (s *Store) noteKey(id string) string {
	return s.keyPrefix + "note:" + id
}

func (s *Store) exists(ctx context.Context, key string) (bool, error) {
	cmd := s.client.B().Exists().Key(key).Build()
	n, err := s.client.Do(ctx, cmd).AsInt64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// parseSearchResult decodes the RESP2 FT.SEARCH reply.
// 2-stride: [total, key1, fields1, key2, fields2, ...]
func (s *Store) parseSearchResult(raw []rueidis.RedisMessage) ([]index.Hit, error) {
	if len(raw) == 0 {
		return []index.Hit{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return []index.Hit{}, nil
	}

	hits := make([]index.Hit, 0, total)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fieldArr, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		fields := parseFieldPairs(fieldArr)

		hit := index.Hit{
			Note: domain.Note{
				ID:   strings.TrimPrefix(key, s.noteKey("")),
				Text: fields["text"],
			},
		}
		if meta := fields["meta"]; meta != "" && meta != "null" {
			_ = json.Unmarshal([]byte(meta), &hit.Note.Metadata)
		}
		if ts := fields["created_at"]; ts != "" {
			if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				hit.Note.CreatedAt = parsed
			}
		}
		if scoreStr, ok := fields["__vector_score"]; ok {
			if dist, err := strconv.ParseFloat(scoreStr, 64); err == nil {
				hit.Score = max(0, 1.0-dist) // cosine distance → similarity, clamped to [0,1]
			}
		}

		hits = append(hits, hit)
	}

	// FT.SEARCH sorts by distance ascending; keep descending similarity.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	return hits, nil
}

func parseFieldPairs(arr []rueidis.RedisMessage) map[string]string {
	fields := make(map[string]string, len(arr)/2)
	for i := 0; i+1 < len(arr); i += 2 {
		k, err := arr[i].ToString()
		if err != nil {
			continue
		}
		v, err := arr[i+1].ToString()
		if err != nil {
			continue
		}
		fields[k] = v
	}
	return fields
}

// metaTags flattens metadata into a sorted comma-separated k=v tag field.
func metaTags(metadata map[string]string) string {
	if len(metadata) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(metadata))
	for k, v := range metadata {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

// buildTagFilter builds an AND of @meta_tags conditions for the query.
func buildTagFilter(filters map[string]string) string {
	if len(filters) == 0 {
		return ""
	}
	conds := make([]string, 0, len(filters))
	for k, v := range filters {
		conds = append(conds, fmt.Sprintf("@meta_tags:{%s}", escapeTag(k+"="+v)))
	}
	sort.Strings(conds)
	return strings.Join(conds, " ")
}

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)

func escapeTag(s string) string {
	return tagEscaper.Replace(s)
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// isRedisErr checks if err is a Redis server error containing substr (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}
