// Package session holds the per-request SessionContext (spec.md §6) and the
// two-level memoization cache spec.md §5 requires: manifest content hash →
// AnalyzedManifest, and (manifest hash, session properties, mode) → the
// derived index a planning operation needs (here, a descriptor.Builder,
// which itself owns the per-manifest lineage.Analyzer). Both levels are
// bounded LRUs from hashicorp/golang-lru/v2, which does its own internal
// locking — callers never see a lock, matching spec.md §5's "the memoization
// container is thread-safe... callers never see a lock."
package session

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/leapstack-labs/semlayer/internal/manifest"
	"github.com/leapstack-labs/semlayer/internal/semantic/descriptor"
)

// Context is SessionContext (spec.md §6): the session-scoped values a single
// planning operation runs under.
type Context struct {
	Catalog             string
	Schema              string
	EnableDynamicFields bool
}

// Mode distinguishes the external operations spec.md §6 exposes over the
// same manifest and session, since dry_plan's modeling_only flag changes
// what a cached derived index would need to skip.
type Mode string

const (
	ModePlan      Mode = "plan"
	ModeDryRun    Mode = "dry_run"
	ModeDryPlan   Mode = "dry_plan"
	ModeValidate  Mode = "validate"
	ModeModelOnly Mode = "dry_plan_modeling_only"
)

const (
	defaultManifestCapacity = 32
	defaultIndexCapacity    = 128
)

// Cache is the two-level memoization container. The zero value is not
// usable; construct with NewCache.
type Cache struct {
	manifests *lru.Cache[string, *manifest.AnalyzedManifest]
	builders  *lru.Cache[string, *descriptor.Builder]
}

// Option configures a Cache.
type Option func(*cacheConfig)

type cacheConfig struct {
	manifestCapacity int
	indexCapacity    int
}

// WithManifestCapacity bounds the manifest-hash → AnalyzedManifest level.
func WithManifestCapacity(n int) Option {
	return func(c *cacheConfig) { c.manifestCapacity = n }
}

// WithIndexCapacity bounds the (manifest, session, mode) → derived-index
// level.
func WithIndexCapacity(n int) Option {
	return func(c *cacheConfig) { c.indexCapacity = n }
}

// NewCache constructs a Cache with bounded LRU eviction at both levels.
func NewCache(opts ...Option) (*Cache, error) {
	cfg := cacheConfig{manifestCapacity: defaultManifestCapacity, indexCapacity: defaultIndexCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}

	manifests, err := lru.New[string, *manifest.AnalyzedManifest](cfg.manifestCapacity)
	if err != nil {
		return nil, fmt.Errorf("session: manifest cache: %w", err)
	}
	builders, err := lru.New[string, *descriptor.Builder](cfg.indexCapacity)
	if err != nil {
		return nil, fmt.Errorf("session: index cache: %w", err)
	}
	return &Cache{manifests: manifests, builders: builders}, nil
}

// AnalyzedManifest loads and analyzes the manifest read from r, memoized by
// the manifest's structural content hash. A cache hit skips both the JSON
// decode and manifest.Analyze. Returns the manifest hash alongside the
// result so callers can key a derived-index lookup off it without
// re-hashing.
func (c *Cache) AnalyzedManifest(r io.Reader) (*manifest.AnalyzedManifest, string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("session: reading manifest: %w", err)
	}

	m, err := manifest.Load(bytes.NewReader(raw))
	if err != nil {
		return nil, "", err
	}

	hash, err := hashManifest(m)
	if err != nil {
		return nil, "", err
	}

	if am, ok := c.manifests.Get(hash); ok {
		return am, hash, nil
	}

	am, err := manifest.Analyze(m)
	if err != nil {
		return nil, "", err
	}
	c.manifests.Add(hash, am)
	return am, hash, nil
}

// Builder returns the descriptor.Builder for (manifestHash, sess, mode),
// building and caching it on first use. The returned Builder is safe to
// share across concurrent Plan calls: its embedded lineage.Analyzer guards
// its expression cache internally.
func (c *Cache) Builder(am *manifest.AnalyzedManifest, manifestHash string, sess Context, mode Mode) *descriptor.Builder {
	key := indexKey(manifestHash, sess, mode)
	if b, ok := c.builders.Get(key); ok {
		return b
	}
	b := descriptor.NewBuilder(am, sess.EnableDynamicFields, sess.Catalog, sess.Schema)
	c.builders.Add(key, b)
	return b
}

// hashManifest re-marshals m to canonical JSON (Go struct field order is
// fixed by declaration, so this is stable regardless of the original wire
// text's whitespace or key order) and returns its hex SHA-256 digest.
func hashManifest(m *manifest.Manifest) (string, error) {
	canonical, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("session: canonicalizing manifest: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// indexKey hashes the second-level cache key: manifest hash plus every
// session property and the mode, so two sessions differing only in
// enable_dynamic_fields or dialect mode never collide.
func indexKey(manifestHash string, sess Context, mode Mode) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%t|%s", manifestHash, sess.Catalog, sess.Schema, sess.EnableDynamicFields, mode)
	return hex.EncodeToString(h.Sum(nil))
}
