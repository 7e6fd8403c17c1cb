// Package store ties the loose-object store, the pack cache, and ref
// resolution together behind a single Store type, the entry point the
// rest of this module is built to serve.  Every object, whichever path
// resolves it, is handed back as a single zlib-compressed, wire-header
// framed blob -- exactly what a loose object on disk would look like --
// so callers never need to special-case where an object came from.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/golang/groupcache/lru"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/ahmetskilinc/gitbruv/blob"
	"github.com/ahmetskilinc/gitbruv/looseobject"
	"github.com/ahmetskilinc/gitbruv/object"
	"github.com/ahmetskilinc/gitbruv/packfile"
	"github.com/ahmetskilinc/gitbruv/packidx"
	"github.com/ahmetskilinc/gitbruv/refs"
	"github.com/ahmetskilinc/gitbruv/zlibcodec"
)

// defaultObjectCacheSize bounds the in-memory object cache. The cache
// holds compressed wire bytes, so even a few thousand entries cost
// little relative to the pack bytes a miss would otherwise re-fetch.
const defaultObjectCacheSize = 4096

// packCache holds one pack's bytes and its idx once loaded. A Store
// only ever keeps a single pack resident, matching the single-pack
// assumption of the store this package is adapted from.
type packCache struct {
	pack []byte
	idx  []byte
}

// Store is a Git object store backed by a blob.Adapter.  It is safe
// for concurrent use.
type Store struct {
	adapter blob.Adapter
	prefix  string
	logger  *slog.Logger
	tracer  trace.Tracer

	objMu    sync.RWMutex
	objCache *lru.Cache

	packMu    sync.RWMutex
	pack      *packCache
	packGroup singleflight.Group

	objGroup singleflight.Group
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithLogger overrides the default slog.Logger (slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithTracer overrides the default no-op tracer. Callers that wire an
// OpenTelemetry SDK/exporter pass the tracer it produces here; this
// package never configures one itself.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Store) { s.tracer = tracer }
}

// WithObjectCacheSize overrides the default object cache capacity.
func WithObjectCacheSize(n int) Option {
	return func(s *Store) { s.objCache = lru.New(n) }
}

// New returns a Store reading and writing objects under prefix in
// adapter.
func New(adapter blob.Adapter, prefix string, opts ...Option) *Store {
	s := &Store{
		adapter:  adapter,
		prefix:   prefix,
		logger:   slog.Default(),
		tracer:   otel.Tracer("github.com/ahmetskilinc/gitbruv/store"),
		objCache: lru.New(defaultObjectCacheSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetObject returns the zlib-compressed, wire-header framed
// representation of the object named by id: the loose-object wire
// format, whether the object was actually found loose or reconstructed
// from a pack.  ok is false if no object exists under id.
func (s *Store) GetObject(ctx context.Context, id object.ID) (wire []byte, ok bool, err error) {
	ctx, span := s.tracer.Start(ctx, "store.GetObject", trace.WithAttributes(
		attribute.String("git.oid", id.String()),
	))
	defer span.End()

	key := id.String()

	if data, hit := s.cacheGet(key); hit {
		s.logger.DebugContext(ctx, "object cache hit", "oid", key)
		return data, true, nil
	}

	v, err, _ := s.objGroup.Do(key, func() (interface{}, error) {
		return s.loadObject(ctx, id)
	})
	if err != nil {
		return nil, false, err
	}
	result := v.(loadResult)
	return result.wire, result.ok, nil
}

type loadResult struct {
	wire []byte
	ok   bool
}

func (s *Store) loadObject(ctx context.Context, id object.ID) (loadResult, error) {
	key := id.String()

	s.logger.DebugContext(ctx, "trying loose object", "oid", key)
	typ, payload, ok := looseobject.Get(s.adapter, s.prefix, id)
	if ok {
		wire, err := object.FrameHeader(typ, payload)
		if err != nil {
			return loadResult{}, err
		}
		compressed := zlibcodec.Compress(wire)
		s.cachePut(key, compressed)
		s.logger.DebugContext(ctx, "found loose object", "oid", key, "bytes", len(payload))
		return loadResult{compressed, true}, nil
	}

	s.logger.DebugContext(ctx, "trying pack files", "oid", key)
	typ, payload, ok = s.getFromPack(ctx, id)
	if ok {
		wire, err := object.FrameHeader(typ, payload)
		if err != nil {
			return loadResult{}, err
		}
		compressed := zlibcodec.Compress(wire)
		s.cachePut(key, compressed)
		s.logger.DebugContext(ctx, "found object in pack", "oid", key, "bytes", len(payload))
		return loadResult{compressed, true}, nil
	}

	s.logger.WarnContext(ctx, "object not found", "oid", key)
	return loadResult{}, nil
}

// PutObject stores payload under id as a loose object of type objType,
// and populates the object cache with its wire representation.
func (s *Store) PutObject(ctx context.Context, id object.ID, objType object.Type, payload []byte) error {
	_, span := s.tracer.Start(ctx, "store.PutObject", trace.WithAttributes(
		attribute.String("git.oid", id.String()),
	))
	defer span.End()

	if err := looseobject.Put(s.adapter, s.prefix, id, objType, payload); err != nil {
		return err
	}
	wire, err := object.FrameHeader(objType, payload)
	if err != nil {
		return err
	}
	s.cachePut(id.String(), zlibcodec.Compress(wire))
	return nil
}

func (s *Store) cacheGet(key string) ([]byte, bool) {
	// lru.Cache.Get moves the entry to the front of its list, so even a
	// lookup needs the exclusive lock.
	s.objMu.Lock()
	defer s.objMu.Unlock()
	v, ok := s.objCache.Get(key)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

func (s *Store) cachePut(key string, data []byte) {
	s.objMu.Lock()
	defer s.objMu.Unlock()
	s.objCache.Add(key, data)
}

// getFromPack looks id up in the resident pack, if any. A pack that
// fails to load, an oid absent from the idx, or a pack entry that
// fails to decode (a truncated header, a bad delta base, a corrupt
// delta stream) are all reported the same way: ok == false. Decode
// failures are logged at debug for diagnosis, but never surfaced as
// an error -- the pack this Store reads from is an external input,
// and a single damaged entry must not turn a lookup into a hard
// failure.
func (s *Store) getFromPack(ctx context.Context, id object.ID) (object.Type, []byte, bool) {
	pack, idx, ok, err := s.ensurePackLoaded(ctx)
	if err != nil || !ok {
		return 0, nil, false
	}
	offset, ok := packidx.FindOffset(idx, id)
	if !ok {
		return 0, nil, false
	}
	typ, payload, err := packfile.ReadEntry(pack, idx, offset)
	if err != nil {
		s.logger.DebugContext(ctx, "pack entry decode failed", "oid", id.String(), "err", err)
		return 0, nil, false
	}
	return typ, payload, true
}

// ensurePackLoaded loads the first .idx/.pack pair found under
// <prefix>/objects/pack into memory, caching it for subsequent calls.
// A Store only ever holds one pack resident at a time: multi-pack
// repositories are out of scope (spec.md's Non-goals).
func (s *Store) ensurePackLoaded(ctx context.Context) (pack, idx []byte, ok bool, err error) {
	s.packMu.RLock()
	if s.pack != nil {
		pack, idx = s.pack.pack, s.pack.idx
		s.packMu.RUnlock()
		return pack, idx, true, nil
	}
	s.packMu.RUnlock()

	v, err, _ := s.packGroup.Do("pack", func() (interface{}, error) {
		return s.loadPack(ctx)
	})
	if err != nil {
		return nil, nil, false, err
	}
	pc, ok := v.(*packCache)
	if !ok || pc == nil {
		return nil, nil, false, nil
	}
	return pc.pack, pc.idx, true, nil
}

func (s *Store) loadPack(ctx context.Context) (*packCache, error) {
	s.packMu.RLock()
	if s.pack != nil {
		pc := s.pack
		s.packMu.RUnlock()
		return pc, nil
	}
	s.packMu.RUnlock()

	packDir := fmt.Sprintf("%s/objects/pack", s.prefix)
	s.logger.DebugContext(ctx, "looking for pack files", "dir", packDir)
	files, err := s.adapter.List(packDir)
	if err != nil {
		return nil, err
	}

	for _, idxPath := range files {
		if !strings.HasSuffix(idxPath, ".idx") {
			continue
		}
		idxData, ok, err := s.adapter.Get(idxPath)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		packPath := strings.TrimSuffix(idxPath, ".idx") + ".pack"
		packData, ok, err := s.adapter.Get(packPath)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		s.logger.InfoContext(ctx, "loaded pack file", "idx", idxPath, "idx_bytes", len(idxData), "pack_bytes", len(packData))

		pc := &packCache{pack: packData, idx: idxData}
		s.packMu.Lock()
		s.pack = pc
		s.packMu.Unlock()
		return pc, nil
	}

	s.logger.DebugContext(ctx, "no pack files found")
	return nil, nil
}

// ResolveRef resolves name (e.g. "HEAD" or "refs/heads/main") to an
// object id, following symbolic and packed-refs indirection. The
// only errors it returns are refs.ErrNotExist and refs.ErrMaxDepth:
// a transport error or a corrupt ref body reading one source is
// treated as that source having nothing, and resolution falls
// through to the next one.
func (s *Store) ResolveRef(ctx context.Context, name string) (object.ID, error) {
	_, span := s.tracer.Start(ctx, "store.ResolveRef", trace.WithAttributes(
		attribute.String("git.ref", name),
	))
	defer span.End()
	return refs.Resolve(s.adapter, s.prefix, name)
}

// ListRefs returns every ref under prefixFilter (e.g. "refs/heads/"),
// merging loose and packed sources with loose refs taking precedence.
// A source that fails to read (a transport error, a corrupt
// packed-refs file) simply contributes nothing; listing has no
// absence case of its own, only an error-free result of whatever
// size it manages to assemble.
func (s *Store) ListRefs(ctx context.Context, prefixFilter string) map[string]string {
	_, span := s.tracer.Start(ctx, "store.ListRefs", trace.WithAttributes(
		attribute.String("git.ref_prefix", prefixFilter),
	))
	defer span.End()
	return refs.List(s.adapter, s.prefix, prefixFilter)
}
