// Package persistence implements the persistence service: it loads entities from a back-end,
// keeps the locally owned ones in a live cache and writes back the entities a request made
// dirty once the request ends.
//
// The live cache has no eviction; an entity stays cached until it is deleted or the service
// is re-initialized.
package persistence

import (
	"context"
	"fmt"
	log "log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sharedcode/livepers"
	"github.com/sharedcode/livepers/location"
	"github.com/sharedcode/livepers/metrics"
	"github.com/sharedcode/livepers/objref"
	"github.com/sharedcode/livepers/writeback"
)

// DefaultFlushConcurrency caps the in-flight back-end operations of one flush.
const DefaultFlushConcurrency = 8

// Options configures a Service. Zero values select the defaults.
type Options struct {
	// References defaults to an objref.Resolver resolving through the service itself.
	References livepers.ReferenceResolver
	// Locator defaults to location.Static{Local: true}.
	Locator livepers.LocationResolver
	// Wrapper defaults to writeback.Wrapper.
	Wrapper          livepers.WriteBackWrapper
	Metrics          Metrics
	OnEvent          EventHandler
	FlushConcurrency int
}

// Service is the persistence service.
type Service struct {
	refs             livepers.ReferenceResolver
	locator          livepers.LocationResolver
	wrapper          livepers.WriteBackWrapper
	metrics          Metrics
	onEvent          EventHandler
	flushConcurrency int

	locker  sync.RWMutex
	cache   map[livepers.ID]livepers.LocalHandle
	backend livepers.Backend
	loads   singleflight.Group
	// deleting counts the evicted entities whose back-end delete has not completed yet;
	// they are not reloaded meanwhile.
	deleting map[livepers.ID]int
}

var (
	_ livepers.Getter             = (*Service)(nil)
	_ livepers.DirtyListProcessor = (*Service)(nil)
)

// New returns a Service without a back-end; call Init before use.
func New(opts Options) *Service {
	s := &Service{
		refs:             opts.References,
		locator:          opts.Locator,
		wrapper:          opts.Wrapper,
		metrics:          opts.Metrics,
		onEvent:          opts.OnEvent,
		flushConcurrency: opts.FlushConcurrency,
		cache:            make(map[livepers.ID]livepers.LocalHandle),
		deleting:         make(map[livepers.ID]int),
	}
	if s.refs == nil {
		s.refs = objref.NewResolver(s)
	}
	if s.locator == nil {
		s.locator = location.Static{Local: true}
	}
	if s.wrapper == nil {
		s.wrapper = writeback.NewWrapper()
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.flushConcurrency < 1 {
		s.flushConcurrency = DefaultFlushConcurrency
	}
	return s
}

// Init clears the live cache and sets the back-end, initializing it. A nil back-end leaves
// the service unable to load or store anything.
func (s *Service) Init(ctx context.Context, backend livepers.Backend) error {
	s.locker.Lock()
	s.cache = make(map[livepers.ID]livepers.LocalHandle)
	s.backend = backend
	s.locker.Unlock()
	s.metrics.SetLiveEntities(0)
	if backend == nil {
		return nil
	}
	if err := backend.Init(ctx); err != nil {
		return fmt.Errorf("init back-end: %w", err)
	}
	return nil
}

// Get returns the entity with the given ID from the live cache, the request scope carried
// by ctx, or the back-end, in that order.
func (s *Service) Get(ctx context.Context, id livepers.ID) (livepers.Handle, error) {
	if h, ok := s.Cached(id); ok {
		s.metrics.RecordCacheHit(metrics.TierLive)
		return h, nil
	}
	if scope := livepers.ScopeFrom(ctx); scope != nil {
		if h, ok := scope.GetCached(id); ok {
			s.metrics.RecordCacheHit(metrics.TierRequest)
			return h, nil
		}
	}
	return s.Load(ctx, id)
}

// Load reads the entity with the given ID from the back-end. The request scope is not
// consulted, but an entity already in the live cache is returned without a read so there is
// never a second live copy. A locally owned entity is wrapped for write-back, receives its
// OnLoad hook and enters the live cache; a remote one is wrapped for forwarding and cached in
// the request scope only. An entity whose delete is still in flight is not found.
// Concurrent loads of one ID share a single back-end read.
func (s *Service) Load(ctx context.Context, id livepers.ID) (livepers.Handle, error) {
	if id.IsNil() {
		return nil, livepers.ErrNotFound
	}
	v, err, _ := s.loads.Do(string(id), func() (any, error) {
		return s.load(context.WithoutCancel(ctx), id)
	})
	if err != nil {
		return nil, err
	}
	h := v.(livepers.Handle)
	if h.Kind() == livepers.KindRemote {
		if scope := livepers.ScopeFrom(ctx); scope != nil {
			scope.PutCached(h)
		}
	}
	return h, nil
}

func (s *Service) load(ctx context.Context, id livepers.ID) (livepers.Handle, error) {
	s.locker.RLock()
	backend := s.backend
	h, ok := s.cache[id]
	deleting := s.deleting[id] > 0
	s.locker.RUnlock()
	if backend == nil {
		return nil, livepers.Error{Code: livepers.BackendUnavailable, Err: livepers.ErrBackendUnavailable, UserData: id}
	}
	// Loaded by a call that finished while this one queued.
	if ok {
		return h, nil
	}
	if deleting {
		log.Debug("load of an entity being deleted", "id", id)
		return nil, livepers.Error{Code: livepers.ReadFailure, Err: livepers.ErrNotFound, UserData: id}
	}

	log.Debug("load", "id", id)
	start := time.Now()
	data, err := backend.Read(ctx, id)
	if err == nil && data == nil {
		err = livepers.ErrNotFound
	}
	s.metrics.RecordOperation(metrics.OpRead, time.Since(start), err)
	if err != nil {
		log.Error("could not load entity from persistence", "id", id, "error", err)
		s.metrics.RecordLoad(metrics.LoadFailed)
		s.emit(Event{Kind: EventReadFailed, ID: id, Err: err})
		return nil, livepers.Error{Code: livepers.ReadFailure, Err: livepers.ErrNotFound, UserData: err}
	}

	s.refs.ResolveReferences(data)
	e := livepers.FromData(data)
	if e.ID.IsNil() {
		e.ID = id
	}

	if !s.locator.IsLocal(e) {
		s.metrics.RecordLoad(metrics.LoadRemote)
		s.emit(Event{Kind: EventLoaded, ID: id})
		return s.locator.MakeForwardingProxy(e), nil
	}

	lh := s.wrapper.MakeWriteBackProxy(e)
	if c, ok := livepers.LookupClass(e.ClassID); ok && c.OnLoad != nil {
		c.OnLoad(ctx, e)
	}
	s.locker.Lock()
	if existing, ok := s.cache[id]; ok {
		// Added while being read; the added entity wins.
		s.locker.Unlock()
		return existing, nil
	}
	s.cache[id] = lh
	n := len(s.cache)
	s.locker.Unlock()

	s.metrics.SetLiveEntities(n)
	s.metrics.RecordLoad(metrics.LoadLocal)
	s.emit(Event{Kind: EventLoaded, ID: id})
	return lh, nil
}

// Add registers a new entity: it is wrapped for write-back, put in the live cache and
// marked dirty in the request scope carried by ctx, so it is written when the request ends.
// An entity already cached under the same ID is replaced, with a warning.
func (s *Service) Add(ctx context.Context, e *livepers.Entity) livepers.LocalHandle {
	log.Debug("add", "id", e.ID)
	lh := s.wrapper.MakeWriteBackProxy(e)

	s.locker.Lock()
	_, dup := s.cache[e.ID]
	s.cache[e.ID] = lh
	n := len(s.cache)
	s.locker.Unlock()

	if dup {
		log.Warn("entity overwritten", "id", e.ID)
		s.metrics.RecordDuplicateAdd()
		s.emit(Event{Kind: EventDuplicateAdd, ID: e.ID})
	}
	s.metrics.SetLiveEntities(n)
	lh.Touch(ctx)
	return lh
}

// ProcessDirtyList writes back the entities of a finished request: entities flagged as
// deleted are removed from the live cache and deleted from the back-end, all others are
// written. Every entry is issued; a failure is logged and reported but never stops the
// others. It returns once the live cache is updated, without waiting for a free runner
// slot; the returned Flush may be waited on or discarded. Back-end operations are not bound
// to the cancellation of ctx.
func (s *Service) ProcessDirtyList(ctx context.Context, dirty map[livepers.ID]*livepers.Entity, label string) *livepers.Flush {
	if len(dirty) == 0 {
		f := livepers.NewFlush(label, nil)
		f.Seal()
		return f
	}
	ctx = context.WithoutCancel(ctx)
	tr := livepers.NewTaskRunner(ctx, s.flushConcurrency)
	f := livepers.NewFlush(label, tr)
	var writes, deletes []*livepers.Entity
	for _, e := range dirty {
		if e.Deleted() {
			s.evict(e.ID, label)
			deletes = append(deletes, e)
			continue
		}
		writes = append(writes, e)
	}
	f.Writes, f.Deletes = len(writes), len(deletes)
	// tr.Go blocks while every slot is busy.
	go func() {
		for _, e := range deletes {
			tr.Go(func() error {
				f.Record(s.delete(ctx, e.ID, label))
				return nil
			})
		}
		for _, e := range writes {
			tr.Go(func() error {
				f.Record(s.write(ctx, e, label))
				return nil
			})
		}
		f.Seal()
	}()
	s.metrics.RecordFlush()
	return f
}

// Write stores the current state of e in the back-end asynchronously.
func (s *Service) Write(ctx context.Context, e *livepers.Entity, label string) *livepers.Pending {
	return livepers.Go(context.WithoutCancel(ctx), func(ctx context.Context) error {
		return s.write(ctx, e, label)
	})
}

// Delete removes e from the live cache right away and from the back-end asynchronously. The
// cache removal is not undone if the back-end delete fails.
func (s *Service) Delete(ctx context.Context, e *livepers.Entity, label string) *livepers.Pending {
	s.evict(e.ID, label)
	return livepers.Go(context.WithoutCancel(ctx), func(ctx context.Context) error {
		return s.delete(ctx, e.ID, label)
	})
}

func (s *Service) write(ctx context.Context, e *livepers.Entity, label string) error {
	log.Debug("write", "id", e.ID, "label", label)
	backend := s.currentBackend()
	if backend == nil {
		return s.writeFailed(e.ID, label, livepers.ErrBackendUnavailable)
	}
	data := s.refs.FlattenReferences(e.Serialize())
	start := time.Now()
	err := backend.Write(ctx, data)
	s.metrics.RecordOperation(metrics.OpWrite, time.Since(start), err)
	if err != nil {
		return s.writeFailed(e.ID, label, err)
	}
	s.emit(Event{Kind: EventWritten, ID: e.ID, Label: label})
	return nil
}

func (s *Service) writeFailed(id livepers.ID, label string, err error) error {
	log.Error("could not write entity", "id", id, "label", label, "error", err)
	s.emit(Event{Kind: EventWriteFailed, ID: id, Label: label, Err: err})
	return livepers.Error{Code: livepers.WriteFailure, Err: err, UserData: id}
}

// evict removes id from the live cache and holds off loads of id until the matching delete
// call ends.
func (s *Service) evict(id livepers.ID, label string) {
	log.Debug("del", "id", id, "label", label)
	s.locker.Lock()
	delete(s.cache, id)
	s.deleting[id]++
	n := len(s.cache)
	s.locker.Unlock()
	s.metrics.SetLiveEntities(n)
}

func (s *Service) deleteDone(id livepers.ID) {
	s.locker.Lock()
	if s.deleting[id] <= 1 {
		delete(s.deleting, id)
	} else {
		s.deleting[id]--
	}
	s.locker.Unlock()
}

func (s *Service) delete(ctx context.Context, id livepers.ID, label string) error {
	defer s.deleteDone(id)
	backend := s.currentBackend()
	var err error
	if backend == nil {
		err = livepers.ErrBackendUnavailable
	} else {
		start := time.Now()
		err = backend.Delete(ctx, id)
		s.metrics.RecordOperation(metrics.OpDelete, time.Since(start), err)
	}
	if err != nil {
		log.Error("could not delete entity", "id", id, "label", label, "error", err)
		s.emit(Event{Kind: EventDeleteFailed, ID: id, Label: label, Err: err})
		return livepers.Error{Code: livepers.DeleteFailure, Err: err, UserData: id}
	}
	s.emit(Event{Kind: EventDeleted, ID: id, Label: label})
	return nil
}

// Cached returns the live cache entry of id.
func (s *Service) Cached(id livepers.ID) (livepers.LocalHandle, bool) {
	s.locker.RLock()
	defer s.locker.RUnlock()
	h, ok := s.cache[id]
	return h, ok
}

// CachedIDs returns the IDs in the live cache in ascending order.
func (s *Service) CachedIDs() []livepers.ID {
	s.locker.RLock()
	ids := make([]livepers.ID, 0, len(s.cache))
	for id := range s.cache {
		ids = append(ids, id)
	}
	s.locker.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of entities in the live cache.
func (s *Service) Len() int {
	s.locker.RLock()
	defer s.locker.RUnlock()
	return len(s.cache)
}

func (s *Service) currentBackend() livepers.Backend {
	s.locker.RLock()
	defer s.locker.RUnlock()
	return s.backend
}

func (s *Service) emit(ev Event) {
	if s.onEvent != nil {
		s.onEvent(ev)
	}
}
