package persistence

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sharedcode/livepers"
	"github.com/sharedcode/livepers/inmemory"
	"github.com/sharedcode/livepers/location"
	"github.com/sharedcode/livepers/metrics"
	"github.com/sharedcode/livepers/objref"
	"github.com/sharedcode/livepers/reqscope"
)

var ctx = context.Background()

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) handle(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// failingBackend fails the operations on the IDs listed in its maps.
type failingBackend struct {
	*inmemory.Backend
	failRead   map[livepers.ID]bool
	failWrite  map[livepers.ID]bool
	failDelete map[livepers.ID]bool
}

func (b *failingBackend) Read(ctx context.Context, id livepers.ID) (livepers.Data, error) {
	if b.failRead[id] {
		return nil, fmt.Errorf("read %s: disk on fire", id)
	}
	return b.Backend.Read(ctx, id)
}

func (b *failingBackend) Write(ctx context.Context, data livepers.Data) error {
	if b.failWrite[data.ID()] {
		return fmt.Errorf("write %s: disk full", data.ID())
	}
	return b.Backend.Write(ctx, data)
}

func (b *failingBackend) Delete(ctx context.Context, id livepers.ID) error {
	if b.failDelete[id] {
		return fmt.Errorf("delete %s: read-only", id)
	}
	return b.Backend.Delete(ctx, id)
}

func newService(t *testing.T, opts Options, docs ...livepers.Data) (*Service, *inmemory.Backend) {
	t.Helper()
	be := inmemory.NewBackend()
	for _, d := range docs {
		if err := be.Write(ctx, d); err != nil {
			t.Fatalf("seed %v: %v", d.ID(), err)
		}
	}
	be.ResetCounters()
	s := New(opts)
	if err := s.Init(ctx, be); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return s, be
}

func TestGetTwiceReadsOnce(t *testing.T) {
	s, be := newService(t, Options{}, livepers.Data{"id": "A", "name": "apple"})
	h1, err := s.Get(ctx, "A")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	h2, err := s.Get(ctx, "A")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if h1 != h2 {
		t.Errorf("second Get returned a different handle")
	}
	if be.Reads() != 1 {
		t.Errorf("back-end reads = %d, want 1", be.Reads())
	}
	if h1.ID() != "A" {
		t.Errorf("ID() = %q, want A", h1.ID())
	}
	if h1.Kind() != livepers.KindLocal {
		t.Errorf("Kind() = %v, want local", h1.Kind())
	}
	if v, _ := h1.Entity().Get("name"); v != "apple" {
		t.Errorf("name = %v", v)
	}
}

func TestLoadUsesRequestedIDWhenDocumentHasNone(t *testing.T) {
	be := inmemory.NewBackend()
	s := New(Options{})
	if err := s.Init(ctx, &idlessBackend{be}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	h, err := s.Get(ctx, "X1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if h.ID() != "X1" {
		t.Errorf("ID() = %q, want X1", h.ID())
	}
}

type idlessBackend struct{ *inmemory.Backend }

func (b *idlessBackend) Read(ctx context.Context, id livepers.ID) (livepers.Data, error) {
	return livepers.Data{"name": "anonymous"}, nil
}

func TestCyclicReferences(t *testing.T) {
	s, be := newService(t, Options{},
		livepers.Data{"id": "A", "friend": objref.Placeholder("B")},
		livepers.Data{"id": "B", "friend": objref.Placeholder("A")},
	)
	a, err := s.Get(ctx, "A")
	if err != nil {
		t.Fatalf("Get(A): %v", err)
	}
	if be.Reads() != 1 {
		t.Errorf("loading A read %d documents, want 1", be.Reads())
	}
	v, _ := a.Entity().Get("friend")
	ref, ok := v.(*objref.Ref)
	if !ok {
		t.Fatalf("friend is %T, want *objref.Ref", v)
	}
	b, err := ref.Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve(B): %v", err)
	}
	if b.ID() != "B" {
		t.Errorf("friend of A = %q, want B", b.ID())
	}
	v, _ = b.Entity().Get("friend")
	back, err := v.(*objref.Ref).Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve(A): %v", err)
	}
	if back != a {
		t.Errorf("friend of B is not the cached A")
	}
	if be.Reads() != 2 {
		t.Errorf("back-end reads = %d, want 2", be.Reads())
	}
}

func TestDanglingReference(t *testing.T) {
	s, _ := newService(t, Options{}, livepers.Data{"id": "A", "friend": objref.Placeholder("GONE")})
	a, err := s.Get(ctx, "A")
	if err != nil {
		t.Fatalf("Get(A) failed because of a dangling reference: %v", err)
	}
	v, _ := a.Entity().Get("friend")
	if _, err := v.(*objref.Ref).Resolve(ctx); !errors.Is(err, livepers.ErrNotFound) {
		t.Errorf("Resolve(GONE) err = %v, want ErrNotFound", err)
	}
}

func TestAddWritesWithoutReading(t *testing.T) {
	s, be := newService(t, Options{})
	var added livepers.LocalHandle
	err := reqscope.RunAndWait(ctx, s, "create", func(ctx context.Context) error {
		e := livepers.NewEntity("I", "gs01", map[string]any{"count": 1})
		added = s.Add(ctx, e)
		added.Set(ctx, "count", 2)
		if d := livepers.ScopeFrom(ctx).(*reqscope.Scope).Dirty(); len(d) != 1 {
			t.Errorf("dirty set has %d entries, want 1", len(d))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunAndWait: %v", err)
	}
	if be.Reads() != 0 {
		t.Errorf("back-end reads = %d, want 0", be.Reads())
	}
	if be.Writes() != 1 {
		t.Errorf("back-end writes = %d, want 1", be.Writes())
	}
	d, ok := be.Stored(added.ID())
	if !ok {
		t.Fatalf("added entity not stored")
	}
	if d["count"] != float64(2) {
		t.Errorf("stored count = %v, want 2", d["count"])
	}
	if h, ok := s.Cached(added.ID()); !ok || h != added {
		t.Errorf("added entity not in live cache")
	}
}

func TestDuplicateAddOverwrites(t *testing.T) {
	rec := &eventRecorder{}
	s, _ := newService(t, Options{OnEvent: rec.handle})
	sc := livepers.WithScope(ctx, reqscope.New(""))
	s.Add(sc, &livepers.Entity{ID: "A"})
	second := s.Add(sc, &livepers.Entity{ID: "A", Fields: map[string]any{"v": 2}})
	if h, _ := s.Cached("A"); h != second {
		t.Errorf("live cache holds the first entity")
	}
	if rec.count(EventDuplicateAdd) != 1 {
		t.Errorf("duplicate add events = %d, want 1", rec.count(EventDuplicateAdd))
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestProcessDirtyList(t *testing.T) {
	s, be := newService(t, Options{}, livepers.Data{"id": "B"})
	sc := livepers.WithScope(ctx, reqscope.New(""))
	a := s.Add(sc, &livepers.Entity{ID: "A"})
	b, err := s.Get(sc, "B")
	if err != nil {
		t.Fatalf("Get(B): %v", err)
	}
	b.Entity().SetDeleted(true)

	f := s.ProcessDirtyList(ctx, map[livepers.ID]*livepers.Entity{
		"A": a.Entity(),
		"B": b.Entity(),
	}, "test")
	if f.Writes != 1 || f.Deletes != 1 {
		t.Errorf("flush issued %d writes and %d deletes, want 1 and 1", f.Writes, f.Deletes)
	}
	if _, ok := s.Cached("B"); ok {
		t.Errorf("deleted entity still cached")
	}
	if err := f.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if be.Writes() != 1 || be.Deletes() != 1 {
		t.Errorf("back-end writes=%d deletes=%d, want 1 and 1", be.Writes(), be.Deletes())
	}
	if _, ok := be.Stored("B"); ok {
		t.Errorf("B still stored")
	}
	if _, ok := be.Stored("A"); !ok {
		t.Errorf("A not stored")
	}
}

func TestEmptyDirtyList(t *testing.T) {
	s, be := newService(t, Options{})
	f := s.ProcessDirtyList(ctx, nil, "")
	if err := f.Wait(ctx); err != nil {
		t.Errorf("Wait: %v", err)
	}
	if be.Writes() != 0 || be.Deletes() != 0 {
		t.Errorf("empty flush touched the back-end")
	}
}

func TestFlushFailureDoesNotStopOthers(t *testing.T) {
	rec := &eventRecorder{}
	be := &failingBackend{Backend: inmemory.NewBackend(), failWrite: map[livepers.ID]bool{"A": true}}
	s := New(Options{OnEvent: rec.handle, FlushConcurrency: 1})
	if err := s.Init(ctx, be); err != nil {
		t.Fatalf("Init: %v", err)
	}
	dirty := map[livepers.ID]*livepers.Entity{}
	for _, id := range []livepers.ID{"A", "B", "C"} {
		dirty[id] = &livepers.Entity{ID: id}
	}
	err := s.ProcessDirtyList(ctx, dirty, "batch").Wait(ctx)
	if err == nil {
		t.Fatalf("expected the failure of A to be reported")
	}
	if livepers.CodeOf(err) != livepers.WriteFailure {
		t.Errorf("CodeOf(err) = %v, want write failure", livepers.CodeOf(err))
	}
	if be.Writes() != 2 {
		t.Errorf("back-end writes = %d, want 2", be.Writes())
	}
	if rec.count(EventWriteFailed) != 1 || rec.count(EventWritten) != 2 {
		t.Errorf("events: %d failed, %d written", rec.count(EventWriteFailed), rec.count(EventWritten))
	}
}

func TestDeleteFailureKeepsCacheRemoval(t *testing.T) {
	rec := &eventRecorder{}
	be := &failingBackend{Backend: inmemory.NewBackend(), failDelete: map[livepers.ID]bool{"A": true}}
	s := New(Options{OnEvent: rec.handle})
	if err := s.Init(ctx, be); err != nil {
		t.Fatalf("Init: %v", err)
	}
	a := s.Add(livepers.WithScope(ctx, reqscope.New("")), &livepers.Entity{ID: "A"})
	err := s.Delete(ctx, a.Entity(), "").Wait(ctx)
	if livepers.CodeOf(err) != livepers.DeleteFailure {
		t.Errorf("Delete err = %v, want delete failure", err)
	}
	if _, ok := s.Cached("A"); ok {
		t.Errorf("failed delete restored the cache entry")
	}
	if rec.count(EventDeleteFailed) != 1 {
		t.Errorf("delete failed events = %d, want 1", rec.count(EventDeleteFailed))
	}
}

func TestWriteFlattensReferences(t *testing.T) {
	s, be := newService(t, Options{}, livepers.Data{"id": "B"})
	b, err := s.Get(ctx, "B")
	if err != nil {
		t.Fatalf("Get(B): %v", err)
	}
	a := &livepers.Entity{ID: "A", Fields: map[string]any{
		"friend":  b,
		"entity":  b.Entity(),
		"!cached": "skip",
	}}
	if err := s.Write(ctx, a, "").Wait(ctx); err != nil {
		t.Fatalf("Write: %v", err)
	}
	d, _ := be.Stored("A")
	for _, k := range []string{"friend", "entity"} {
		if id, ok := objref.IsPlaceholder(d[k]); !ok || id != "B" {
			t.Errorf("%s stored as %v, want a reference to B", k, d[k])
		}
	}
	if _, ok := d["!cached"]; ok {
		t.Errorf("transient field stored")
	}
}

func TestReadFailureIsNotFound(t *testing.T) {
	rec := &eventRecorder{}
	be := &failingBackend{Backend: inmemory.NewBackend(), failRead: map[livepers.ID]bool{"A": true}}
	s := New(Options{OnEvent: rec.handle})
	if err := s.Init(ctx, be); err != nil {
		t.Fatalf("Init: %v", err)
	}
	_, err := s.Get(ctx, "A")
	if !errors.Is(err, livepers.ErrNotFound) {
		t.Errorf("Get err = %v, want ErrNotFound", err)
	}
	if livepers.CodeOf(err) != livepers.ReadFailure {
		t.Errorf("CodeOf(err) = %v, want read failure", livepers.CodeOf(err))
	}
	if _, err := s.Get(ctx, "MISSING"); !errors.Is(err, livepers.ErrNotFound) {
		t.Errorf("Get(MISSING) err = %v, want ErrNotFound", err)
	}
	if rec.count(EventReadFailed) != 2 {
		t.Errorf("read failed events = %d, want 2", rec.count(EventReadFailed))
	}
	if s.Len() != 0 {
		t.Errorf("failed load left %d cache entries", s.Len())
	}
}

func TestBackendUnavailable(t *testing.T) {
	s := New(Options{})
	if _, err := s.Get(ctx, "A"); !errors.Is(err, livepers.ErrBackendUnavailable) {
		t.Errorf("Get err = %v, want ErrBackendUnavailable", err)
	}
	err := s.Write(ctx, &livepers.Entity{ID: "A"}, "").Wait(ctx)
	if !errors.Is(err, livepers.ErrBackendUnavailable) {
		t.Errorf("Write err = %v, want ErrBackendUnavailable", err)
	}
}

func TestRemoteEntitiesStayInRequestScope(t *testing.T) {
	s, be := newService(t, Options{Locator: location.Static{Local: false}}, livepers.Data{"id": "R"})
	err := reqscope.RunAndWait(ctx, s, "", func(ctx context.Context) error {
		h1, err := s.Get(ctx, "R")
		if err != nil {
			return err
		}
		if h1.Kind() != livepers.KindRemote {
			t.Errorf("Kind() = %v, want remote", h1.Kind())
		}
		h2, err := s.Get(ctx, "R")
		if err != nil {
			return err
		}
		if h1 != h2 {
			t.Errorf("second Get within the request returned a different handle")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if be.Reads() != 1 {
		t.Errorf("back-end reads within one request = %d, want 1", be.Reads())
	}
	if s.Len() != 0 {
		t.Errorf("remote entity entered the live cache")
	}
	if _, err := reqscope.Run(ctx, s, "", func(ctx context.Context) error {
		_, err := s.Get(ctx, "R")
		return err
	}); err != nil {
		t.Fatalf("second request: %v", err)
	}
	if be.Reads() != 2 {
		t.Errorf("back-end reads after a second request = %d, want 2", be.Reads())
	}
}

func TestOnLoadRunsOnceForLocalEntities(t *testing.T) {
	var calls atomic.Int32
	livepers.RegisterClass("counter", livepers.Class{
		OnLoad: func(ctx context.Context, e *livepers.Entity) {
			calls.Add(1)
			e.Set("!loaded", true)
		},
	})
	t.Cleanup(func() { livepers.UnregisterClass("counter") })

	s, _ := newService(t, Options{}, livepers.Data{"id": "C", "class_id": "counter"})
	for i := 0; i < 3; i++ {
		if _, err := s.Get(ctx, "C"); err != nil {
			t.Fatalf("Get: %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("OnLoad ran %d times, want 1", calls.Load())
	}
	h, _ := s.Cached("C")
	if v, _ := h.Get("!loaded"); v != true {
		t.Errorf("OnLoad did not see the entity")
	}

	remote, _ := newService(t, Options{Locator: location.Static{Local: false}}, livepers.Data{"id": "C", "class_id": "counter"})
	if _, err := remote.Get(ctx, "C"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("OnLoad ran for a remote entity")
	}
}

// gatedBackend blocks reads until release is closed.
type gatedBackend struct {
	*inmemory.Backend
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *gatedBackend) Read(ctx context.Context, id livepers.ID) (livepers.Data, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return b.Backend.Read(ctx, id)
}

func TestConcurrentGetsShareOneRead(t *testing.T) {
	inner := inmemory.NewBackend()
	if err := inner.Write(ctx, livepers.Data{"id": "A"}); err != nil {
		t.Fatal(err)
	}
	be := &gatedBackend{Backend: inner, entered: make(chan struct{}), release: make(chan struct{})}
	s := New(Options{})
	if err := s.Init(ctx, be); err != nil {
		t.Fatalf("Init: %v", err)
	}

	const n = 16
	handles := make([]livepers.Handle, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = s.Get(ctx, "A")
		}(i)
	}
	<-be.entered
	close(be.release)
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("Get #%d: %v", i, errs[i])
		}
		if handles[i] != handles[0] {
			t.Errorf("Get #%d returned a different handle", i)
		}
	}
	if inner.Reads() != 1 {
		t.Errorf("back-end reads = %d, want 1", inner.Reads())
	}
}

func TestInitClearsCache(t *testing.T) {
	s, be := newService(t, Options{}, livepers.Data{"id": "A"})
	if _, err := s.Get(ctx, "A"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := s.Init(ctx, be); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Init kept %d cache entries", s.Len())
	}
	if be.Inits() != 2 {
		t.Errorf("back-end Init calls = %d, want 2", be.Inits())
	}
	if _, err := s.Get(ctx, "A"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if be.Reads() != 2 {
		t.Errorf("back-end reads = %d, want 2", be.Reads())
	}
}

func TestCachedIDs(t *testing.T) {
	s, _ := newService(t, Options{})
	sc := livepers.WithScope(ctx, reqscope.New(""))
	for _, id := range []livepers.ID{"C", "A", "B"} {
		s.Add(sc, &livepers.Entity{ID: id})
	}
	var sb strings.Builder
	for _, id := range s.CachedIDs() {
		sb.WriteString(string(id))
	}
	if sb.String() != "ABC" {
		t.Errorf("CachedIDs() = %s, want ABC", sb.String())
	}
}

func TestMetricsCollector(t *testing.T) {
	c := metrics.NewCollector("")
	s, _ := newService(t, Options{Metrics: c}, livepers.Data{"id": "A"})
	if _, err := s.Get(ctx, "A"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := s.Get(ctx, "A"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		"livepers_live_entities 1",
		`livepers_loads_total{outcome="local"} 1`,
		`livepers_cache_hits_total{tier="live"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

// countingScope counts MarkDirty calls per ID.
type countingScope struct {
	mu    sync.Mutex
	marks map[livepers.ID]int
}

func (c *countingScope) Label() string                                    { return "count" }
func (c *countingScope) GetCached(id livepers.ID) (livepers.Handle, bool) { return nil, false }
func (c *countingScope) PutCached(h livepers.Handle)                      {}

func (c *countingScope) MarkDirty(e *livepers.Entity) {
	c.mu.Lock()
	c.marks[e.ID]++
	c.mu.Unlock()
}

func TestAddMarksDirtyOnce(t *testing.T) {
	s, _ := newService(t, Options{})
	scope := &countingScope{marks: map[livepers.ID]int{}}
	s.Add(livepers.WithScope(ctx, scope), &livepers.Entity{ID: "A"})
	if scope.marks["A"] != 1 {
		t.Errorf("Add marked A dirty %d times, want 1", scope.marks["A"])
	}
}

func TestWriteFlattensTypedContainers(t *testing.T) {
	s, be := newService(t, Options{})
	a := &livepers.Entity{ID: "A", Fields: map[string]any{}}
	b := &livepers.Entity{ID: "B", Fields: map[string]any{"name": "b"}}
	a.Fields["kids"] = []*livepers.Entity{b}
	a.Fields["byName"] = map[string]*livepers.Entity{"b": b}
	b.Fields["peers"] = []*livepers.Entity{a}

	for _, e := range []*livepers.Entity{a, b} {
		if err := s.Write(ctx, e, "").Wait(ctx); err != nil {
			t.Fatalf("Write(%s): %v", e.ID, err)
		}
	}
	d, _ := be.Stored("A")
	kids, _ := d["kids"].([]any)
	if len(kids) != 1 {
		t.Fatalf("kids stored as %v", d["kids"])
	}
	if id, ok := objref.IsPlaceholder(kids[0]); !ok || id != "B" {
		t.Errorf("kids[0] stored as %v, want a reference to B", kids[0])
	}
	byName, _ := d["byName"].(map[string]any)
	if id, ok := objref.IsPlaceholder(byName["b"]); !ok || id != "B" {
		t.Errorf("byName stored as %v, want a reference to B", d["byName"])
	}
	d, _ = be.Stored("B")
	peers, _ := d["peers"].([]any)
	if len(peers) != 1 {
		t.Fatalf("peers stored as %v", d["peers"])
	}
	if id, ok := objref.IsPlaceholder(peers[0]); !ok || id != "A" {
		t.Errorf("peers[0] stored as %v, want a reference to A", peers[0])
	}
}

// blockingBackend holds writes and deletes until release is closed.
type blockingBackend struct {
	*inmemory.Backend
	release chan struct{}
}

func (b *blockingBackend) Write(ctx context.Context, data livepers.Data) error {
	<-b.release
	return b.Backend.Write(ctx, data)
}

func (b *blockingBackend) Delete(ctx context.Context, id livepers.ID) error {
	<-b.release
	return b.Backend.Delete(ctx, id)
}

func TestProcessDirtyListDoesNotWaitForSlots(t *testing.T) {
	be := &blockingBackend{Backend: inmemory.NewBackend(), release: make(chan struct{})}
	s := New(Options{FlushConcurrency: 2})
	if err := s.Init(ctx, be); err != nil {
		t.Fatalf("Init: %v", err)
	}
	dirty := map[livepers.ID]*livepers.Entity{}
	for i := 0; i < DefaultFlushConcurrency+1; i++ {
		id := livepers.ID(fmt.Sprintf("E%d", i))
		dirty[id] = &livepers.Entity{ID: id}
	}

	issued := make(chan *livepers.Flush, 1)
	go func() { issued <- s.ProcessDirtyList(ctx, dirty, "many") }()
	var f *livepers.Flush
	select {
	case f = <-issued:
	case <-time.After(2 * time.Second):
		close(be.release)
		t.Fatalf("ProcessDirtyList blocked while back-end writes were pending")
	}
	if f.Writes != len(dirty) {
		t.Errorf("flush writes = %d, want %d", f.Writes, len(dirty))
	}
	select {
	case <-f.Done():
		t.Fatalf("flush done before any write completed")
	default:
	}

	close(be.release)
	if err := f.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if be.Writes() != int64(len(dirty)) {
		t.Errorf("back-end writes = %d, want %d", be.Writes(), len(dirty))
	}
}

func TestLoadWaitsOutPendingDelete(t *testing.T) {
	inner := inmemory.NewBackend()
	if err := inner.Write(ctx, livepers.Data{"id": "A"}); err != nil {
		t.Fatal(err)
	}
	be := &blockingBackend{Backend: inner, release: make(chan struct{})}
	s := New(Options{})
	if err := s.Init(ctx, be); err != nil {
		t.Fatalf("Init: %v", err)
	}
	a, err := s.Get(ctx, "A")
	if err != nil {
		t.Fatalf("Get(A): %v", err)
	}
	a.Entity().SetDeleted(true)
	f := s.ProcessDirtyList(ctx, map[livepers.ID]*livepers.Entity{"A": a.Entity()}, "del")

	inner.ResetCounters()
	if _, err := s.Get(ctx, "A"); !errors.Is(err, livepers.ErrNotFound) {
		t.Errorf("Get during delete err = %v, want ErrNotFound", err)
	}
	if inner.Reads() != 0 {
		t.Errorf("entity being deleted was read back %d times", inner.Reads())
	}
	if s.Len() != 0 {
		t.Errorf("entity being deleted entered the live cache")
	}

	close(be.release)
	if err := f.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if _, err := s.Get(ctx, "A"); !errors.Is(err, livepers.ErrNotFound) {
		t.Errorf("Get after delete err = %v, want ErrNotFound", err)
	}
	if inner.Reads() != 1 {
		t.Errorf("reads after delete = %d, want 1", inner.Reads())
	}
}
